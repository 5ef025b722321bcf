package models

import "time"

// EquityPoint is one day's portfolio-value snapshot. The ordered sequence of
// points forms the equity curve consumed by the performance reporter.
type EquityPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	TotalEquity   float64   `json:"total_equity"`
	Cash          float64   `json:"cash"`
	PositionValue float64   `json:"position_value"`
}

type EquityCurve []*EquityPoint

func (curve EquityCurve) DailyReturns() []float64 {
	if len(curve) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].TotalEquity
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}

		returns = append(returns, (curve[i].TotalEquity-prev)/prev)
	}

	return returns
}
