package report

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/quantlab/backtest-engine/src/models"
)

const tradingDaysPerYear = 252

// Report is the in-memory summary of one completed run. Building it is
// deterministic and idempotent: the same equity curve and trade log always
// yield the same report, with no re-simulation.
type Report struct {
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	TradingDays    int       `json:"trading_days"`
	InitialCapital float64   `json:"initial_capital"`
	FinalEquity    float64   `json:"final_equity"`

	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	SharpeRatio      float64 `json:"sharpe_ratio"`

	TradeCount     int     `json:"trade_count"`
	RoundTrips     int     `json:"round_trips"`
	WinRate        float64 `json:"win_rate"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
	AvgHoldingDays float64 `json:"avg_holding_days"`
}

// Summarize computes summary statistics from the equity curve and trade log.
// Annualization uses elapsed trading days, not calendar days.
func Summarize(curve models.EquityCurve, trades []*models.TradeRecord, initialCapital, riskFreeRate float64) (*Report, error) {
	if len(curve) == 0 {
		return nil, fmt.Errorf("Summarize: equity curve is empty")
	}

	if initialCapital <= 0 {
		return nil, fmt.Errorf("Summarize: initial capital must be greater than 0, got %.2f", initialCapital)
	}

	finalEquity := curve[len(curve)-1].TotalEquity
	totalReturn := (finalEquity - initialCapital) / initialCapital

	r := &Report{
		StartDate:      curve[0].Timestamp,
		EndDate:        curve[len(curve)-1].Timestamp,
		TradingDays:    len(curve),
		InitialCapital: initialCapital,
		FinalEquity:    finalEquity,
		TotalReturn:    totalReturn,
		MaxDrawdown:    maxDrawdown(curve),
		TradeCount:     len(trades),
	}

	if len(curve) > 1 && totalReturn > -1 {
		r.AnnualizedReturn = math.Pow(1+totalReturn, tradingDaysPerYear/float64(len(curve))) - 1
	}

	sharpe, err := sharpeRatio(curve.DailyReturns(), riskFreeRate)
	if err != nil {
		return nil, err
	}
	r.SharpeRatio = sharpe

	summarizeTrades(r, trades)

	return r, nil
}

func maxDrawdown(curve models.EquityCurve) float64 {
	peak := curve[0].TotalEquity
	maxDD := 0.0

	for _, point := range curve {
		if point.TotalEquity > peak {
			peak = point.TotalEquity
		}

		if peak > 0 {
			dd := (peak - point.TotalEquity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

func sharpeRatio(dailyReturns []float64, riskFreeRate float64) (float64, error) {
	if len(dailyReturns) < 2 {
		return 0, nil
	}

	dailyRiskFree := riskFreeRate / tradingDaysPerYear
	excess := make([]float64, len(dailyReturns))
	for i, ret := range dailyReturns {
		excess[i] = ret - dailyRiskFree
	}

	mean, err := stats.Mean(excess)
	if err != nil {
		return 0, fmt.Errorf("sharpeRatio: failed to calculate mean: %v", err)
	}

	sd, err := stats.StandardDeviationSample(excess)
	if err != nil {
		return 0, fmt.Errorf("sharpeRatio: failed to calculate standard deviation: %v", err)
	}

	if sd == 0 {
		return 0, nil
	}

	return mean / sd * math.Sqrt(tradingDaysPerYear), nil
}

func summarizeTrades(r *Report, trades []*models.TradeRecord) {
	var wins, losses []float64
	var holdingDays []float64

	for _, trade := range trades {
		if trade.Action != models.TradeActionSell {
			continue
		}

		r.RoundTrips++
		holdingDays = append(holdingDays, float64(trade.HoldingDays))

		if trade.RealizedPnL > 0 {
			wins = append(wins, trade.RealizedPnL)
		} else {
			losses = append(losses, trade.RealizedPnL)
		}
	}

	if r.RoundTrips == 0 {
		return
	}

	r.WinRate = float64(len(wins)) / float64(r.RoundTrips)

	if len(wins) > 0 {
		r.AvgWin, _ = stats.Mean(wins)
	}
	if len(losses) > 0 {
		r.AvgLoss, _ = stats.Mean(losses)
	}

	r.AvgHoldingDays, _ = stats.Mean(holdingDays)
}
