package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantlab/backtest-engine/src/models"
)

func curveFrom(equities []float64) models.EquityCurve {
	start := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

	curve := make(models.EquityCurve, 0, len(equities))
	for i, equity := range equities {
		curve = append(curve, &models.EquityPoint{
			Timestamp:   start.AddDate(0, 0, i),
			TotalEquity: equity,
			Cash:        equity,
		})
	}

	return curve
}

func TestSummarize(t *testing.T) {
	t.Run("empty curve is rejected", func(t *testing.T) {
		_, err := Summarize(nil, nil, 1000, 0)
		assert.Error(t, err)
	})

	t.Run("total return and drawdown", func(t *testing.T) {
		curve := curveFrom([]float64{1000, 1100, 990, 1210})

		r, err := Summarize(curve, nil, 1000, 0)
		assert.NoError(t, err)

		assert.Equal(t, 4, r.TradingDays)
		assert.Equal(t, 1210.0, r.FinalEquity)
		assert.InDelta(t, 0.21, r.TotalReturn, 1e-9)

		// peak 1100 to trough 990
		assert.InDelta(t, 0.1, r.MaxDrawdown, 1e-9)
	})

	t.Run("flat curve has zero drawdown and zero sharpe", func(t *testing.T) {
		curve := curveFrom([]float64{1000, 1000, 1000, 1000})

		r, err := Summarize(curve, nil, 1000, 0)
		assert.NoError(t, err)

		assert.Equal(t, 0.0, r.TotalReturn)
		assert.Equal(t, 0.0, r.MaxDrawdown)
		assert.Equal(t, 0.0, r.SharpeRatio)
	})

	t.Run("summarize is idempotent", func(t *testing.T) {
		curve := curveFrom([]float64{1000, 1050, 1020, 1100})
		trades := []*models.TradeRecord{
			{Action: models.TradeActionBuy, Quantity: 10, Price: 100},
			{Action: models.TradeActionSell, Quantity: 10, Price: 110, RealizedPnL: 100, HoldingDays: 2},
		}

		first, err := Summarize(curve, trades, 1000, 0.02)
		assert.NoError(t, err)

		second, err := Summarize(curve, trades, 1000, 0.02)
		assert.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("trade statistics count sells only", func(t *testing.T) {
		trades := []*models.TradeRecord{
			{Action: models.TradeActionBuy, Quantity: 10, Price: 100},
			{Action: models.TradeActionSell, Quantity: 10, Price: 110, RealizedPnL: 100, HoldingDays: 3},
			{Action: models.TradeActionBuy, Quantity: 5, Price: 105},
			{Action: models.TradeActionSell, Quantity: 5, Price: 95, RealizedPnL: -50, HoldingDays: 1},
		}

		r, err := Summarize(curveFrom([]float64{1000, 1010, 1050}), trades, 1000, 0)
		assert.NoError(t, err)

		assert.Equal(t, 4, r.TradeCount)
		assert.Equal(t, 2, r.RoundTrips)
		assert.Equal(t, 0.5, r.WinRate)
		assert.Equal(t, 100.0, r.AvgWin)
		assert.Equal(t, -50.0, r.AvgLoss)
		assert.Equal(t, 2.0, r.AvgHoldingDays)
	})

	t.Run("no round trips leaves trade stats zero", func(t *testing.T) {
		trades := []*models.TradeRecord{
			{Action: models.TradeActionBuy, Quantity: 10, Price: 100},
		}

		r, err := Summarize(curveFrom([]float64{1000, 1010}), trades, 1000, 0)
		assert.NoError(t, err)

		assert.Equal(t, 1, r.TradeCount)
		assert.Equal(t, 0, r.RoundTrips)
		assert.Equal(t, 0.0, r.WinRate)
	})

	t.Run("rising curve has a positive sharpe", func(t *testing.T) {
		curve := curveFrom([]float64{1000, 1010, 1021, 1030, 1042})

		r, err := Summarize(curve, nil, 1000, 0)
		assert.NoError(t, err)

		assert.Greater(t, r.SharpeRatio, 0.0)
		assert.Greater(t, r.AnnualizedReturn, r.TotalReturn)
	})
}
