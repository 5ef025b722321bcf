package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantlab/backtest-engine/src/models"
)

// dailySeries builds an aligned bar/signal series where each day's open and
// close both equal the given price and the model score drives the decision.
func dailySeries(prices, scores []float64) (models.Bars, models.Signals) {
	start := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)

	bars := make(models.Bars, 0, len(prices))
	signals := make(models.Signals, 0, len(scores))

	for i, price := range prices {
		day := start.AddDate(0, 0, i)
		bars = append(bars, &models.Bar{
			Timestamp: day,
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		})
		signals = append(signals, &models.Signal{Timestamp: day, ModelScore: scores[i]})
	}

	return bars, signals
}

func TestBacktestRunner(t *testing.T) {
	t.Run("buy fills next open and the final sell closes out", func(t *testing.T) {
		bars, signals := dailySeries(
			[]float64{100, 105, 95},
			[]float64{1, 0, -1},
		)

		runner, err := NewBacktestRunner("ACME", bars, signals, 1000, modelOnlyConfig())
		assert.NoError(t, err)

		result, err := runner.Run(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, models.RunStatusCompleted, runner.Status())

		// Day 1 buy decision fills at day 2's open of 105: 9 shares, cash 55.
		// Day 3 sell closes out at the final close of 95: cash 910, flat.
		assert.Len(t, result.Trades, 2)

		buy, sell := result.Trades[0], result.Trades[1]
		assert.Equal(t, models.TradeActionBuy, buy.Action)
		assert.Equal(t, 105.0, buy.Price)
		assert.Equal(t, 9.0, buy.Quantity)
		assert.Equal(t, models.TradeActionSell, sell.Action)
		assert.Equal(t, 95.0, sell.Price)
		assert.Equal(t, 9.0, sell.Quantity)
		assert.Equal(t, 1, sell.HoldingDays)

		assert.Equal(t, 0.0, result.FinalLedger.PositionQty)
		assert.Equal(t, 910.0, result.FinalLedger.Cash)

		assert.Len(t, result.EquityCurve, 3)
		assert.Equal(t, 1000.0, result.EquityCurve[0].TotalEquity)
		assert.Equal(t, 1000.0, result.EquityCurve[1].TotalEquity)
		assert.Equal(t, 910.0, result.EquityCurve[2].TotalEquity)
	})

	t.Run("a buy pending on the final bar is dropped", func(t *testing.T) {
		bars, signals := dailySeries(
			[]float64{100, 102},
			[]float64{0, 1},
		)

		runner, err := NewBacktestRunner("ACME", bars, signals, 1000, modelOnlyConfig())
		assert.NoError(t, err)

		result, err := runner.Run(context.Background())
		assert.NoError(t, err)

		assert.Empty(t, result.Trades)
		assert.Equal(t, 1000.0, result.FinalLedger.Cash)
	})

	t.Run("misaligned series fail before any fill", func(t *testing.T) {
		bars, signals := dailySeries(
			[]float64{100, 105, 95},
			[]float64{1, 0, -1},
		)

		_, err := NewBacktestRunner("ACME", bars, signals[:2], 1000, modelOnlyConfig())
		assert.ErrorIs(t, err, models.ErrDataAlignment)
	})

	t.Run("empty series is rejected", func(t *testing.T) {
		_, err := NewBacktestRunner("ACME", nil, nil, 1000, modelOnlyConfig())
		assert.ErrorIs(t, err, models.ErrNoBarsInRange)
	})

	t.Run("identical inputs produce identical results", func(t *testing.T) {
		prices := []float64{100, 104, 108, 103, 99, 101}
		scores := []float64{0.9, 0.1, -0.2, -0.8, 0.6, 0}

		run := func() *RunResult {
			bars, signals := dailySeries(prices, scores)
			runner, err := NewBacktestRunner("ACME", bars, signals, 5000, modelOnlyConfig())
			assert.NoError(t, err)

			result, err := runner.Run(context.Background())
			assert.NoError(t, err)
			return result
		}

		first := run()
		second := run()

		assert.Equal(t, first.EquityCurve, second.EquityCurve)
		assert.Equal(t, first.Trades, second.Trades)
		assert.Equal(t, first.FinalLedger, second.FinalLedger)
	})

	t.Run("truncating the series never changes the shared prefix", func(t *testing.T) {
		prices := []float64{100, 104, 108, 103, 99, 101, 97, 105}
		scores := []float64{0.9, 0.1, -0.2, -0.8, 0.6, 0, -0.9, 0.3}

		config := modelOnlyConfig()
		config.CloseOutOnFinalBar = false

		run := func(n int) models.EquityCurve {
			bars, signals := dailySeries(prices[:n], scores[:n])
			runner, err := NewBacktestRunner("ACME", bars, signals, 5000, config)
			assert.NoError(t, err)

			result, err := runner.Run(context.Background())
			assert.NoError(t, err)
			return result.EquityCurve
		}

		full := run(len(prices))
		truncated := run(5)

		assert.Equal(t, full[:5], truncated)
	})

	t.Run("cancellation aborts at the day boundary", func(t *testing.T) {
		bars, signals := dailySeries(
			[]float64{100, 105, 95},
			[]float64{1, 0, -1},
		)

		runner, err := NewBacktestRunner("ACME", bars, signals, 1000, modelOnlyConfig())
		assert.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := runner.Run(ctx)
		assert.ErrorIs(t, err, models.ErrRunAborted)
		assert.Nil(t, result)
		assert.Equal(t, models.RunStatusFailed, runner.Status())
	})

	t.Run("a terminal run cannot be replayed", func(t *testing.T) {
		bars, signals := dailySeries([]float64{100, 101}, []float64{0, 0})

		runner, err := NewBacktestRunner("ACME", bars, signals, 1000, modelOnlyConfig())
		assert.NoError(t, err)

		_, err = runner.Run(context.Background())
		assert.NoError(t, err)

		_, err = runner.Run(context.Background())
		assert.Error(t, err)
	})

	t.Run("same-close timing fills the same day", func(t *testing.T) {
		config := modelOnlyConfig()
		config.Timing = models.ExecutionTimingSameClose

		bars, signals := dailySeries(
			[]float64{100, 105},
			[]float64{1, -1},
		)
		// distinct open and close so the fill price proves the timing rule
		bars[0].Open = 98

		runner, err := NewBacktestRunner("ACME", bars, signals, 1000, config)
		assert.NoError(t, err)

		result, err := runner.Run(context.Background())
		assert.NoError(t, err)

		assert.Len(t, result.Trades, 2)
		assert.Equal(t, 100.0, result.Trades[0].Price)
		assert.Equal(t, 105.0, result.Trades[1].Price)
		assert.Equal(t, 0.0, result.FinalLedger.PositionQty)
	})
}
