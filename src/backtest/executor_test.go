package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantlab/backtest-engine/src/eventpubsub"
	"github.com/quantlab/backtest-engine/src/models"
)

func TestExecutionSimulator(t *testing.T) {
	day := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	bar := &models.Bar{Timestamp: day, Open: 100, High: 106, Low: 99, Close: 105}

	t.Run("buy fills at the open under next-open timing", func(t *testing.T) {
		executor, err := NewExecutionSimulator(modelOnlyConfig())
		assert.NoError(t, err)

		ledger, err := models.NewLedger(1000)
		assert.NoError(t, err)

		decision := &models.Decision{Timestamp: day, Action: models.TradeActionBuy, TargetWeight: 1.0, Confidence: 1.0}

		fill, err := executor.Fill(decision, bar, ledger)
		assert.NoError(t, err)
		assert.NotNil(t, fill)

		assert.Equal(t, 100.0, fill.Price)
		assert.Equal(t, 10.0, fill.Quantity)
		assert.Equal(t, 0.0, ledger.Cash)
	})

	t.Run("buy fills at the close under same-close timing", func(t *testing.T) {
		config := modelOnlyConfig()
		config.Timing = models.ExecutionTimingSameClose

		executor, err := NewExecutionSimulator(config)
		assert.NoError(t, err)

		ledger, err := models.NewLedger(1000)
		assert.NoError(t, err)

		decision := &models.Decision{Timestamp: day, Action: models.TradeActionBuy, TargetWeight: 1.0, Confidence: 1.0}

		fill, err := executor.Fill(decision, bar, ledger)
		assert.NoError(t, err)
		assert.NotNil(t, fill)

		assert.Equal(t, 105.0, fill.Price)
		assert.Equal(t, 9.0, fill.Quantity)
	})

	t.Run("buy sizes down so cash plus fees never overdraw", func(t *testing.T) {
		config := modelOnlyConfig()
		config.Fees = models.FeeModel{Type: models.FeeModelProportional, Bps: 50}

		executor, err := NewExecutionSimulator(config)
		assert.NoError(t, err)

		ledger, err := models.NewLedger(1000)
		assert.NoError(t, err)

		decision := &models.Decision{Timestamp: day, Action: models.TradeActionBuy, TargetWeight: 1.0, Confidence: 1.0}

		// 10 shares at 100 would cost 1005 with fees; the simulator must
		// settle for 9.
		fill, err := executor.Fill(decision, bar, ledger)
		assert.NoError(t, err)
		assert.NotNil(t, fill)

		assert.Equal(t, 9.0, fill.Quantity)
		assert.GreaterOrEqual(t, ledger.Cash, 0.0)
		assert.NoError(t, ledger.CheckInvariants())
	})

	t.Run("buy that cannot afford one share is a recoverable no-op", func(t *testing.T) {
		eventpubsub.Init()

		skipped := make(chan *models.Decision, 1)
		assert.NoError(t, eventpubsub.Subscribe(eventpubsub.OrderSkippedEvent, func(d *models.Decision) {
			skipped <- d
		}))

		executor, err := NewExecutionSimulator(modelOnlyConfig())
		assert.NoError(t, err)

		ledger, err := models.NewLedger(50)
		assert.NoError(t, err)

		decision := &models.Decision{Timestamp: day, Action: models.TradeActionBuy, TargetWeight: 1.0, Confidence: 1.0}

		fill, err := executor.Fill(decision, bar, ledger)
		assert.NoError(t, err)
		assert.Nil(t, fill)

		assert.Equal(t, 50.0, ledger.Cash)
		assert.Equal(t, 0.0, ledger.PositionQty)

		select {
		case d := <-skipped:
			assert.Equal(t, models.TradeActionBuy, d.Action)
		case <-time.After(time.Second):
			t.Fatal("expected an order skipped event")
		}
	})

	t.Run("sell without a position is a no-op", func(t *testing.T) {
		executor, err := NewExecutionSimulator(modelOnlyConfig())
		assert.NoError(t, err)

		ledger, err := models.NewLedger(1000)
		assert.NoError(t, err)

		decision := &models.Decision{Timestamp: day, Action: models.TradeActionSell, TargetWeight: 1.0, Confidence: -1.0}

		fill, err := executor.Fill(decision, bar, ledger)
		assert.NoError(t, err)
		assert.Nil(t, fill)

		assert.Equal(t, 1000.0, ledger.Cash)
	})

	t.Run("sell clamps to the open position", func(t *testing.T) {
		executor, err := NewExecutionSimulator(modelOnlyConfig())
		assert.NoError(t, err)

		ledger, err := models.NewLedger(1000)
		assert.NoError(t, err)
		assert.NoError(t, ledger.Apply(&models.Fill{Timestamp: day, Action: models.TradeActionBuy, Quantity: 5, Price: 100}))

		decision := &models.Decision{Timestamp: day, Action: models.TradeActionSell, TargetWeight: 1.0, Confidence: -1.0}

		fill, err := executor.Fill(decision, bar, ledger)
		assert.NoError(t, err)
		assert.NotNil(t, fill)

		assert.Equal(t, 5.0, fill.Quantity)
		assert.Equal(t, 0.0, ledger.PositionQty)
	})

	t.Run("hold never touches the ledger", func(t *testing.T) {
		executor, err := NewExecutionSimulator(modelOnlyConfig())
		assert.NoError(t, err)

		ledger, err := models.NewLedger(1000)
		assert.NoError(t, err)

		fill, err := executor.Fill(models.NewHoldDecision(day, 0), bar, ledger)
		assert.NoError(t, err)
		assert.Nil(t, fill)

		assert.Equal(t, 1000.0, ledger.Cash)
	})

	t.Run("close out sells at the final close", func(t *testing.T) {
		executor, err := NewExecutionSimulator(modelOnlyConfig())
		assert.NoError(t, err)

		ledger, err := models.NewLedger(1000)
		assert.NoError(t, err)
		assert.NoError(t, ledger.Apply(&models.Fill{Timestamp: day, Action: models.TradeActionBuy, Quantity: 5, Price: 100}))

		decision := &models.Decision{Timestamp: day, Action: models.TradeActionSell, TargetWeight: 1.0, Confidence: -1.0}

		fill, err := executor.CloseOut(decision, bar, ledger)
		assert.NoError(t, err)
		assert.NotNil(t, fill)

		assert.Equal(t, 105.0, fill.Price)
		assert.Equal(t, 0.0, ledger.PositionQty)
	})

	t.Run("close out drops a pending buy", func(t *testing.T) {
		executor, err := NewExecutionSimulator(modelOnlyConfig())
		assert.NoError(t, err)

		ledger, err := models.NewLedger(1000)
		assert.NoError(t, err)

		decision := &models.Decision{Timestamp: day, Action: models.TradeActionBuy, TargetWeight: 1.0, Confidence: 1.0}

		fill, err := executor.CloseOut(decision, bar, ledger)
		assert.NoError(t, err)
		assert.Nil(t, fill)

		assert.Equal(t, 1000.0, ledger.Cash)
	})

	t.Run("non-positive execution price is fatal", func(t *testing.T) {
		executor, err := NewExecutionSimulator(modelOnlyConfig())
		assert.NoError(t, err)

		ledger, err := models.NewLedger(1000)
		assert.NoError(t, err)

		badBar := &models.Bar{Timestamp: day, Open: 0, High: 1, Low: 0, Close: 1}
		decision := &models.Decision{Timestamp: day, Action: models.TradeActionBuy, TargetWeight: 1.0, Confidence: 1.0}

		_, err = executor.Fill(decision, badBar, ledger)
		assert.ErrorIs(t, err, models.ErrInvalidFillPrice)
	})
}
