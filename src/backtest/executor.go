package backtest

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/quantlab/backtest-engine/src/eventpubsub"
	"github.com/quantlab/backtest-engine/src/models"
)

// ExecutionSimulator turns decisions into simulated fills against the
// ledger. A decision derived from day D's bar is never filled at day D's
// close under the default timing rule; the runner hands in the correct
// execution bar for the configured timing.
type ExecutionSimulator struct {
	config models.BacktestConfig
}

func NewExecutionSimulator(config models.BacktestConfig) (*ExecutionSimulator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("NewExecutionSimulator: %w", err)
	}

	return &ExecutionSimulator{config: config}, nil
}

// Fill executes a decision against execBar, mutating the ledger exactly once
// if a fill occurs. A nil fill with a nil error is a hold-equivalent no-op:
// either the decision was a hold, a buy could not afford a single share
// (recoverable, logged), or a sell found no open position.
func (e *ExecutionSimulator) Fill(decision *models.Decision, execBar *models.Bar, ledger *models.Ledger) (*models.Fill, error) {
	if decision == nil || decision.Action == models.TradeActionHold {
		return nil, nil
	}

	price := execBar.Open
	if e.config.Timing == models.ExecutionTimingSameClose {
		price = execBar.Close
	}

	return e.fillAt(decision, price, execBar, ledger)
}

// CloseOut unwinds the open position at the final bar's close. Only sells
// are eligible; a buy pending on the final bar is dropped by the runner.
func (e *ExecutionSimulator) CloseOut(decision *models.Decision, finalBar *models.Bar, ledger *models.Ledger) (*models.Fill, error) {
	if decision == nil || decision.Action != models.TradeActionSell {
		return nil, nil
	}

	return e.fillAt(decision, finalBar.Close, finalBar, ledger)
}

func (e *ExecutionSimulator) fillAt(decision *models.Decision, price float64, execBar *models.Bar, ledger *models.Ledger) (*models.Fill, error) {
	if price <= 0 {
		return nil, fmt.Errorf("ExecutionSimulator.fillAt: %w", models.ErrInvalidFillPrice)
	}

	switch decision.Action {
	case models.TradeActionBuy:
		return e.fillBuy(decision, price, execBar, ledger)
	case models.TradeActionSell:
		return e.fillSell(decision, price, execBar, ledger)
	default:
		return nil, nil
	}
}

func (e *ExecutionSimulator) fillBuy(decision *models.Decision, price float64, execBar *models.Bar, ledger *models.Ledger) (*models.Fill, error) {
	budget := ledger.Cash * decision.TargetWeight

	quantity := math.Floor(budget / price)
	for quantity > 0 && quantity*price+e.config.Fees.Charge(quantity*price) > budget {
		quantity--
	}

	if quantity <= 0 {
		log.WithFields(log.Fields{
			"date":   execBar.DateKey(),
			"cash":   ledger.Cash,
			"price":  price,
			"weight": decision.TargetWeight,
		}).Warnf("ExecutionSimulator: %v", models.ErrInsufficientCapital)
		eventpubsub.Publish(eventpubsub.OrderSkippedEvent, decision)
		return nil, nil
	}

	fill := &models.Fill{
		Timestamp: execBar.Timestamp,
		Action:    models.TradeActionBuy,
		Quantity:  quantity,
		Price:     price,
		Fees:      e.config.Fees.Charge(quantity * price),
	}

	if err := ledger.Apply(fill); err != nil {
		return nil, fmt.Errorf("ExecutionSimulator.fillBuy: %w", err)
	}

	return fill, nil
}

func (e *ExecutionSimulator) fillSell(decision *models.Decision, price float64, execBar *models.Bar, ledger *models.Ledger) (*models.Fill, error) {
	if ledger.PositionQty <= 0 {
		log.Debugf("ExecutionSimulator: sell on %s skipped, no open position", execBar.DateKey())
		return nil, nil
	}

	desired := ledger.PositionQty * decision.TargetWeight
	quantity := math.Min(desired, ledger.PositionQty)
	if quantity <= 0 {
		return nil, nil
	}

	fill := &models.Fill{
		Timestamp: execBar.Timestamp,
		Action:    models.TradeActionSell,
		Quantity:  quantity,
		Price:     price,
		Fees:      e.config.Fees.Charge(quantity * price),
	}

	if err := ledger.Apply(fill); err != nil {
		return nil, fmt.Errorf("ExecutionSimulator.fillSell: %w", err)
	}

	return fill, nil
}
