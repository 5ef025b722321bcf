package models

import (
	"fmt"
	"time"
)

// Ledger is the single source of truth for capital state during a run. It is
// mutated at most once per trading day, by applying a Fill. Apply validates
// the resulting state before mutating, so a rejected fill leaves the ledger
// untouched.
type Ledger struct {
	InitialCapital float64 `json:"initial_capital"`
	Cash           float64 `json:"cash"`
	PositionQty    float64 `json:"position_qty"`
	AvgCostBasis   float64 `json:"avg_cost_basis"`
	RealizedPnL    float64 `json:"realized_pnl"`
}

func NewLedger(initialCapital float64) (*Ledger, error) {
	if initialCapital <= 0 {
		return nil, fmt.Errorf("NewLedger: initial capital must be greater than 0, got %.2f: %w", initialCapital, ErrInvalidConfiguration)
	}

	return &Ledger{
		InitialCapital: initialCapital,
		Cash:           initialCapital,
	}, nil
}

func (l *Ledger) Apply(fill *Fill) error {
	if fill == nil {
		return nil
	}

	if fill.Price <= 0 {
		return fmt.Errorf("Ledger.Apply: %w", ErrInvalidFillPrice)
	}

	if fill.Quantity <= 0 {
		return fmt.Errorf("Ledger.Apply: quantity must be greater than 0, got %.4f", fill.Quantity)
	}

	switch fill.Action {
	case TradeActionBuy:
		return l.applyBuy(fill)
	case TradeActionSell:
		return l.applySell(fill)
	case TradeActionHold:
		return nil
	default:
		return fmt.Errorf("Ledger.Apply: unknown action %s", fill.Action)
	}
}

func (l *Ledger) applyBuy(fill *Fill) error {
	cost := fill.Notional() + fill.Fees
	newCash := l.Cash - cost
	if newCash < 0 {
		return fmt.Errorf("Ledger.applyBuy: cash would go negative (%.2f) on %s: %w", newCash, fill.Timestamp.Format("2006-01-02"), ErrLedgerInvariantBreached)
	}

	newQty := l.PositionQty + fill.Quantity
	l.AvgCostBasis = (l.AvgCostBasis*l.PositionQty + cost) / newQty
	l.PositionQty = newQty
	l.Cash = newCash

	return nil
}

func (l *Ledger) applySell(fill *Fill) error {
	newQty := l.PositionQty - fill.Quantity
	if newQty < 0 {
		return fmt.Errorf("Ledger.applySell: position would go negative (%.4f) on %s: %w", newQty, fill.Timestamp.Format("2006-01-02"), ErrLedgerInvariantBreached)
	}

	proceeds := fill.Notional() - fill.Fees
	l.RealizedPnL += proceeds - l.AvgCostBasis*fill.Quantity
	l.Cash += proceeds
	l.PositionQty = newQty

	if l.PositionQty == 0 {
		l.AvgCostBasis = 0
	}

	return nil
}

// MarkToMarket computes the equity snapshot at the given price. It never
// mutates the ledger.
func (l *Ledger) MarkToMarket(timestamp time.Time, price float64) *EquityPoint {
	positionValue := l.PositionQty * price

	return &EquityPoint{
		Timestamp:     timestamp,
		TotalEquity:   l.Cash + positionValue,
		Cash:          l.Cash,
		PositionValue: positionValue,
	}
}

func (l *Ledger) UnrealizedPnL(price float64) float64 {
	return (price - l.AvgCostBasis) * l.PositionQty
}

// CheckInvariants verifies the long-only accounting invariants. A violation
// indicates a defect in the execution simulator, not user error.
func (l *Ledger) CheckInvariants() error {
	if l.Cash < 0 {
		return fmt.Errorf("Ledger.CheckInvariants: cash is negative (%.2f): %w", l.Cash, ErrLedgerInvariantBreached)
	}

	if l.PositionQty < 0 {
		return fmt.Errorf("Ledger.CheckInvariants: position is negative (%.4f): %w", l.PositionQty, ErrLedgerInvariantBreached)
	}

	return nil
}
