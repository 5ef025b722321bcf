package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/quantlab/backtest-engine/src/eventpubsub"
	"github.com/quantlab/backtest-engine/src/models"
)

// RunResult is the immutable outcome of a completed run, handed to the
// performance reporter. Failed runs never produce a result.
type RunResult struct {
	RunID          uuid.UUID             `json:"run_id"`
	Ticker         string                `json:"ticker"`
	StartDate      time.Time             `json:"start_date"`
	EndDate        time.Time             `json:"end_date"`
	InitialCapital float64               `json:"initial_capital"`
	Config         models.BacktestConfig `json:"config"`
	FinalLedger    models.Ledger         `json:"final_ledger"`
	EquityCurve    models.EquityCurve    `json:"equity_curve"`
	Trades         []*models.TradeRecord `json:"trades"`
}

// BacktestRunner drives the day-by-day loop. The loop is strictly
// sequential: each day's decision and fill depend on the prior day's ledger
// state. Parallelism belongs across runs, never inside one.
type BacktestRunner struct {
	ID     uuid.UUID
	Ticker string

	config     models.BacktestConfig
	aggregator *SignalAggregator
	executor   *ExecutionSimulator
	ledger     *models.Ledger
	bars       models.Bars
	signals    models.Signals

	status      models.RunStatus
	equityCurve models.EquityCurve
	trades      []*models.TradeRecord
	failure     error

	// index of the bar where the current position was opened, -1 when flat
	entryIndex int
}

func NewBacktestRunner(ticker string, bars models.Bars, signals models.Signals, initialCapital float64, config models.BacktestConfig) (*BacktestRunner, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("NewBacktestRunner: %w", err)
	}

	ledger, err := models.NewLedger(initialCapital)
	if err != nil {
		return nil, fmt.Errorf("NewBacktestRunner: %w", err)
	}

	if err := bars.Validate(); err != nil {
		return nil, fmt.Errorf("NewBacktestRunner: %w", err)
	}

	if err := signals.Validate(); err != nil {
		return nil, fmt.Errorf("NewBacktestRunner: %w", err)
	}

	if err := checkAlignment(bars, signals); err != nil {
		return nil, err
	}

	aggregator, err := NewSignalAggregator(config)
	if err != nil {
		return nil, err
	}

	executor, err := NewExecutionSimulator(config)
	if err != nil {
		return nil, err
	}

	return &BacktestRunner{
		ID:         uuid.New(),
		Ticker:     ticker,
		config:     config,
		aggregator: aggregator,
		executor:   executor,
		ledger:     ledger,
		bars:       bars,
		signals:    signals,
		status:     models.RunStatusInitialized,
		entryIndex: -1,
	}, nil
}

// checkAlignment requires the bar and signal date sets to match exactly over
// the run's range. A bar without a signal, or a signal without a bar, is a
// fatal precondition violation.
func checkAlignment(bars models.Bars, signals models.Signals) error {
	if len(bars) == 0 {
		return models.ErrNoBarsInRange
	}

	barDates := make(map[string]bool, len(bars))
	for _, b := range bars {
		barDates[b.DateKey()] = true
	}

	signalDates := make(map[string]bool, len(signals))
	for _, s := range signals {
		signalDates[s.DateKey()] = true
		if !barDates[s.DateKey()] {
			return fmt.Errorf("checkAlignment: signal %s has no matching bar: %w", s.DateKey(), models.ErrDataAlignment)
		}
	}

	for _, b := range bars {
		if !signalDates[b.DateKey()] {
			return fmt.Errorf("checkAlignment: bar %s has no matching signal: %w", b.DateKey(), models.ErrDataAlignment)
		}
	}

	return nil
}

func (r *BacktestRunner) Status() models.RunStatus {
	return r.status
}

// LastEquityPoint exposes the last-known-good snapshot of a failed run for
// post-mortem diagnostics. It is nil until the first day completes.
func (r *BacktestRunner) LastEquityPoint() *models.EquityPoint {
	if len(r.equityCurve) == 0 {
		return nil
	}

	return r.equityCurve[len(r.equityCurve)-1]
}

// Run replays the bar series through the decision pipeline. The unit of
// atomicity is one trading day: a fatal error between steps discards the
// partial day and fails the run. Cancellation is honored at the day
// boundary only.
func (r *BacktestRunner) Run(ctx context.Context) (*RunResult, error) {
	if r.status.IsTerminal() {
		return nil, fmt.Errorf("BacktestRunner.Run: run %s already %s", r.ID, r.status)
	}

	r.status = models.RunStatusRunning
	eventpubsub.Publish(eventpubsub.RunStartedEvent, r.ID)

	log.WithFields(log.Fields{
		"run_id": r.ID,
		"ticker": r.Ticker,
		"bars":   len(r.bars),
	}).Info("backtest run started")

	var pending *models.Decision

	for i, bar := range r.bars {
		select {
		case <-ctx.Done():
			return nil, r.fail(fmt.Errorf("BacktestRunner.Run: %w: %v", models.ErrRunAborted, ctx.Err()))
		default:
		}

		// 1. execute the decision carried over from the prior day
		if r.config.Timing == models.ExecutionTimingNextOpen {
			if err := r.execute(pending, bar, i); err != nil {
				return nil, r.fail(err)
			}
			pending = nil
		}

		// 2. derive today's decision from today's bar and signal only
		decision, err := r.aggregator.Decide(bar, r.signals[i])
		if err != nil {
			return nil, r.fail(err)
		}

		isFinalBar := i == len(r.bars)-1

		switch {
		case r.config.Timing == models.ExecutionTimingSameClose:
			if err := r.execute(decision, bar, i); err != nil {
				return nil, r.fail(err)
			}
		case isFinalBar:
			// No next bar exists. A sell may close out at the final
			// close when configured; a buy is always dropped.
			if r.config.CloseOutOnFinalBar {
				if err := r.closeOut(decision, bar, i); err != nil {
					return nil, r.fail(err)
				}
			}
		default:
			pending = decision
		}

		// 3. record the equity-curve point at today's close
		r.equityCurve = append(r.equityCurve, r.ledger.MarkToMarket(bar.Timestamp, bar.Close))
	}

	r.status = models.RunStatusCompleted
	eventpubsub.Publish(eventpubsub.RunCompletedEvent, r.ID)

	log.WithFields(log.Fields{
		"run_id":       r.ID,
		"trades":       len(r.trades),
		"final_equity": r.equityCurve[len(r.equityCurve)-1].TotalEquity,
	}).Info("backtest run completed")

	return r.result(), nil
}

func (r *BacktestRunner) execute(decision *models.Decision, execBar *models.Bar, barIndex int) error {
	pnlBefore := r.ledger.RealizedPnL
	qtyBefore := r.ledger.PositionQty

	fill, err := r.executor.Fill(decision, execBar, r.ledger)
	if err != nil {
		return err
	}

	return r.record(fill, pnlBefore, qtyBefore, barIndex)
}

func (r *BacktestRunner) closeOut(decision *models.Decision, finalBar *models.Bar, barIndex int) error {
	pnlBefore := r.ledger.RealizedPnL
	qtyBefore := r.ledger.PositionQty

	fill, err := r.executor.CloseOut(decision, finalBar, r.ledger)
	if err != nil {
		return err
	}

	return r.record(fill, pnlBefore, qtyBefore, barIndex)
}

func (r *BacktestRunner) record(fill *models.Fill, pnlBefore, qtyBefore float64, barIndex int) error {
	if fill == nil {
		return nil
	}

	if err := r.ledger.CheckInvariants(); err != nil {
		return err
	}

	holdingDays := 0
	realizedPnL := 0.0

	switch fill.Action {
	case models.TradeActionBuy:
		if qtyBefore == 0 {
			r.entryIndex = barIndex
		}
	case models.TradeActionSell:
		realizedPnL = r.ledger.RealizedPnL - pnlBefore
		if r.entryIndex >= 0 {
			holdingDays = barIndex - r.entryIndex
		}
		if r.ledger.PositionQty == 0 {
			r.entryIndex = -1
		}
	}

	r.trades = append(r.trades, models.NewTradeRecord(fill, realizedPnL, holdingDays))
	eventpubsub.Publish(eventpubsub.OrderFilledEvent, fill)

	log.WithFields(log.Fields{
		"date":     fill.Timestamp.Format("2006-01-02"),
		"action":   fill.Action,
		"quantity": fill.Quantity,
		"price":    fill.Price,
		"fees":     fill.Fees,
	}).Debug("fill executed")

	return nil
}

// fail transitions the run to its terminal failed state. Partial results are
// discarded; only the last-known-good equity point survives for diagnostics.
func (r *BacktestRunner) fail(err error) error {
	r.status = models.RunStatusFailed
	r.failure = err
	eventpubsub.Publish(eventpubsub.RunFailedEvent, err)

	last := r.LastEquityPoint()
	fields := log.Fields{"run_id": r.ID}
	if last != nil {
		fields["last_good_date"] = last.Timestamp.Format("2006-01-02")
		fields["last_good_equity"] = last.TotalEquity
	}
	log.WithFields(fields).Errorf("backtest run failed: %v", err)

	r.equityCurve = nil
	r.trades = nil

	return err
}

func (r *BacktestRunner) result() *RunResult {
	return &RunResult{
		RunID:          r.ID,
		Ticker:         r.Ticker,
		StartDate:      r.bars[0].Timestamp,
		EndDate:        r.bars[len(r.bars)-1].Timestamp,
		InitialCapital: r.ledger.InitialCapital,
		Config:         r.config,
		FinalLedger:    *r.ledger,
		EquityCurve:    r.equityCurve,
		Trades:         r.trades,
	}
}
