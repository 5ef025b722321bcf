package service

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/quantlab/backtest-engine/src/backtest"
	"github.com/quantlab/backtest-engine/src/feed"
	"github.com/quantlab/backtest-engine/src/indicators"
	"github.com/quantlab/backtest-engine/src/models"
	"github.com/quantlab/backtest-engine/src/report"
	"github.com/quantlab/backtest-engine/src/signals"
	"github.com/quantlab/backtest-engine/src/store"
)

type RunBacktestArgs struct {
	Ticker         string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	Config         models.BacktestConfig

	ExportReport bool
	SaveResults  bool
	OutDir       string
	ResultsDB    string
}

type RunBacktestOutput struct {
	Result    *backtest.RunResult
	Report    *report.Report
	Artifacts []string
}

// RunBacktest wires the full pipeline for one run: load bars and signals,
// replay them through the runner, summarize, and optionally export or
// persist the outcome. Each call owns an independent ledger, so callers may
// run many tickers or parameter sets concurrently.
func RunBacktest(ctx context.Context, barFeed feed.BarFeed, signalSource signals.SignalSource, args RunBacktestArgs) (*RunBacktestOutput, error) {
	bars, err := barFeed.FetchBars(ctx, args.Ticker, args.Start, args.End)
	if err != nil {
		return nil, fmt.Errorf("RunBacktest: %w", err)
	}

	signalSeries, err := signalSource.Produce(ctx, args.Ticker, args.Start, args.End)
	if err != nil {
		return nil, fmt.Errorf("RunBacktest: %w", err)
	}

	if err := indicators.DeriveFlags(bars, signalSeries); err != nil {
		return nil, fmt.Errorf("RunBacktest: %w", err)
	}

	runner, err := backtest.NewBacktestRunner(args.Ticker, bars, signalSeries, args.InitialCapital, args.Config)
	if err != nil {
		return nil, fmt.Errorf("RunBacktest: %w", err)
	}

	result, err := runner.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("RunBacktest: %w", err)
	}

	rpt, err := report.Summarize(result.EquityCurve, result.Trades, result.InitialCapital, args.Config.RiskFreeRate)
	if err != nil {
		return nil, fmt.Errorf("RunBacktest: %w", err)
	}

	output := &RunBacktestOutput{
		Result: result,
		Report: rpt,
	}

	if args.ExportReport {
		name := fmt.Sprintf("%s-%s", args.Ticker, result.RunID)

		reportFile, err := report.ExportReport(rpt, args.OutDir, name)
		if err != nil {
			return nil, fmt.Errorf("RunBacktest: %w", err)
		}
		output.Artifacts = append(output.Artifacts, reportFile)

		equityFile, err := report.ExportEquityCurve(result.EquityCurve, args.OutDir, name)
		if err != nil {
			return nil, fmt.Errorf("RunBacktest: %w", err)
		}
		output.Artifacts = append(output.Artifacts, equityFile)

		tradesFile, err := report.ExportTrades(result.Trades, args.OutDir, name)
		if err != nil {
			return nil, fmt.Errorf("RunBacktest: %w", err)
		}
		output.Artifacts = append(output.Artifacts, tradesFile)
	}

	if args.SaveResults {
		resultsStore, err := store.NewSQLiteStore(args.ResultsDB)
		if err != nil {
			return nil, fmt.Errorf("RunBacktest: %w", err)
		}

		defer resultsStore.Close()

		if err := resultsStore.SaveRun(ctx, result, rpt); err != nil {
			return nil, fmt.Errorf("RunBacktest: %w", err)
		}
	}

	log.WithFields(log.Fields{
		"run_id":       result.RunID,
		"ticker":       args.Ticker,
		"total_return": rpt.TotalReturn,
	}).Info("backtest finished")

	return output, nil
}

// Predict runs the same signal pipeline as a backtest on the latest aligned
// trading day, without any capital simulation.
func Predict(ctx context.Context, barFeed feed.BarFeed, signalSource signals.SignalSource, ticker string, start, end time.Time, config models.BacktestConfig) (*models.Decision, error) {
	bars, err := barFeed.FetchBars(ctx, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("Predict: %w", err)
	}

	signalSeries, err := signalSource.Produce(ctx, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("Predict: %w", err)
	}

	if len(signalSeries) == 0 {
		return nil, fmt.Errorf("Predict: no signals for %s: %w", ticker, models.ErrDataAlignment)
	}

	if err := indicators.DeriveFlags(bars, signalSeries); err != nil {
		return nil, fmt.Errorf("Predict: %w", err)
	}

	lastBar := bars[len(bars)-1]
	lastSignal := signalSeries[len(signalSeries)-1]
	if !lastBar.Timestamp.Equal(lastSignal.Timestamp) {
		return nil, fmt.Errorf("Predict: latest bar %s vs signal %s: %w", lastBar.DateKey(), lastSignal.DateKey(), models.ErrDataAlignment)
	}

	aggregator, err := backtest.NewSignalAggregator(config)
	if err != nil {
		return nil, fmt.Errorf("Predict: %w", err)
	}

	return aggregator.Decide(lastBar, lastSignal)
}
