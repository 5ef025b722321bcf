package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quantlab/backtest-engine/src/eventpubsub"
	"github.com/quantlab/backtest-engine/src/feed"
	"github.com/quantlab/backtest-engine/src/logger"
	"github.com/quantlab/backtest-engine/src/models"
	"github.com/quantlab/backtest-engine/src/service"
	"github.com/quantlab/backtest-engine/src/signals"
	"github.com/quantlab/backtest-engine/src/utils"
)

// newBarFeed selects the bar source. The CSV artifact written by the
// data-analysis stage is the default; the remote vendor feeds exist for
// ranges the artifact does not cover.
func newBarFeed(source, dataDir string) (feed.BarFeed, error) {
	switch source {
	case "csv":
		return feed.NewCsvBarFeed(dataDir), nil
	case "polygon":
		apiKey := os.Getenv("POLYGON_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("newBarFeed: POLYGON_API_KEY environment variable not set")
		}
		return feed.NewPolygonBarFeed(apiKey), nil
	case "alpaca":
		apiKey := os.Getenv("ALPACA_API_KEY")
		apiSecret := os.Getenv("ALPACA_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			return nil, fmt.Errorf("newBarFeed: ALPACA_API_KEY / ALPACA_API_SECRET environment variables not set")
		}
		return feed.NewAlpacaBarFeed(apiKey, apiSecret, os.Getenv("ALPACA_DATA_URL")), nil
	default:
		return nil, fmt.Errorf("newBarFeed: unknown source %q", source)
	}
}

var runCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical bars and signals through the trading decision pipeline",
	Run: func(cmd *cobra.Command, args []string) {
		ticker, _ := cmd.Flags().GetString("ticker")
		startStr, _ := cmd.Flags().GetString("start")
		endStr, _ := cmd.Flags().GetString("end")
		initialCapital, _ := cmd.Flags().GetFloat64("initial-capital")
		exportReport, _ := cmd.Flags().GetBool("export-report")
		saveResults, _ := cmd.Flags().GetBool("save-results")
		outDir, _ := cmd.Flags().GetString("outDir")
		configPath, _ := cmd.Flags().GetString("config")
		source, _ := cmd.Flags().GetString("source")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		predictionsDir, _ := cmd.Flags().GetString("predictions-dir")
		sentimentDir, _ := cmd.Flags().GetString("sentiment-dir")
		resultsDB, _ := cmd.Flags().GetString("results-db")

		logger.Init(false)
		eventpubsub.Init()

		if source != "csv" {
			if err := utils.InitEnvironmentVariables(".", os.Getenv("GO_ENV")); err != nil {
				log.Warnf("no .env file loaded: %v", err)
			}
		}

		start, err := utils.ParseDate(startStr)
		if err != nil {
			log.Fatalf("invalid start date: %v", err)
		}

		end, err := utils.ParseDate(endStr)
		if err != nil {
			log.Fatalf("invalid end date: %v", err)
		}

		config := models.DefaultBacktestConfig()
		if configPath != "" {
			config, err = models.LoadBacktestConfig(configPath)
			if err != nil {
				log.Fatalf("invalid config: %v", err)
			}
		}

		barFeed, err := newBarFeed(source, dataDir)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		signalSource := signals.NewCsvSignalSource(predictionsDir, sentimentDir)

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		output, err := service.RunBacktest(ctx, barFeed, signalSource, service.RunBacktestArgs{
			Ticker:         ticker,
			Start:          start,
			End:            end,
			InitialCapital: initialCapital,
			Config:         config,
			ExportReport:   exportReport,
			SaveResults:    saveResults,
			OutDir:         outDir,
			ResultsDB:      resultsDB,
		})
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		fmt.Println(output.Report)
	},
}

func main() {
	runCmd.PersistentFlags().String("ticker", "", "The ticker symbol to backtest.")
	runCmd.PersistentFlags().String("start", "", "Start date (YYYY-MM-DD).")
	runCmd.PersistentFlags().String("end", "", "End date (YYYY-MM-DD).")
	runCmd.PersistentFlags().Float64("initial-capital", 0, "Initial capital for the simulated account.")
	runCmd.PersistentFlags().Bool("export-report", false, "Export the report, equity curve and trade log to --outDir.")
	runCmd.PersistentFlags().Bool("save-results", false, "Persist the run to the results database.")
	runCmd.PersistentFlags().String("outDir", "results", "The directory to write the output to.")
	runCmd.PersistentFlags().String("config", "", "Path to a YAML file with weights, thresholds and the fee model.")
	runCmd.PersistentFlags().String("source", "csv", "Bar source: csv, polygon or alpaca.")
	runCmd.PersistentFlags().String("data-dir", "data/bars", "Directory with per-ticker bar CSV artifacts.")
	runCmd.PersistentFlags().String("predictions-dir", "data/predictions", "Directory with per-ticker model prediction artifacts.")
	runCmd.PersistentFlags().String("sentiment-dir", "data/sentiment", "Directory with per-ticker news sentiment artifacts.")
	runCmd.PersistentFlags().String("results-db", "results/backtests.db", "SQLite database for --save-results.")

	runCmd.MarkPersistentFlagRequired("ticker")
	runCmd.MarkPersistentFlagRequired("start")
	runCmd.MarkPersistentFlagRequired("end")
	runCmd.MarkPersistentFlagRequired("initial-capital")

	if err := runCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
