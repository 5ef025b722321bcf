package main

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quantlab/backtest-engine/src/api"
	"github.com/quantlab/backtest-engine/src/eventpubsub"
	"github.com/quantlab/backtest-engine/src/feed"
	"github.com/quantlab/backtest-engine/src/logger"
	"github.com/quantlab/backtest-engine/src/models"
	"github.com/quantlab/backtest-engine/src/signals"
	"github.com/quantlab/backtest-engine/src/store"
	"github.com/quantlab/backtest-engine/src/telemetry"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve backtest runs over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		configPath, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		predictionsDir, _ := cmd.Flags().GetString("predictions-dir")
		sentimentDir, _ := cmd.Flags().GetString("sentiment-dir")
		outDir, _ := cmd.Flags().GetString("outDir")
		resultsDB, _ := cmd.Flags().GetString("results-db")
		withTelemetry, _ := cmd.Flags().GetBool("telemetry")

		logger.Init(withTelemetry)
		eventpubsub.Init()

		ctx := context.Background()

		if withTelemetry {
			shutdown, err := telemetry.SetupOTelSDK(ctx, "backtest-engine")
			if err != nil {
				log.Fatalf("failed to set up telemetry: %v", err)
			}
			defer shutdown(ctx)
		}

		config := models.DefaultBacktestConfig()
		if configPath != "" {
			var err error
			config, err = models.LoadBacktestConfig(configPath)
			if err != nil {
				log.Fatalf("invalid config: %v", err)
			}
		}

		resultsStore, err := store.NewSQLiteStore(resultsDB)
		if err != nil {
			log.Fatalf("failed to open results store: %v", err)
		}
		defer resultsStore.Close()

		barFeed := feed.NewCsvBarFeed(dataDir)
		signalSource := signals.NewCsvSignalSource(predictionsDir, sentimentDir)

		server := api.NewServer(barFeed, signalSource, resultsStore, config, outDir, resultsDB)
		if err := server.ListenAndServe(port); err != nil {
			log.Fatalf("server exited: %v", err)
		}
	},
}

func main() {
	serverCmd.PersistentFlags().Int("port", 8080, "HTTP listen port.")
	serverCmd.PersistentFlags().String("config", "", "Path to a YAML file with weights, thresholds and the fee model.")
	serverCmd.PersistentFlags().String("data-dir", "data/bars", "Directory with per-ticker bar CSV artifacts.")
	serverCmd.PersistentFlags().String("predictions-dir", "data/predictions", "Directory with per-ticker model prediction artifacts.")
	serverCmd.PersistentFlags().String("sentiment-dir", "data/sentiment", "Directory with per-ticker news sentiment artifacts.")
	serverCmd.PersistentFlags().String("outDir", "results", "The directory to write export artifacts to.")
	serverCmd.PersistentFlags().String("results-db", "results/backtests.db", "SQLite database for run persistence.")
	serverCmd.PersistentFlags().Bool("telemetry", false, "Enable OpenTelemetry tracing and metrics.")

	if err := serverCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
