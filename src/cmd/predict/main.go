package main

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quantlab/backtest-engine/src/feed"
	"github.com/quantlab/backtest-engine/src/logger"
	"github.com/quantlab/backtest-engine/src/models"
	"github.com/quantlab/backtest-engine/src/service"
	"github.com/quantlab/backtest-engine/src/signals"
	"github.com/quantlab/backtest-engine/src/utils"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Derive today's trading decision from the latest bar and signal",
	Run: func(cmd *cobra.Command, args []string) {
		ticker, _ := cmd.Flags().GetString("ticker")
		lookback, _ := cmd.Flags().GetInt("lookback")
		configPath, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		predictionsDir, _ := cmd.Flags().GetString("predictions-dir")
		sentimentDir, _ := cmd.Flags().GetString("sentiment-dir")

		logger.Init(false)

		config := models.DefaultBacktestConfig()
		if configPath != "" {
			var err error
			config, err = models.LoadBacktestConfig(configPath)
			if err != nil {
				log.Fatalf("invalid config: %v", err)
			}
		}

		end := time.Now().UTC().Truncate(24 * time.Hour)
		start := end.AddDate(0, 0, -lookback)

		barFeed := feed.NewCsvBarFeed(dataDir)
		signalSource := signals.NewCsvSignalSource(predictionsDir, sentimentDir)

		decision, err := service.Predict(context.Background(), barFeed, signalSource, ticker, start, end, config)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		fmt.Printf("%s %s: %s (confidence %.3f, target weight %.2f)\n",
			decision.Timestamp.Format(utils.DateLayout), ticker, decision.Action, decision.Confidence, decision.TargetWeight)
	},
}

func main() {
	predictCmd.PersistentFlags().String("ticker", "", "The ticker symbol to predict.")
	predictCmd.PersistentFlags().Int("lookback", 400, "Days of history to load for indicator warm-up.")
	predictCmd.PersistentFlags().String("config", "", "Path to a YAML file with weights and thresholds.")
	predictCmd.PersistentFlags().String("data-dir", "data/bars", "Directory with per-ticker bar CSV artifacts.")
	predictCmd.PersistentFlags().String("predictions-dir", "data/predictions", "Directory with per-ticker model prediction artifacts.")
	predictCmd.PersistentFlags().String("sentiment-dir", "data/sentiment", "Directory with per-ticker news sentiment artifacts.")

	predictCmd.MarkPersistentFlagRequired("ticker")

	if err := predictCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
