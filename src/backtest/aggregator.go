package backtest

import (
	"fmt"
	"math"

	"github.com/quantlab/backtest-engine/src/models"
)

// SignalAggregator combines indicator posture, the model's direction score
// and the news sentiment score into a single discrete decision. Decide is a
// pure function of its inputs; all weights and thresholds come from the
// run's configuration.
type SignalAggregator struct {
	config models.BacktestConfig
}

func NewSignalAggregator(config models.BacktestConfig) (*SignalAggregator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("NewSignalAggregator: %w", err)
	}

	return &SignalAggregator{config: config}, nil
}

func (a *SignalAggregator) Decide(bar *models.Bar, signal *models.Signal) (*models.Decision, error) {
	if !bar.Timestamp.Equal(signal.Timestamp) {
		return nil, fmt.Errorf("SignalAggregator.Decide: bar %s vs signal %s: %w", bar.DateKey(), signal.DateKey(), models.ErrDateMismatch)
	}

	indicatorScore := scoreIndicators(bar, signal)

	totalWeight := a.config.ModelWeight + a.config.SentimentWeight + a.config.IndicatorWeight
	confidence := (a.config.ModelWeight*signal.ModelScore +
		a.config.SentimentWeight*signal.SentimentScore +
		a.config.IndicatorWeight*indicatorScore) / totalWeight

	decision := &models.Decision{
		Timestamp:  bar.Timestamp,
		Action:     models.TradeActionHold,
		Confidence: confidence,
	}

	if confidence >= a.config.BuyThreshold {
		decision.Action = models.TradeActionBuy
		decision.TargetWeight = a.config.BaseAllocation * math.Min(1, math.Abs(confidence))
	} else if confidence <= a.config.SellThreshold {
		// Sells unwind the whole position. Partial unwinds would leave
		// residue positions that never clear under integer share sizing.
		decision.Action = models.TradeActionSell
		decision.TargetWeight = 1.0
	}

	return decision, nil
}

// scoreIndicators maps indicator values and upstream flags to a score in
// [-1, 1]. Rules: SMA-50 above SMA-200 is bullish posture, close above
// SMA-50 confirms it, RSI outside the 30/70 band mean-reverts, and explicit
// crossover flags from the signal pipeline carry the largest weight.
func scoreIndicators(bar *models.Bar, signal *models.Signal) float64 {
	score := 0.0

	if smaFast, ok := bar.Indicator(models.IndicatorSma50); ok {
		if smaSlow, ok := bar.Indicator(models.IndicatorSma200); ok {
			if smaFast > smaSlow {
				score += 0.25
			} else if smaFast < smaSlow {
				score -= 0.25
			}
		}

		if bar.Close > smaFast {
			score += 0.25
		} else if bar.Close < smaFast {
			score -= 0.25
		}
	}

	if rsi, ok := bar.Indicator(models.IndicatorRsi14); ok {
		if rsi < 30 {
			score += 0.25
		} else if rsi > 70 {
			score -= 0.25
		}
	}

	if signal.HasFlag(models.FlagBullishCrossover) || signal.HasFlag(models.FlagOversold) {
		score += 0.5
	}

	if signal.HasFlag(models.FlagBearishCrossover) || signal.HasFlag(models.FlagOverbought) {
		score -= 0.5
	}

	return math.Max(-1, math.Min(1, score))
}
