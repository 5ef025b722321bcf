package models

import (
	"fmt"
	"time"
)

// Indicator flag names attached to signals by the composite source.
const (
	FlagBullishCrossover = "bullish_crossover"
	FlagBearishCrossover = "bearish_crossover"
	FlagOverbought       = "overbought"
	FlagOversold         = "oversold"
)

// Signal is the per-day output of the model/sentiment/indicator analysis,
// time-aligned so that a signal dated D only contains information available
// at or before the close of D.
type Signal struct {
	Timestamp      time.Time
	ModelScore     float64
	SentimentScore float64
	IndicatorFlags map[string]bool
}

func (s *Signal) DateKey() string {
	return s.Timestamp.Format("2006-01-02")
}

func (s *Signal) HasFlag(name string) bool {
	if s.IndicatorFlags == nil {
		return false
	}

	return s.IndicatorFlags[name]
}

func (s *Signal) Validate() error {
	if s.ModelScore < -1 || s.ModelScore > 1 {
		return fmt.Errorf("Signal.Validate: model score %.4f out of [-1, 1] on %s", s.ModelScore, s.DateKey())
	}

	if s.SentimentScore < -1 || s.SentimentScore > 1 {
		return fmt.Errorf("Signal.Validate: sentiment score %.4f out of [-1, 1] on %s", s.SentimentScore, s.DateKey())
	}

	return nil
}

type Signals []*Signal

func (signals Signals) Validate() error {
	for i, s := range signals {
		if err := s.Validate(); err != nil {
			return err
		}

		if i > 0 && !signals[i-1].Timestamp.Before(s.Timestamp) {
			return fmt.Errorf("Signals.Validate: %s follows %s: %w", s.DateKey(), signals[i-1].DateKey(), ErrNonMonotonicBars)
		}
	}

	return nil
}
