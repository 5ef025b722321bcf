package models

import (
	"fmt"
	"time"
)

// Indicator column names produced by the upstream data-analysis stage.
const (
	IndicatorSma50  = "sma_50"
	IndicatorSma200 = "sma_200"
	IndicatorRsi14  = "rsi_14"
)

// Bar is one day of OHLCV market data plus the indicator values computed
// upstream. Bars are immutable once loaded.
type Bar struct {
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	Indicators map[string]float64
}

func (b *Bar) Indicator(name string) (float64, bool) {
	if b.Indicators == nil {
		return 0, false
	}

	value, found := b.Indicators[name]
	return value, found
}

func (b *Bar) DateKey() string {
	return b.Timestamp.Format("2006-01-02")
}

func (b *Bar) Validate() error {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("Bar.Validate: non-positive price on %s", b.DateKey())
	}

	if b.High < b.Low {
		return fmt.Errorf("Bar.Validate: high %.4f < low %.4f on %s", b.High, b.Low, b.DateKey())
	}

	return nil
}

type Bars []*Bar

// Validate checks that the series is strictly ascending with no duplicate
// dates. Missing dates are non-trading days and are not an error.
func (bars Bars) Validate() error {
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return err
		}

		if i == 0 {
			continue
		}

		if !bars[i-1].Timestamp.Before(b.Timestamp) {
			return fmt.Errorf("Bars.Validate: %s follows %s: %w", b.DateKey(), bars[i-1].DateKey(), ErrNonMonotonicBars)
		}
	}

	return nil
}

func (bars Bars) DateKeys() []string {
	keys := make([]string, 0, len(bars))
	for _, b := range bars {
		keys = append(keys, b.DateKey())
	}

	return keys
}
