package indicators

import (
	"fmt"

	"github.com/quantlab/backtest-engine/src/models"
)

const (
	bollingerPeriod = 20
	bollingerWidth  = 2.0
)

// DeriveFlags sets the explicit indicator flags on each signal from the bar
// series: moving-average crossovers from the sma_50/sma_200 columns, and
// overbought/oversold from the close breaching the bollinger bands. Flags
// already set upstream are kept. Bars inside the bollinger warm-up window
// never raise band flags.
func DeriveFlags(bars models.Bars, signals models.Signals) error {
	byDate := make(map[string]*models.Signal, len(signals))
	for _, s := range signals {
		byDate[s.DateKey()] = s
	}

	bands := NewBollingerBands(bollingerPeriod, bollingerWidth)

	for i, bar := range bars {
		ready, bandStats, err := bands.Update(bar)
		if err != nil {
			return fmt.Errorf("DeriveFlags: %w", err)
		}

		signal, found := byDate[bar.DateKey()]
		if !found {
			continue
		}

		setFlag := func(name string) {
			if signal.IndicatorFlags == nil {
				signal.IndicatorFlags = make(map[string]bool)
			}
			signal.IndicatorFlags[name] = true
		}

		if ready {
			if bar.Close > bandStats.Upper {
				setFlag(models.FlagOverbought)
			} else if bar.Close < bandStats.Lower {
				setFlag(models.FlagOversold)
			}
		}

		if i == 0 {
			continue
		}

		prevFast, foundPrevFast := bars[i-1].Indicator(models.IndicatorSma50)
		prevSlow, foundPrevSlow := bars[i-1].Indicator(models.IndicatorSma200)
		fast, foundFast := bar.Indicator(models.IndicatorSma50)
		slow, foundSlow := bar.Indicator(models.IndicatorSma200)
		if !foundPrevFast || !foundPrevSlow || !foundFast || !foundSlow {
			continue
		}

		if prevFast <= prevSlow && fast > slow {
			setFlag(models.FlagBullishCrossover)
		} else if prevFast >= prevSlow && fast < slow {
			setFlag(models.FlagBearishCrossover)
		}
	}

	return nil
}
