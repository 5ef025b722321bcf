package indicators

import (
	talib "github.com/markcheno/go-talib"
	log "github.com/sirupsen/logrus"

	"github.com/quantlab/backtest-engine/src/models"
)

const (
	smaFastPeriod = 50
	smaSlowPeriod = 200
	rsiPeriod     = 14
)

// Backfill computes sma_50, sma_200 and rsi_14 for any bar that is missing
// them. The upstream data-analysis stage normally ships these columns; the
// backfill only covers feeds that deliver raw OHLCV, such as the remote
// vendor feeds. Bars inside the warm-up window keep their indicator map
// unchanged.
func Backfill(bars models.Bars) {
	if len(bars) == 0 {
		return
	}

	missing := false
	for _, b := range bars {
		if _, found := b.Indicator(models.IndicatorSma50); !found {
			missing = true
			break
		}
	}

	if !missing {
		return
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	var smaFast, smaSlow, rsi []float64
	if len(bars) >= smaFastPeriod {
		smaFast = talib.Sma(closes, smaFastPeriod)
	}
	if len(bars) >= smaSlowPeriod {
		smaSlow = talib.Sma(closes, smaSlowPeriod)
	}
	if len(bars) > rsiPeriod {
		rsi = talib.Rsi(closes, rsiPeriod)
	}

	filled := 0
	for i, b := range bars {
		if b.Indicators == nil {
			b.Indicators = make(map[string]float64)
		}

		setIfAbsent := func(name string, series []float64, warmup int) {
			if series == nil || i < warmup {
				return
			}

			if _, found := b.Indicators[name]; !found {
				b.Indicators[name] = series[i]
				filled++
			}
		}

		setIfAbsent(models.IndicatorSma50, smaFast, smaFastPeriod-1)
		setIfAbsent(models.IndicatorSma200, smaSlow, smaSlowPeriod-1)
		setIfAbsent(models.IndicatorRsi14, rsi, rsiPeriod)
	}

	if filled > 0 {
		log.Infof("Backfill: computed %d indicator values locally", filled)
	}
}
