package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	log "github.com/sirupsen/logrus"

	"github.com/quantlab/backtest-engine/src/indicators"
	"github.com/quantlab/backtest-engine/src/models"
	"github.com/quantlab/backtest-engine/src/utils"
)

// AlpacaBarFeed fetches split-adjusted daily bars from the Alpaca market
// data API. Like the Polygon feed, indicator columns are backfilled locally.
type AlpacaBarFeed struct {
	client *marketdata.Client
}

func NewAlpacaBarFeed(apiKey, apiSecret, baseURL string) *AlpacaBarFeed {
	return &AlpacaBarFeed{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
	}
}

func (f *AlpacaBarFeed) FetchBars(_ context.Context, ticker string, start, end time.Time) (models.Bars, error) {
	log.Debugf("AlpacaBarFeed: fetching daily bars for %s", ticker)

	alpacaBars, err := f.client.GetBars(ticker, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      start,
		End:        end,
		Adjustment: marketdata.Split,
	})
	if err != nil {
		return nil, fmt.Errorf("AlpacaBarFeed.FetchBars: failed to fetch bars for %s: %w", ticker, err)
	}

	bars := make(models.Bars, 0, len(alpacaBars))
	for _, ab := range alpacaBars {
		bars = append(bars, &models.Bar{
			Timestamp: time.Date(ab.Timestamp.Year(), ab.Timestamp.Month(), ab.Timestamp.Day(), 0, 0, 0, 0, time.UTC),
			Open:      ab.Open,
			High:      ab.High,
			Low:       ab.Low,
			Close:     ab.Close,
			Volume:    float64(ab.Volume),
		})
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("AlpacaBarFeed.FetchBars: %s from %s to %s: %w", ticker, start.Format(utils.DateLayout), end.Format(utils.DateLayout), models.ErrNoBarsInRange)
	}

	if err := bars.Validate(); err != nil {
		return nil, fmt.Errorf("AlpacaBarFeed.FetchBars: %s: %w", ticker, err)
	}

	indicators.Backfill(bars)

	return bars, nil
}
