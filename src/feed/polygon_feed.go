package feed

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	polygonmodels "github.com/polygon-io/client-go/rest/models"
	log "github.com/sirupsen/logrus"

	"github.com/quantlab/backtest-engine/src/indicators"
	"github.com/quantlab/backtest-engine/src/models"
	"github.com/quantlab/backtest-engine/src/utils"
)

// PolygonBarFeed fetches adjusted daily aggregates from the Polygon.io REST
// API. Indicator columns are computed locally since the vendor delivers raw
// OHLCV only.
type PolygonBarFeed struct {
	Client *polygon.Client
}

func NewPolygonBarFeed(apiKey string) *PolygonBarFeed {
	return &PolygonBarFeed{
		Client: polygon.New(apiKey),
	}
}

func (f *PolygonBarFeed) FetchBars(ctx context.Context, ticker string, start, end time.Time) (models.Bars, error) {
	log.Debugf("PolygonBarFeed: fetching daily aggregates for %s", ticker)

	params := polygonmodels.ListAggsParams{
		Ticker:     ticker,
		Multiplier: 1,
		Timespan:   polygonmodels.Day,
		From:       polygonmodels.Millis(start),
		To:         polygonmodels.Millis(end),
	}.WithOrder(polygonmodels.Asc).WithAdjusted(true)

	iter := f.Client.ListAggs(ctx, params)

	var bars models.Bars
	for iter.Next() {
		item := iter.Item()
		bars = append(bars, &models.Bar{
			Timestamp: time.Time(item.Timestamp),
			Open:      item.Open,
			High:      item.High,
			Low:       item.Low,
			Close:     item.Close,
			Volume:    item.Volume,
		})
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("PolygonBarFeed.FetchBars: failed to fetch aggregates for %s: %w", ticker, err)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("PolygonBarFeed.FetchBars: %s from %s to %s: %w", ticker, start.Format(utils.DateLayout), end.Format(utils.DateLayout), models.ErrNoBarsInRange)
	}

	if err := bars.Validate(); err != nil {
		return nil, fmt.Errorf("PolygonBarFeed.FetchBars: %s: %w", ticker, err)
	}

	indicators.Backfill(bars)

	return bars, nil
}
