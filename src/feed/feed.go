package feed

import (
	"context"
	"time"

	"github.com/quantlab/backtest-engine/src/models"
)

// BarFeed supplies an ordered, deduplicated sequence of daily bars for a
// ticker over a date range. Dates absent from the feed are non-trading days.
// Implementations are read-only and safe to share across concurrent runs.
type BarFeed interface {
	FetchBars(ctx context.Context, ticker string, start, end time.Time) (models.Bars, error)
}

func filterRange(bars models.Bars, start, end time.Time) models.Bars {
	filtered := make(models.Bars, 0, len(bars))
	for _, b := range bars {
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}

		filtered = append(filtered, b)
	}

	return filtered
}
