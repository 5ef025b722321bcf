package signals

import (
	"context"
	"time"

	"github.com/quantlab/backtest-engine/src/models"
)

// SignalSource produces one Signal per trading day for a ticker over a date
// range. Sources are read-only within a run and safe to share across
// concurrent runs. The trained-model artifact and the news sentiment feed
// are opaque collaborators behind this interface.
type SignalSource interface {
	Produce(ctx context.Context, ticker string, start, end time.Time) (models.Signals, error)
}
