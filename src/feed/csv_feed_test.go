package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantlab/backtest-engine/src/models"
)

func writeBarsFile(t *testing.T, dir, ticker, contents string) {
	t.Helper()

	err := os.WriteFile(filepath.Join(dir, ticker+".csv"), []byte(contents), 0644)
	assert.NoError(t, err)
}

func TestCsvBarFeed(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC)

	t.Run("loads bars with indicator columns", func(t *testing.T) {
		dir := t.TempDir()
		writeBarsFile(t, dir, "ACME", `time,open,high,low,close,volume,sma_50,sma_200,rsi_14
2024-06-03,100,101,99,100.5,1000,98.2,95.1,55.0
2024-06-04,100.5,103,100,102,1200,98.4,95.2,61.5
2024-06-05,102,102.5,100,101,900,,,
`)

		bars, err := NewCsvBarFeed(dir).FetchBars(ctx, "ACME", start, end)
		assert.NoError(t, err)
		assert.Len(t, bars, 3)

		assert.Equal(t, 100.0, bars[0].Open)
		assert.Equal(t, 102.0, bars[1].Close)

		sma50, found := bars[0].Indicator(models.IndicatorSma50)
		assert.True(t, found)
		assert.Equal(t, 98.2, sma50)

		_, found = bars[2].Indicator(models.IndicatorRsi14)
		assert.False(t, found)
	})

	t.Run("empty indicator cell is absent, literal zero is present", func(t *testing.T) {
		dir := t.TempDir()
		writeBarsFile(t, dir, "ACME", `time,open,high,low,close,volume,sma_50,sma_200,rsi_14
2024-06-03,100,101,99,100.5,1000,,,
2024-06-04,100.5,103,100,102,1200,98.4,95.2,0
`)

		bars, err := NewCsvBarFeed(dir).FetchBars(ctx, "ACME", start, end)
		assert.NoError(t, err)
		assert.Len(t, bars, 2)

		_, found := bars[0].Indicator(models.IndicatorRsi14)
		assert.False(t, found)
		_, found = bars[0].Indicator(models.IndicatorSma50)
		assert.False(t, found)

		rsi, found := bars[1].Indicator(models.IndicatorRsi14)
		assert.True(t, found)
		assert.Equal(t, 0.0, rsi)
	})

	t.Run("filters to the requested range", func(t *testing.T) {
		dir := t.TempDir()
		writeBarsFile(t, dir, "ACME", `time,open,high,low,close,volume
2024-05-31,95,96,94,95,800
2024-06-03,100,101,99,100.5,1000
2024-06-04,100.5,103,100,102,1200
2024-06-06,101,104,100,103,1100
`)

		bars, err := NewCsvBarFeed(dir).FetchBars(ctx, "ACME", start, end)
		assert.NoError(t, err)
		assert.Len(t, bars, 2)
		assert.Equal(t, "2024-06-03", bars[0].DateKey())
		assert.Equal(t, "2024-06-04", bars[1].DateKey())
	})

	t.Run("non-monotonic series is rejected", func(t *testing.T) {
		dir := t.TempDir()
		writeBarsFile(t, dir, "ACME", `time,open,high,low,close,volume
2024-06-04,100.5,103,100,102,1200
2024-06-03,100,101,99,100.5,1000
`)

		_, err := NewCsvBarFeed(dir).FetchBars(ctx, "ACME", start, end)
		assert.ErrorIs(t, err, models.ErrNonMonotonicBars)
	})

	t.Run("empty range is an error", func(t *testing.T) {
		dir := t.TempDir()
		writeBarsFile(t, dir, "ACME", `time,open,high,low,close,volume
2024-01-02,100,101,99,100.5,1000
`)

		_, err := NewCsvBarFeed(dir).FetchBars(ctx, "ACME", start, end)
		assert.ErrorIs(t, err, models.ErrNoBarsInRange)
	})

	t.Run("missing ticker file is an error", func(t *testing.T) {
		_, err := NewCsvBarFeed(t.TempDir()).FetchBars(ctx, "MISSING", start, end)
		assert.Error(t, err)
	})
}
