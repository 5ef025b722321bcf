package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/quantlab/backtest-engine/src/backtest"
	"github.com/quantlab/backtest-engine/src/models"
	"github.com/quantlab/backtest-engine/src/report"
)

func sampleResult() (*backtest.RunResult, *report.Report) {
	day1 := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	curve := models.EquityCurve{
		{Timestamp: day1, TotalEquity: 1000, Cash: 1000},
		{Timestamp: day2, TotalEquity: 1045, Cash: 55, PositionValue: 990},
	}

	result := &backtest.RunResult{
		RunID:          uuid.New(),
		Ticker:         "ACME",
		StartDate:      day1,
		EndDate:        day2,
		InitialCapital: 1000,
		Config:         models.DefaultBacktestConfig(),
		EquityCurve:    curve,
		Trades: []*models.TradeRecord{
			{Timestamp: day2, Action: models.TradeActionBuy, Quantity: 9, Price: 105, Fees: 0.47},
		},
	}

	rpt, _ := report.Summarize(curve, result.Trades, 1000, 0)

	return result, rpt
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	t.Run("save and load a run", func(t *testing.T) {
		s, err := NewSQLiteStore(":memory:")
		assert.NoError(t, err)
		defer s.Close()

		result, rpt := sampleResult()
		assert.NoError(t, s.SaveRun(ctx, result, rpt))

		stored, err := s.GetReport(ctx, result.RunID)
		assert.NoError(t, err)
		assert.Equal(t, rpt.FinalEquity, stored.FinalEquity)
		assert.Equal(t, rpt.TotalReturn, stored.TotalReturn)
		assert.Equal(t, rpt.TradeCount, stored.TradeCount)

		curve, err := s.GetEquityCurve(ctx, result.RunID)
		assert.NoError(t, err)
		assert.Len(t, curve, 2)
		assert.Equal(t, 1000.0, curve[0].TotalEquity)
		assert.Equal(t, 1045.0, curve[1].TotalEquity)
		assert.Equal(t, 990.0, curve[1].PositionValue)
	})

	t.Run("unknown run id is not found", func(t *testing.T) {
		s, err := NewSQLiteStore(":memory:")
		assert.NoError(t, err)
		defer s.Close()

		_, err = s.GetReport(ctx, uuid.New())
		assert.Error(t, err)
	})

	t.Run("duplicate run id is rejected", func(t *testing.T) {
		s, err := NewSQLiteStore(":memory:")
		assert.NoError(t, err)
		defer s.Close()

		result, rpt := sampleResult()
		assert.NoError(t, s.SaveRun(ctx, result, rpt))
		assert.Error(t, s.SaveRun(ctx, result, rpt))
	})
}
