package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"

	"github.com/quantlab/backtest-engine/src/models"
	"github.com/quantlab/backtest-engine/src/utils"
)

// OptionalFloat distinguishes an empty CSV cell from a literal zero. Warm-up
// rows of the indicator columns ship empty and must stay absent, not zero.
type OptionalFloat struct {
	Value float64
	Valid bool
}

func (f *OptionalFloat) UnmarshalCSV(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("OptionalFloat.UnmarshalCSV: %q: %w", raw, err)
	}

	f.Value = value
	f.Valid = true

	return nil
}

type CsvBarDTO struct {
	Timestamp string        `csv:"time"`
	Open      float64       `csv:"open"`
	High      float64       `csv:"high"`
	Low       float64       `csv:"low"`
	Close     float64       `csv:"close"`
	Volume    float64       `csv:"volume"`
	Sma50     OptionalFloat `csv:"sma_50"`
	Sma200    OptionalFloat `csv:"sma_200"`
	Rsi14     OptionalFloat `csv:"rsi_14"`
}

func (dto *CsvBarDTO) ToModel() (*models.Bar, error) {
	t, err := utils.ParseDate(dto.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("CsvBarDTO.ToModel: %w", err)
	}

	indicatorValues := make(map[string]float64)
	if dto.Sma50.Valid {
		indicatorValues[models.IndicatorSma50] = dto.Sma50.Value
	}
	if dto.Sma200.Valid {
		indicatorValues[models.IndicatorSma200] = dto.Sma200.Value
	}
	if dto.Rsi14.Valid {
		indicatorValues[models.IndicatorRsi14] = dto.Rsi14.Value
	}

	return &models.Bar{
		Timestamp:  t,
		Open:       dto.Open,
		High:       dto.High,
		Low:        dto.Low,
		Close:      dto.Close,
		Volume:     dto.Volume,
		Indicators: indicatorValues,
	}, nil
}

// CsvBarFeed reads the bar artifacts written by the upstream data-analysis
// stage, one file per ticker under DataDir.
type CsvBarFeed struct {
	DataDir string
}

func NewCsvBarFeed(dataDir string) *CsvBarFeed {
	return &CsvBarFeed{DataDir: dataDir}
}

func (f *CsvBarFeed) FetchBars(_ context.Context, ticker string, start, end time.Time) (models.Bars, error) {
	inFile := filepath.Join(f.DataDir, fmt.Sprintf("%s.csv", ticker))
	file, err := os.Open(inFile)
	if err != nil {
		return nil, fmt.Errorf("CsvBarFeed.FetchBars: failed to open %s: %w", inFile, err)
	}

	defer file.Close()

	var dtos []*CsvBarDTO
	if err := gocsv.UnmarshalFile(file, &dtos); err != nil {
		return nil, fmt.Errorf("CsvBarFeed.FetchBars: failed to unmarshal %s: %w", inFile, err)
	}

	bars := make(models.Bars, 0, len(dtos))
	for _, dto := range dtos {
		bar, err := dto.ToModel()
		if err != nil {
			return nil, err
		}

		bars = append(bars, bar)
	}

	bars = filterRange(bars, start, end)
	if len(bars) == 0 {
		return nil, fmt.Errorf("CsvBarFeed.FetchBars: %s from %s to %s: %w", ticker, start.Format(utils.DateLayout), end.Format(utils.DateLayout), models.ErrNoBarsInRange)
	}

	if err := bars.Validate(); err != nil {
		return nil, fmt.Errorf("CsvBarFeed.FetchBars: %s: %w", inFile, err)
	}

	log.Infof("CsvBarFeed: loaded %d bars for %s from %s", len(bars), ticker, inFile)

	return bars, nil
}
