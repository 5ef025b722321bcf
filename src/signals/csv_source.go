package signals

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"

	"github.com/quantlab/backtest-engine/src/models"
	"github.com/quantlab/backtest-engine/src/utils"
)

// PredictionDTO is one row of the prediction artifact exported by the model
// training stage: a per-day direction score in [-1, 1].
type PredictionDTO struct {
	Timestamp  string  `csv:"time"`
	ModelScore float64 `csv:"model_score"`
}

// SentimentDTO is one row of the aggregated news sentiment artifact exported
// by the news-ingestion stage.
type SentimentDTO struct {
	Timestamp      string  `csv:"time"`
	SentimentScore float64 `csv:"sentiment_score"`
	ArticleCount   int     `csv:"article_count"`
}

// CsvSignalSource assembles per-day signals from the prediction and
// sentiment artifacts, one file pair per ticker. Prediction rows define the
// set of signal days; days without news coverage get a neutral sentiment of
// zero rather than an error.
type CsvSignalSource struct {
	PredictionsDir string
	SentimentDir   string
}

func NewCsvSignalSource(predictionsDir, sentimentDir string) *CsvSignalSource {
	return &CsvSignalSource{
		PredictionsDir: predictionsDir,
		SentimentDir:   sentimentDir,
	}
}

func (s *CsvSignalSource) Produce(_ context.Context, ticker string, start, end time.Time) (models.Signals, error) {
	predictions, err := s.loadPredictions(ticker)
	if err != nil {
		return nil, err
	}

	sentiment, err := s.loadSentiment(ticker)
	if err != nil {
		return nil, err
	}

	var result models.Signals
	for _, p := range predictions {
		t, err := utils.ParseDate(p.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("CsvSignalSource.Produce: prediction row: %w", err)
		}

		if t.Before(start) || t.After(end) {
			continue
		}

		signal := &models.Signal{
			Timestamp:      t,
			ModelScore:     p.ModelScore,
			SentimentScore: sentiment[t.Format(utils.DateLayout)],
		}

		result = append(result, signal)
	}

	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("CsvSignalSource.Produce: %s: %w", ticker, err)
	}

	log.Infof("CsvSignalSource: assembled %d signals for %s", len(result), ticker)

	return result, nil
}

func (s *CsvSignalSource) loadPredictions(ticker string) ([]*PredictionDTO, error) {
	inFile := filepath.Join(s.PredictionsDir, fmt.Sprintf("%s.csv", ticker))
	file, err := os.Open(inFile)
	if err != nil {
		return nil, fmt.Errorf("CsvSignalSource.loadPredictions: failed to open %s: %w", inFile, err)
	}

	defer file.Close()

	var dtos []*PredictionDTO
	if err := gocsv.UnmarshalFile(file, &dtos); err != nil {
		return nil, fmt.Errorf("CsvSignalSource.loadPredictions: failed to unmarshal %s: %w", inFile, err)
	}

	return dtos, nil
}

func (s *CsvSignalSource) loadSentiment(ticker string) (map[string]float64, error) {
	scores := make(map[string]float64)

	if s.SentimentDir == "" {
		return scores, nil
	}

	inFile := filepath.Join(s.SentimentDir, fmt.Sprintf("%s.csv", ticker))
	file, err := os.Open(inFile)
	if err != nil {
		// News coverage is optional. A missing artifact degrades to
		// neutral sentiment for every day.
		log.Warnf("CsvSignalSource: no sentiment artifact for %s: %v", ticker, err)
		return scores, nil
	}

	defer file.Close()

	var dtos []*SentimentDTO
	if err := gocsv.UnmarshalFile(file, &dtos); err != nil {
		return nil, fmt.Errorf("CsvSignalSource.loadSentiment: failed to unmarshal %s: %w", inFile, err)
	}

	for _, dto := range dtos {
		t, err := utils.ParseDate(dto.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("CsvSignalSource.loadSentiment: sentiment row: %w", err)
		}

		scores[t.Format(utils.DateLayout)] = dto.SentimentScore
	}

	return scores, nil
}
