package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"

	"github.com/quantlab/backtest-engine/src/models"
)

type equityPointDTO struct {
	Timestamp     string  `csv:"time"`
	TotalEquity   float64 `csv:"total_equity"`
	Cash          float64 `csv:"cash"`
	PositionValue float64 `csv:"position_value"`
}

type tradeRecordDTO struct {
	Timestamp   string  `csv:"time"`
	Action      string  `csv:"action"`
	Quantity    float64 `csv:"quantity"`
	Price       float64 `csv:"price"`
	Fees        float64 `csv:"fees"`
	RealizedPnL float64 `csv:"realized_pnl"`
	HoldingDays int     `csv:"holding_days"`
}

// ExportReport writes the report as JSON. The rendering is lossless: every
// field of the report structure is carried.
func ExportReport(r *Report, outDir, name string) (string, error) {
	if err := ensureDir(outDir); err != nil {
		return "", err
	}

	outFile := filepath.Join(outDir, fmt.Sprintf("report-%s.json", name))

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("ExportReport: failed to marshal report: %w", err)
	}

	if err := os.WriteFile(outFile, data, 0644); err != nil {
		return "", fmt.Errorf("ExportReport: failed to write %s: %w", outFile, err)
	}

	log.Infof("Exported report to %s", outFile)

	return outFile, nil
}

// ExportEquityCurve writes the equity curve as a CSV artifact.
func ExportEquityCurve(curve models.EquityCurve, outDir, name string) (string, error) {
	if err := ensureDir(outDir); err != nil {
		return "", err
	}

	dtos := make([]*equityPointDTO, 0, len(curve))
	for _, point := range curve {
		dtos = append(dtos, &equityPointDTO{
			Timestamp:     point.Timestamp.Format("2006-01-02"),
			TotalEquity:   point.TotalEquity,
			Cash:          point.Cash,
			PositionValue: point.PositionValue,
		})
	}

	outFile := filepath.Join(outDir, fmt.Sprintf("equity-%s.csv", name))
	file, err := os.Create(outFile)
	if err != nil {
		return "", fmt.Errorf("ExportEquityCurve: failed to create %s: %w", outFile, err)
	}

	defer file.Close()

	if err := gocsv.MarshalFile(&dtos, file); err != nil {
		return "", fmt.Errorf("ExportEquityCurve: failed to marshal: %w", err)
	}

	log.Infof("Exported %d equity points to %s", len(dtos), outFile)

	return outFile, nil
}

// ExportTrades writes the trade log as a CSV artifact.
func ExportTrades(trades []*models.TradeRecord, outDir, name string) (string, error) {
	if err := ensureDir(outDir); err != nil {
		return "", err
	}

	dtos := make([]*tradeRecordDTO, 0, len(trades))
	for _, trade := range trades {
		dtos = append(dtos, &tradeRecordDTO{
			Timestamp:   trade.Timestamp.Format("2006-01-02"),
			Action:      string(trade.Action),
			Quantity:    trade.Quantity,
			Price:       trade.Price,
			Fees:        trade.Fees,
			RealizedPnL: trade.RealizedPnL,
			HoldingDays: trade.HoldingDays,
		})
	}

	outFile := filepath.Join(outDir, fmt.Sprintf("trades-%s.csv", name))
	file, err := os.Create(outFile)
	if err != nil {
		return "", fmt.Errorf("ExportTrades: failed to create %s: %w", outFile, err)
	}

	defer file.Close()

	if err := gocsv.MarshalFile(&dtos, file); err != nil {
		return "", fmt.Errorf("ExportTrades: failed to marshal: %w", err)
	}

	log.Infof("Exported %d trades to %s", len(dtos), outFile)

	return outFile, nil
}

func ensureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("ensureDir: failed to create %s: %w", dir, err)
		}
	}

	return nil
}
