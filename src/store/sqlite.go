package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/quantlab/backtest-engine/src/backtest"
	"github.com/quantlab/backtest-engine/src/models"
	"github.com/quantlab/backtest-engine/src/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	ticker          TEXT NOT NULL,
	start_date      TEXT NOT NULL,
	end_date        TEXT NOT NULL,
	initial_capital REAL NOT NULL,
	final_equity    REAL NOT NULL,
	report_json     TEXT NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity_points (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	time           TEXT NOT NULL,
	total_equity   REAL NOT NULL,
	cash           REAL NOT NULL,
	position_value REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS trade_records (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	time         TEXT NOT NULL,
	action       TEXT NOT NULL,
	quantity     REAL NOT NULL,
	price        REAL NOT NULL,
	fees         REAL NOT NULL,
	realized_pnl REAL NOT NULL,
	holding_days INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_equity_run ON equity_points(run_id);
CREATE INDEX IF NOT EXISTS idx_trades_run ON trade_records(run_id);
`

// SQLiteStore persists completed runs, their equity curves and trade logs.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteStore: failed to open %s: %w", dbPath, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("NewSQLiteStore: failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun writes the run, its equity curve and its trade log in one
// transaction. Only completed runs are ever handed to the store.
func (s *SQLiteStore) SaveRun(ctx context.Context, result *backtest.RunResult, rpt *report.Report) error {
	reportJSON, err := json.Marshal(rpt)
	if err != nil {
		return fmt.Errorf("SQLiteStore.SaveRun: failed to marshal report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("SQLiteStore.SaveRun: failed to begin transaction: %w", err)
	}

	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, ticker, start_date, end_date, initial_capital, final_equity, report_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID.String(),
		result.Ticker,
		result.StartDate.Format("2006-01-02"),
		result.EndDate.Format("2006-01-02"),
		result.InitialCapital,
		rpt.FinalEquity,
		string(reportJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("SQLiteStore.SaveRun: failed to insert run: %w", err)
	}

	for _, point := range result.EquityCurve {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO equity_points (run_id, time, total_equity, cash, position_value) VALUES (?, ?, ?, ?, ?)`,
			result.RunID.String(),
			point.Timestamp.Format("2006-01-02"),
			point.TotalEquity,
			point.Cash,
			point.PositionValue,
		)
		if err != nil {
			return fmt.Errorf("SQLiteStore.SaveRun: failed to insert equity point: %w", err)
		}
	}

	for _, trade := range result.Trades {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO trade_records (run_id, time, action, quantity, price, fees, realized_pnl, holding_days)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			result.RunID.String(),
			trade.Timestamp.Format("2006-01-02"),
			string(trade.Action),
			trade.Quantity,
			trade.Price,
			trade.Fees,
			trade.RealizedPnL,
			trade.HoldingDays,
		)
		if err != nil {
			return fmt.Errorf("SQLiteStore.SaveRun: failed to insert trade record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("SQLiteStore.SaveRun: failed to commit: %w", err)
	}

	log.Infof("Saved run %s (%d equity points, %d trades)", result.RunID, len(result.EquityCurve), len(result.Trades))

	return nil
}

// GetReport loads the stored report for a run.
func (s *SQLiteStore) GetReport(ctx context.Context, runID uuid.UUID) (*report.Report, error) {
	var reportJSON string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, runID.String()).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("SQLiteStore.GetReport: run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("SQLiteStore.GetReport: query failed: %w", err)
	}

	var rpt report.Report
	if err := json.Unmarshal([]byte(reportJSON), &rpt); err != nil {
		return nil, fmt.Errorf("SQLiteStore.GetReport: failed to unmarshal report: %w", err)
	}

	return &rpt, nil
}

// GetEquityCurve loads the stored equity curve for a run, ordered by date.
func (s *SQLiteStore) GetEquityCurve(ctx context.Context, runID uuid.UUID) (models.EquityCurve, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT time, total_equity, cash, position_value FROM equity_points WHERE run_id = ? ORDER BY time`,
		runID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("SQLiteStore.GetEquityCurve: query failed: %w", err)
	}

	defer rows.Close()

	var curve models.EquityCurve
	for rows.Next() {
		var dateKey string
		point := &models.EquityPoint{}
		if err := rows.Scan(&dateKey, &point.TotalEquity, &point.Cash, &point.PositionValue); err != nil {
			return nil, fmt.Errorf("SQLiteStore.GetEquityCurve: scan failed: %w", err)
		}

		point.Timestamp, err = time.Parse("2006-01-02", dateKey)
		if err != nil {
			return nil, fmt.Errorf("SQLiteStore.GetEquityCurve: bad date %q: %w", dateKey, err)
		}

		curve = append(curve, point)
	}

	return curve, rows.Err()
}
