package models

import "time"

// TradeRecord is an append-only log entry for a single fill. Sell records
// carry the realized P&L booked against the average cost basis and the
// holding period in trading days.
type TradeRecord struct {
	Timestamp   time.Time   `json:"timestamp"`
	Action      TradeAction `json:"action"`
	Quantity    float64     `json:"quantity"`
	Price       float64     `json:"price"`
	Fees        float64     `json:"fees"`
	RealizedPnL float64     `json:"realized_pnl"`
	HoldingDays int         `json:"holding_days"`
}

func NewTradeRecord(fill *Fill, realizedPnL float64, holdingDays int) *TradeRecord {
	return &TradeRecord{
		Timestamp:   fill.Timestamp,
		Action:      fill.Action,
		Quantity:    fill.Quantity,
		Price:       fill.Price,
		Fees:        fill.Fees,
		RealizedPnL: realizedPnL,
		HoldingDays: holdingDays,
	}
}
