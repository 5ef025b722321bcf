package models

import "time"

type TradeAction string

const (
	TradeActionBuy  TradeAction = "buy"
	TradeActionSell TradeAction = "sell"
	TradeActionHold TradeAction = "hold"
)

func (a TradeAction) Validate() bool {
	switch a {
	case TradeActionBuy, TradeActionSell, TradeActionHold:
		return true
	}

	return false
}

// Decision is the discrete trading action derived from a Bar + Signal pair.
// TargetWeight is the fraction of available cash to allocate on a buy, or the
// fraction of the open position to unwind on a sell.
type Decision struct {
	Timestamp    time.Time   `json:"timestamp"`
	Action       TradeAction `json:"action"`
	TargetWeight float64     `json:"target_weight"`
	Confidence   float64     `json:"confidence"`
}

func (d *Decision) DateKey() string {
	return d.Timestamp.Format("2006-01-02")
}

func NewHoldDecision(timestamp time.Time, confidence float64) *Decision {
	return &Decision{
		Timestamp:  timestamp,
		Action:     TradeActionHold,
		Confidence: confidence,
	}
}
