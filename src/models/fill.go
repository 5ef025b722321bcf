package models

import "time"

// Fill is the simulated execution of a Decision. Price is taken from the
// execution bar per the run's timing rule, never from the bar the decision
// was derived from.
type Fill struct {
	Timestamp time.Time   `json:"timestamp"`
	Action    TradeAction `json:"action"`
	Quantity  float64     `json:"quantity"`
	Price     float64     `json:"price"`
	Fees      float64     `json:"fees"`
}

func (f *Fill) Notional() float64 {
	return f.Quantity * f.Price
}
