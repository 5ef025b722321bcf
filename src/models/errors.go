package models

import "fmt"

var (
	ErrDataAlignment          = fmt.Errorf("bar and signal dates are misaligned")
	ErrInsufficientCapital    = fmt.Errorf("insufficient capital: fill quantity rounds to zero")
	ErrLedgerInvariantBreached = fmt.Errorf("ledger invariant breached")
	ErrInvalidConfiguration   = fmt.Errorf("invalid configuration")
	ErrNonMonotonicBars       = fmt.Errorf("bars are not in strictly ascending order")
	ErrNoBarsInRange          = fmt.Errorf("no bars found in the requested date range")
	ErrRunAborted             = fmt.Errorf("run aborted before completion")
	ErrRunNotCompleted        = fmt.Errorf("run did not complete")
	ErrDateMismatch           = fmt.Errorf("bar and signal dates do not match")
	ErrInvalidFillPrice       = fmt.Errorf("fill price must be greater than 0")
	ErrOversell               = fmt.Errorf("cannot sell more than the open position")
)
