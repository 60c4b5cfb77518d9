// Package order defines orders, their validating factory, and the
// store that owns every submitted order's lifecycle.
package order

import (
	"time"

	"tradesim/internal/errs"
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Kind tags an order as market or limit. Limit orders carry a price;
// market orders have Price 0.
type Kind int

const (
	Limit Kind = iota
	Market
)

func (k Kind) String() string {
	if k == Market {
		return "market"
	}
	return "limit"
}

type Status int

const (
	Pending Status = iota
	PartiallyFilled
	Filled
	Cancelled
	Rejected
)

func (st Status) String() string {
	switch st {
	case Pending:
		return "pending"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Terminal reports whether no further transition is permitted.
func (st Status) Terminal() bool {
	return st == Filled || st == Cancelled || st == Rejected
}

// Order is a single buy or sell instruction. Identity fields are
// immutable after construction; Filled and Status advance as the order
// matches.
type Order struct {
	ID        int64
	AccountID string
	Symbol    string
	Side      Side
	Kind      Kind
	Price     int64 // in cents; 0 for market orders
	Quantity  int64
	Filled    int64
	Status    Status
	Timestamp time.Time
}

// Remaining is the unfilled quantity.
func (o *Order) Remaining() int64 {
	return o.Quantity - o.Filled
}

// IsFilled reports whether nothing remains to fill.
func (o *Order) IsFilled() bool {
	return o.Filled >= o.Quantity
}

// transition validates a status change against the order state machine.
func (o *Order) transition(next Status) error {
	if o.Status.Terminal() {
		return errs.New(errs.InvalidState, "order %d is %s, cannot become %s", o.ID, o.Status, next)
	}
	if o.Status == next {
		return nil
	}
	return o.apply(next)
}

func (o *Order) apply(next Status) error {
	switch o.Status {
	case Pending:
		// Any non-initial state is reachable from Pending.
	case PartiallyFilled:
		if next != Filled && next != Cancelled && next != PartiallyFilled {
			return errs.New(errs.InvalidState, "order %d is %s, cannot become %s", o.ID, o.Status, next)
		}
	}
	o.Status = next
	return nil
}
