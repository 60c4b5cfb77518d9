package order

import (
	"time"

	"tradesim/internal/errs"
)

// Factory validates and constructs orders. It is the only construction
// path; ownership of the returned order transfers to the Store on
// Submit.
type Factory struct{}

func (Factory) validateCommon(id int64, accountID, symbol string, qty int64) error {
	if id <= 0 {
		return errs.New(errs.InvalidArgument, "order id must be > 0, got %d", id)
	}
	if accountID == "" {
		return errs.New(errs.InvalidArgument, "account id is empty")
	}
	if symbol == "" {
		return errs.New(errs.InvalidArgument, "symbol is empty")
	}
	if qty <= 0 {
		return errs.New(errs.InvalidArgument, "quantity must be > 0, got %d", qty)
	}
	return nil
}

// NewMarketOrder builds a validated market order.
func (f Factory) NewMarketOrder(id int64, accountID, symbol string, side Side, qty int64) (*Order, error) {
	if err := f.validateCommon(id, accountID, symbol, qty); err != nil {
		return nil, err
	}
	return &Order{
		ID:        id,
		AccountID: accountID,
		Symbol:    symbol,
		Side:      side,
		Kind:      Market,
		Quantity:  qty,
		Status:    Pending,
		Timestamp: time.Now(),
	}, nil
}

// NewLimitOrder builds a validated limit order. Price is in cents and
// must be positive.
func (f Factory) NewLimitOrder(id int64, accountID, symbol string, side Side, qty, price int64) (*Order, error) {
	if err := f.validateCommon(id, accountID, symbol, qty); err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, errs.New(errs.InvalidArgument, "limit price must be > 0, got %d", price)
	}
	return &Order{
		ID:        id,
		AccountID: accountID,
		Symbol:    symbol,
		Side:      side,
		Kind:      Limit,
		Price:     price,
		Quantity:  qty,
		Status:    Pending,
		Timestamp: time.Now(),
	}, nil
}
