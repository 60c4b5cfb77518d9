package orderbook

import (
	"tradesim/internal/errs"
	"tradesim/internal/order"
)

// Match runs the incoming order against the resting book and returns
// the executions in generation order. Resting orders and the incoming
// order have their filled quantity advanced; filled resting orders are
// evicted. A limit order with a leftover remainder rests on its own
// side; a market remainder never rests.
//
// Structural preconditions are checked before any book access, so a
// rejected call leaves the book untouched. Once matching begins it
// always completes.
func (b *Book) Match(incoming *order.Order) ([]Trade, error) {
	if incoming == nil {
		return nil, errs.New(errs.InvalidArgument, "match: order is nil")
	}
	if incoming.Remaining() <= 0 {
		return nil, errs.New(errs.InvalidArgument, "match: order %d remaining quantity must be > 0, got %d",
			incoming.ID, incoming.Remaining())
	}
	if incoming.Symbol == "" {
		return nil, errs.New(errs.InvalidArgument, "match: order %d symbol is empty", incoming.ID)
	}
	if incoming.Symbol != b.Symbol {
		return nil, errs.New(errs.InvalidArgument, "match: order %d symbol %s does not belong to book %s",
			incoming.ID, incoming.Symbol, b.Symbol)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var trades []Trade
	if incoming.Side == order.Buy {
		for len(b.asks) > 0 && !incoming.IsFilled() {
			level := b.asks[0]
			if incoming.Kind == order.Limit && level.Price > incoming.Price {
				break // no more crossable prices
			}
			trades = append(trades, b.matchAtLevel(incoming, level)...)
			if len(level.Orders) == 0 {
				b.asks = b.asks[1:]
			}
		}
	} else {
		for len(b.bids) > 0 && !incoming.IsFilled() {
			level := b.bids[0]
			if incoming.Kind == order.Limit && level.Price < incoming.Price {
				break
			}
			trades = append(trades, b.matchAtLevel(incoming, level)...)
			if len(level.Orders) == 0 {
				b.bids = b.bids[1:]
			}
		}
	}

	if incoming.Kind == order.Limit && !incoming.IsFilled() {
		b.addResting(incoming)
	}

	return trades, nil
}

// matchAtLevel crosses the incoming order against one price level in
// arrival order. Execution price is always the resting order's price.
func (b *Book) matchAtLevel(incoming *order.Order, level *PriceLevel) []Trade {
	var trades []Trade

	for len(level.Orders) > 0 && !incoming.IsFilled() {
		resting := level.Orders[0]
		matchQty := min(incoming.Remaining(), resting.Remaining())

		incoming.Filled += matchQty
		resting.Filled += matchQty

		var buyOrder, sellOrder *order.Order
		if incoming.Side == order.Buy {
			buyOrder, sellOrder = incoming, resting
		} else {
			buyOrder, sellOrder = resting, incoming
		}

		trades = append(trades, Trade{
			ID:          b.seq.Next(),
			BuyOrderID:  buyOrder.ID,
			SellOrderID: sellOrder.ID,
			Symbol:      b.Symbol,
			Quantity:    matchQty,
			Price:       level.Price, // trade at resting order's price
		})

		if resting.IsFilled() {
			delete(b.resting, resting.ID)
			level.Orders = level.Orders[1:]
		}
	}

	return trades
}
