// Package orderbook holds the resting limit orders for one symbol and
// matches incoming orders against them under price-time priority.
package orderbook

import (
	"sync"

	"tradesim/internal/order"
)

// Trade is one execution between a buy and a sell order. Immutable
// once created.
type Trade struct {
	ID          int64
	BuyOrderID  int64
	SellOrderID int64
	Symbol      string
	Quantity    int64
	Price       int64 // in cents
}

// PriceLevel holds all resting orders at one price, in arrival order.
type PriceLevel struct {
	Price  int64
	Orders []*order.Order
}

func (pl *PriceLevel) TotalQuantity() int64 {
	var total int64
	for _, o := range pl.Orders {
		total += o.Remaining()
	}
	return total
}

// TradeSequence hands out trade ids. One sequence is shared by every
// book in a run so trade ids stay unique and monotonic across symbols.
type TradeSequence struct {
	mu   sync.Mutex
	next int64
}

func NewTradeSequence() *TradeSequence {
	return &TradeSequence{next: 1}
}

// Next returns a fresh, strictly increasing trade id.
func (s *TradeSequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	return id
}

// Seed advances the sequence past persisted trades. A smaller value is
// ignored.
func (s *TradeSequence) Seed(next int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next > s.next {
		s.next = next
	}
}

// Book is an in-memory order book for a single symbol.
type Book struct {
	Symbol string

	mu      sync.RWMutex
	bids    []*PriceLevel // sorted descending by price (best bid first)
	asks    []*PriceLevel // sorted ascending by price (best ask first)
	resting map[int64]*order.Order

	seq *TradeSequence
}

func New(symbol string, seq *TradeSequence) *Book {
	if seq == nil {
		seq = NewTradeSequence()
	}
	return &Book{
		Symbol:  symbol,
		bids:    make([]*PriceLevel, 0),
		asks:    make([]*PriceLevel, 0),
		resting: make(map[int64]*order.Order),
		seq:     seq,
	}
}

func (b *Book) addResting(o *order.Order) {
	b.resting[o.ID] = o
	if o.Side == order.Buy {
		b.insertBid(o)
	} else {
		b.insertAsk(o)
	}
}

func (b *Book) insertBid(o *order.Order) {
	for i, level := range b.bids {
		if level.Price == o.Price {
			level.Orders = append(level.Orders, o)
			return
		}
		if level.Price < o.Price {
			newLevel := &PriceLevel{Price: o.Price, Orders: []*order.Order{o}}
			b.bids = append(b.bids[:i], append([]*PriceLevel{newLevel}, b.bids[i:]...)...)
			return
		}
	}
	b.bids = append(b.bids, &PriceLevel{Price: o.Price, Orders: []*order.Order{o}})
}

func (b *Book) insertAsk(o *order.Order) {
	for i, level := range b.asks {
		if level.Price == o.Price {
			level.Orders = append(level.Orders, o)
			return
		}
		if level.Price > o.Price {
			newLevel := &PriceLevel{Price: o.Price, Orders: []*order.Order{o}}
			b.asks = append(b.asks[:i], append([]*PriceLevel{newLevel}, b.asks[i:]...)...)
			return
		}
	}
	b.asks = append(b.asks, &PriceLevel{Price: o.Price, Orders: []*order.Order{o}})
}

// Remove evicts a resting order, reporting whether it was present.
// Lifecycle errors belong to the order store; the book only reflects
// derived state.
func (b *Book) Remove(orderID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.resting[orderID]
	if !ok {
		return false
	}
	delete(b.resting, orderID)

	if o.Side == order.Buy {
		b.removeFromLevels(o, &b.bids)
	} else {
		b.removeFromLevels(o, &b.asks)
	}
	return true
}

func (b *Book) removeFromLevels(o *order.Order, levels *[]*PriceLevel) {
	for i, level := range *levels {
		if level.Price == o.Price {
			for j, lo := range level.Orders {
				if lo.ID == o.ID {
					level.Orders = append(level.Orders[:j], level.Orders[j+1:]...)
					break
				}
			}
			if len(level.Orders) == 0 {
				*levels = append((*levels)[:i], (*levels)[i+1:]...)
			}
			return
		}
	}
}

// Resting returns a resting order by id.
func (b *Book) Resting(orderID int64) (*order.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.resting[orderID]
	return o, ok
}

// BookSnapshot is the aggregate per-level state of the book.
type BookSnapshot struct {
	Symbol string          `json:"symbol"`
	Bids   []LevelSnapshot `json:"bids"`
	Asks   []LevelSnapshot `json:"asks"`
}

type LevelSnapshot struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

func (b *Book) Snapshot() BookSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := BookSnapshot{
		Symbol: b.Symbol,
		Bids:   make([]LevelSnapshot, len(b.bids)),
		Asks:   make([]LevelSnapshot, len(b.asks)),
	}
	for i, level := range b.bids {
		snap.Bids[i] = LevelSnapshot{Price: level.Price, Quantity: level.TotalQuantity()}
	}
	for i, level := range b.asks {
		snap.Asks[i] = LevelSnapshot{Price: level.Price, Quantity: level.TotalQuantity()}
	}
	return snap
}

// Depth returns the number of resting orders.
func (b *Book) Depth() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.resting)
}

// BestBid returns the highest bid price, or 0 if no bids.
func (b *Book) BestBid() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return 0
	}
	return b.bids[0].Price
}

// BestAsk returns the lowest ask price, or 0 if no asks.
func (b *Book) BestAsk() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return 0
	}
	return b.asks[0].Price
}

// MidPrice returns the midpoint between best bid and ask, 0 if either
// side is empty.
func (b *Book) MidPrice() int64 {
	bid := b.BestBid()
	ask := b.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}
