// Package history is the append-only record of executed trades,
// indexed by participant for query.
package history

import (
	"tradesim/internal/orderbook"
)

// History stores every executed trade in record order and an index of
// trade ids per participant account. Trades are never mutated or
// removed.
type History struct {
	trades []orderbook.Trade
	byID   map[int64]orderbook.Trade
	index  map[string][]int64
}

func New() *History {
	return &History{
		byID:  make(map[int64]orderbook.Trade),
		index: make(map[string][]int64),
	}
}

// Record appends the trade and indexes it under both participants.
func (h *History) Record(t orderbook.Trade, buyerID, sellerID string) {
	h.trades = append(h.trades, t)
	h.byID[t.ID] = t
	h.index[buyerID] = append(h.index[buyerID], t.ID)
	h.index[sellerID] = append(h.index[sellerID], t.ID)
}

// HistoryOf returns the trades recorded for an account, in recorded
// order. Unknown or trade-less accounts get an empty slice, not an
// error.
func (h *History) HistoryOf(accountID string) []orderbook.Trade {
	ids := h.index[accountID]
	out := make([]orderbook.Trade, 0, len(ids))
	for _, id := range ids {
		if t, ok := h.byID[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// LoadTrades appends previously persisted trades in record order. The
// persisted format carries order ids, not account ids, so restored
// trades are queryable by id and record order but are not re-indexed
// per participant.
func (h *History) LoadTrades(ts []orderbook.Trade) {
	for _, t := range ts {
		h.trades = append(h.trades, t)
		h.byID[t.ID] = t
	}
}

// All returns every trade in global record order, for persistence.
func (h *History) All() []orderbook.Trade {
	out := make([]orderbook.Trade, len(h.trades))
	copy(out, h.trades)
	return out
}

// RecentTrades returns the last n trades, oldest first.
func (h *History) RecentTrades(n int) []orderbook.Trade {
	if n > len(h.trades) {
		n = len(h.trades)
	}
	start := len(h.trades) - n
	out := make([]orderbook.Trade, n)
	copy(out, h.trades[start:])
	return out
}

// MaxTradeID returns the largest recorded trade id, 0 when empty.
func (h *History) MaxTradeID() int64 {
	var max int64
	for id := range h.byID {
		if id > max {
			max = id
		}
	}
	return max
}

// Len returns the number of recorded trades.
func (h *History) Len() int {
	return len(h.trades)
}
