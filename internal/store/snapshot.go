// Package store persists simulator state at process boundaries. Two
// backends implement the same Store interface: line-oriented CSV flat
// files and SQLite. The core never touches persistence mid-run.
package store

import (
	"tradesim/internal/account"
	"tradesim/internal/errs"
	"tradesim/internal/history"
	"tradesim/internal/order"
	"tradesim/internal/orderbook"
)

// AccountRecord is one persisted account balance.
type AccountRecord struct {
	ID      string
	Balance int64 // in cents
}

// PositionRecord is one persisted holding.
type PositionRecord struct {
	AccountID string
	Symbol    string
	Quantity  int64
}

// Snapshot is the full persisted state of a run: balances, holdings,
// and the trade log.
type Snapshot struct {
	Accounts  []AccountRecord
	Positions []PositionRecord
	Trades    []orderbook.Trade
}

// Store loads and saves snapshots. Loads happen at startup, saves at
// shutdown; nothing touches storage per order.
type Store interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
}

// Capture builds a snapshot from the live stores. Accounts and symbols
// are emitted in sorted order so saves are deterministic; trades keep
// record order.
func Capture(accounts *account.Store, hist *history.History) Snapshot {
	var snap Snapshot
	for _, id := range accounts.IDs() {
		a, _ := accounts.Get(id)
		snap.Accounts = append(snap.Accounts, AccountRecord{ID: a.ID, Balance: a.Balance})
		for _, sym := range a.Symbols() {
			snap.Positions = append(snap.Positions, PositionRecord{
				AccountID: a.ID,
				Symbol:    sym,
				Quantity:  a.Position(sym),
			})
		}
	}
	snap.Trades = hist.All()
	return snap
}

// Restore replays a snapshot into fresh stores and seeds the order and
// trade id sequences past the largest persisted ids.
func Restore(snap Snapshot, accounts *account.Store, hist *history.History, orders *order.Store, seq *orderbook.TradeSequence) error {
	for _, rec := range snap.Accounts {
		if _, err := accounts.Create(rec.ID, rec.Balance); err != nil {
			return err
		}
	}
	for _, rec := range snap.Positions {
		a, err := accounts.Get(rec.AccountID)
		if err != nil {
			return errs.Wrap(errs.ParseError, err, "position for unknown account %s", rec.AccountID)
		}
		if err := a.AdjustPosition(rec.Symbol, rec.Quantity); err != nil {
			return err
		}
	}

	hist.LoadTrades(snap.Trades)

	var maxOrderID, maxTradeID int64
	for _, t := range snap.Trades {
		if t.ID > maxTradeID {
			maxTradeID = t.ID
		}
		if t.BuyOrderID > maxOrderID {
			maxOrderID = t.BuyOrderID
		}
		if t.SellOrderID > maxOrderID {
			maxOrderID = t.SellOrderID
		}
	}
	orders.SeedNextID(maxOrderID + 1)
	seq.Seed(maxTradeID + 1)
	return nil
}
