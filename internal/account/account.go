// Package account owns cash balances and per-symbol positions.
//
// Balances and positions are int64 minor currency units / share counts
// and are never allowed below zero by any committed operation. The
// store is a plain in-memory map; durable storage is a separate
// collaborator that snapshots and restores it at process boundaries.
package account

import (
	"sort"

	"tradesim/internal/errs"
)

// Account is a participant's cash balance and holdings.
type Account struct {
	ID        string
	Balance   int64 // in cents
	Positions map[string]int64
}

// Position returns the held quantity for a symbol, 0 if unheld.
func (a *Account) Position(symbol string) int64 {
	return a.Positions[symbol]
}

// Debit removes amount from the balance.
func (a *Account) Debit(amount int64) error {
	if amount < 0 {
		return errs.New(errs.InvalidArgument, "debit amount must be >= 0, got %d", amount)
	}
	if a.Balance < amount {
		return errs.New(errs.InsufficientFunds, "account %s: balance %d < debit %d", a.ID, a.Balance, amount)
	}
	a.Balance -= amount
	return nil
}

// Credit adds amount to the balance.
func (a *Account) Credit(amount int64) error {
	if amount < 0 {
		return errs.New(errs.InvalidArgument, "credit amount must be >= 0, got %d", amount)
	}
	a.Balance += amount
	return nil
}

// AdjustPosition applies a signed quantity delta for a symbol.
// The resulting quantity may not go negative (no shorting).
func (a *Account) AdjustPosition(symbol string, delta int64) error {
	next := a.Positions[symbol] + delta
	if next < 0 {
		return errs.New(errs.InsufficientPosition,
			"account %s: position %s %d + delta %d would be negative", a.ID, symbol, a.Positions[symbol], delta)
	}
	if next == 0 {
		delete(a.Positions, symbol)
	} else {
		a.Positions[symbol] = next
	}
	return nil
}

// Store is the in-memory account repository.
type Store struct {
	accounts map[string]*Account
}

func NewStore() *Store {
	return &Store{accounts: make(map[string]*Account)}
}

// Create adds a new account with the given starting balance and no positions.
func (s *Store) Create(id string, initialBalance int64) (*Account, error) {
	if id == "" {
		return nil, errs.New(errs.InvalidArgument, "account id is empty")
	}
	if initialBalance < 0 {
		return nil, errs.New(errs.InvalidArgument, "initial balance must be >= 0, got %d", initialBalance)
	}
	if _, ok := s.accounts[id]; ok {
		return nil, errs.New(errs.Duplicate, "account %s already exists", id)
	}
	a := &Account{ID: id, Balance: initialBalance, Positions: make(map[string]int64)}
	s.accounts[id] = a
	return a, nil
}

// Get returns the account for id.
func (s *Store) Get(id string) (*Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "account not found: %s", id)
	}
	return a, nil
}

// Exists reports whether an account with this id is present.
func (s *Store) Exists(id string) bool {
	_, ok := s.accounts[id]
	return ok
}

// IDs returns all account ids in sorted order, for deterministic saves.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Symbols returns an account's held symbols in sorted order.
func (a *Account) Symbols() []string {
	syms := make([]string, 0, len(a.Positions))
	for sym := range a.Positions {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}
