package store

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"tradesim/internal/errs"
	"tradesim/internal/orderbook"
)

// SQLiteStore persists snapshots in a SQLite database. Saves run in a
// single transaction so the stored state is never half-written.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database and brings the schema
// up to date.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, err, "open sqlite db %s", dbPath)
	}

	s := &SQLiteStore{db: db}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.IOError, err, "migrate sqlite db %s", dbPath)
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load() (Snapshot, error) {
	var snap Snapshot

	rows, err := s.db.Query("SELECT id, balance FROM accounts ORDER BY id")
	if err != nil {
		return Snapshot{}, errs.Wrap(errs.IOError, err, "query accounts")
	}
	defer rows.Close()
	for rows.Next() {
		var rec AccountRecord
		if err := rows.Scan(&rec.ID, &rec.Balance); err != nil {
			return Snapshot{}, errs.Wrap(errs.ParseError, err, "scan account row")
		}
		snap.Accounts = append(snap.Accounts, rec)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, errs.Wrap(errs.IOError, err, "iterate accounts")
	}

	rows, err = s.db.Query("SELECT account_id, symbol, quantity FROM positions ORDER BY account_id, symbol")
	if err != nil {
		return Snapshot{}, errs.Wrap(errs.IOError, err, "query positions")
	}
	defer rows.Close()
	for rows.Next() {
		var rec PositionRecord
		if err := rows.Scan(&rec.AccountID, &rec.Symbol, &rec.Quantity); err != nil {
			return Snapshot{}, errs.Wrap(errs.ParseError, err, "scan position row")
		}
		snap.Positions = append(snap.Positions, rec)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, errs.Wrap(errs.IOError, err, "iterate positions")
	}

	rows, err = s.db.Query("SELECT id, buy_order_id, sell_order_id, symbol, quantity, price FROM trades ORDER BY id")
	if err != nil {
		return Snapshot{}, errs.Wrap(errs.IOError, err, "query trades")
	}
	defer rows.Close()
	for rows.Next() {
		var t orderbook.Trade
		if err := rows.Scan(&t.ID, &t.BuyOrderID, &t.SellOrderID, &t.Symbol, &t.Quantity, &t.Price); err != nil {
			return Snapshot{}, errs.Wrap(errs.ParseError, err, "scan trade row")
		}
		snap.Trades = append(snap.Trades, t)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, errs.Wrap(errs.IOError, err, "iterate trades")
	}

	return snap, nil
}

func (s *SQLiteStore) Save(snap Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.IOError, err, "begin save transaction")
	}
	defer tx.Rollback()

	for _, table := range []string{"positions", "accounts", "trades"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return errs.Wrap(errs.IOError, err, "clear %s", table)
		}
	}

	for _, rec := range snap.Accounts {
		if _, err := tx.Exec(
			"INSERT INTO accounts (id, balance) VALUES (?, ?)",
			rec.ID, rec.Balance,
		); err != nil {
			return errs.Wrap(errs.IOError, err, "insert account %s", rec.ID)
		}
	}
	for _, rec := range snap.Positions {
		if _, err := tx.Exec(
			"INSERT INTO positions (account_id, symbol, quantity) VALUES (?, ?, ?)",
			rec.AccountID, rec.Symbol, rec.Quantity,
		); err != nil {
			return errs.Wrap(errs.IOError, err, "insert position %s/%s", rec.AccountID, rec.Symbol)
		}
	}
	for _, t := range snap.Trades {
		if _, err := tx.Exec(
			"INSERT INTO trades (id, buy_order_id, sell_order_id, symbol, quantity, price) VALUES (?, ?, ?, ?, ?, ?)",
			t.ID, t.BuyOrderID, t.SellOrderID, t.Symbol, t.Quantity, t.Price,
		); err != nil {
			return errs.Wrap(errs.IOError, err, "insert trade %d", t.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.IOError, err, "commit save transaction")
	}
	return nil
}

// BeginRun records the start of a simulation run.
func (s *SQLiteStore) BeginRun(runID string) error {
	_, err := s.db.Exec(
		"INSERT INTO runs (id, started_at) VALUES (?, ?)",
		runID, time.Now(),
	)
	if err != nil {
		return errs.Wrap(errs.IOError, err, "record run start %s", runID)
	}
	return nil
}

// FinishRun records the end of a run with its order and trade counts.
func (s *SQLiteStore) FinishRun(runID string, ordersProcessed, tradesExecuted int) error {
	_, err := s.db.Exec(
		"UPDATE runs SET finished_at = ?, orders_processed = ?, trades_executed = ? WHERE id = ?",
		time.Now(), ordersProcessed, tradesExecuted, runID,
	)
	if err != nil {
		return errs.Wrap(errs.IOError, err, "record run finish %s", runID)
	}
	return nil
}
