package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tradesim/internal/errs"
	"tradesim/internal/orderbook"
)

// File names inside the data directory. Formats are line-oriented,
// comma-delimited, no header, no escaping; blank lines are permitted.
const (
	accountsFile  = "accounts.csv"
	positionsFile = "positions.csv"
	tradesFile    = "trades.csv"
)

// CSVStore persists snapshots as flat CSV files in one directory.
// A file missing on load is treated as empty (first run); any line
// that fails to parse fails the whole load.
type CSVStore struct {
	dir string
}

func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{dir: dir}
}

func (s *CSVStore) Load() (Snapshot, error) {
	var snap Snapshot

	err := readLines(filepath.Join(s.dir, accountsFile), func(line int, fields []string) error {
		if len(fields) != 2 {
			return errs.New(errs.ParseError, "%s:%d: want 2 fields, got %d", accountsFile, line, len(fields))
		}
		balance, err := parseInt(accountsFile, line, "balance", fields[1])
		if err != nil {
			return err
		}
		if fields[0] == "" {
			return errs.New(errs.ParseError, "%s:%d: empty account id", accountsFile, line)
		}
		snap.Accounts = append(snap.Accounts, AccountRecord{ID: fields[0], Balance: balance})
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	err = readLines(filepath.Join(s.dir, positionsFile), func(line int, fields []string) error {
		if len(fields) != 3 {
			return errs.New(errs.ParseError, "%s:%d: want 3 fields, got %d", positionsFile, line, len(fields))
		}
		qty, err := parseInt(positionsFile, line, "qty", fields[2])
		if err != nil {
			return err
		}
		if qty < 0 {
			return errs.New(errs.ParseError, "%s:%d: negative quantity %d", positionsFile, line, qty)
		}
		snap.Positions = append(snap.Positions, PositionRecord{
			AccountID: fields[0],
			Symbol:    fields[1],
			Quantity:  qty,
		})
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	err = readLines(filepath.Join(s.dir, tradesFile), func(line int, fields []string) error {
		if len(fields) != 6 {
			return errs.New(errs.ParseError, "%s:%d: want 6 fields, got %d", tradesFile, line, len(fields))
		}
		var t orderbook.Trade
		var err error
		if t.ID, err = parseInt(tradesFile, line, "tradeId", fields[0]); err != nil {
			return err
		}
		if t.BuyOrderID, err = parseInt(tradesFile, line, "buyOrderId", fields[1]); err != nil {
			return err
		}
		if t.SellOrderID, err = parseInt(tradesFile, line, "sellOrderId", fields[2]); err != nil {
			return err
		}
		t.Symbol = fields[3]
		if t.Quantity, err = parseInt(tradesFile, line, "qty", fields[4]); err != nil {
			return err
		}
		if t.Price, err = parseInt(tradesFile, line, "priceCents", fields[5]); err != nil {
			return err
		}
		snap.Trades = append(snap.Trades, t)
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	return snap, nil
}

func (s *CSVStore) Save(snap Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errs.Wrap(errs.IOError, err, "create data dir %s", s.dir)
	}

	accounts := make([]string, 0, len(snap.Accounts))
	for _, rec := range snap.Accounts {
		accounts = append(accounts, fmt.Sprintf("%s,%d", rec.ID, rec.Balance))
	}
	if err := writeLines(filepath.Join(s.dir, accountsFile), accounts); err != nil {
		return err
	}

	positions := make([]string, 0, len(snap.Positions))
	for _, rec := range snap.Positions {
		positions = append(positions, fmt.Sprintf("%s,%s,%d", rec.AccountID, rec.Symbol, rec.Quantity))
	}
	if err := writeLines(filepath.Join(s.dir, positionsFile), positions); err != nil {
		return err
	}

	trades := make([]string, 0, len(snap.Trades))
	for _, t := range snap.Trades {
		trades = append(trades, fmt.Sprintf("%d,%d,%d,%s,%d,%d",
			t.ID, t.BuyOrderID, t.SellOrderID, t.Symbol, t.Quantity, t.Price))
	}
	return writeLines(filepath.Join(s.dir, tradesFile), trades)
}

// readLines feeds each non-blank line's comma-split fields to fn.
// A missing file is not an error.
func readLines(path string, fn func(line int, fields []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(errs.IOError, err, "open %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := fn(line, strings.Split(text, ",")); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errs.Wrap(errs.IOError, err, "read %s", path)
	}
	return nil
}

func writeLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.IOError, err, "open %s for write", path)
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errs.Wrap(errs.IOError, err, "write %s", path)
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(errs.IOError, err, "close %s", path)
	}
	return nil
}

func parseInt(file string, line int, field, value string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, errs.New(errs.ParseError, "%s:%d: bad %s %q", file, line, field, value)
	}
	return n, nil
}
