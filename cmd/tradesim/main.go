package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tradesim/internal/account"
	"tradesim/internal/errs"
	"tradesim/internal/executor"
	"tradesim/internal/feed"
	"tradesim/internal/history"
	"tradesim/internal/order"
	"tradesim/internal/store"
)

func main() {
	dataDir := flag.String("data", "data", "data directory for persisted state")
	ordersPath := flag.String("orders", "", "order request file (defaults to stdin)")
	backend := flag.String("store", "csv", "persistence backend: csv or sqlite")
	dbPath := flag.String("db", "", "SQLite database path (default <data>/tradesim.db)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	strict := flag.Bool("strict", false, "stop the run on the first failed order")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fatal(log, errs.New(errs.InvalidArgument, "bad log level %q", *logLevel))
	}
	log.SetLevel(level)

	runID := uuid.New().String()
	runLog := log.WithField("run_id", runID)

	var (
		st     store.Store
		sqlite *store.SQLiteStore
	)
	switch *backend {
	case "csv":
		st = store.NewCSVStore(*dataDir)
	case "sqlite":
		path := *dbPath
		if path == "" {
			path = *dataDir + "/tradesim.db"
		}
		if err := os.MkdirAll(*dataDir, 0o755); err != nil {
			fatal(runLog, errs.Wrap(errs.IOError, err, "create data dir %s", *dataDir))
		}
		sqlite, err = store.NewSQLiteStore(path)
		if err != nil {
			fatal(runLog, err)
		}
		defer sqlite.Close()
		st = sqlite
	default:
		fatal(runLog, errs.New(errs.InvalidArgument, "unknown store backend %q", *backend))
	}

	accounts := account.NewStore()
	orders := order.NewStore()
	hist := history.New()
	exec := executor.New(accounts, orders, hist, runLog)

	snap, err := st.Load()
	if err != nil {
		fatal(runLog, err)
	}
	if err := store.Restore(snap, accounts, hist, orders, exec.TradeSequence()); err != nil {
		fatal(runLog, err)
	}
	runLog.WithFields(logrus.Fields{
		"accounts": len(snap.Accounts),
		"trades":   len(snap.Trades),
	}).Info("state loaded")

	input := os.Stdin
	if *ordersPath != "" {
		f, err := os.Open(*ordersPath)
		if err != nil {
			fatal(runLog, errs.Wrap(errs.IOError, err, "open orders file %s", *ordersPath))
		}
		defer f.Close()
		input = f
	}
	requests, err := feed.Parse(input)
	if err != nil {
		fatal(runLog, err)
	}

	if sqlite != nil {
		if err := sqlite.BeginRun(runID); err != nil {
			fatal(runLog, err)
		}
	}

	var factory order.Factory
	processed, failed, executed := 0, 0, 0
	for _, req := range requests {
		err := apply(exec, accounts, orders, factory, req, &executed)
		if err != nil {
			failed++
			runLog.WithFields(logrus.Fields{
				"line":       req.Line,
				"error_kind": errs.KindOf(err).String(),
			}).Warn(err.Error())
			if *strict {
				fatal(runLog, err)
			}
			continue
		}
		processed++
	}

	if err := st.Save(store.Capture(accounts, hist)); err != nil {
		fatal(runLog, err)
	}
	if sqlite != nil {
		if err := sqlite.FinishRun(runID, processed, executed); err != nil {
			fatal(runLog, err)
		}
	}

	runLog.WithFields(logrus.Fields{
		"requests_ok":     processed,
		"requests_failed": failed,
		"trades_executed": executed,
	}).Info("run complete")

	for _, id := range accounts.IDs() {
		a, _ := accounts.Get(id)
		fmt.Printf("%s: $%s", a.ID, feed.Dollars(a.Balance))
		for _, sym := range a.Symbols() {
			fmt.Printf(" %s=%d", sym, a.Position(sym))
		}
		fmt.Println()
	}
}

// apply routes one parsed request to the right component.
func apply(exec *executor.Executor, accounts *account.Store, orders *order.Store, factory order.Factory, req feed.Request, executed *int) error {
	switch {
	case req.Account != nil:
		_, err := accounts.Create(req.Account.ID, req.Account.InitialBalance)
		return err

	case req.Cancel != nil:
		return exec.Cancel(req.Cancel.OrderID)

	case req.Order != nil:
		r := req.Order
		var (
			o   *order.Order
			err error
		)
		if r.Kind == order.Market {
			o, err = factory.NewMarketOrder(orders.NextID(), r.AccountID, r.Symbol, r.Side, r.Quantity)
		} else {
			o, err = factory.NewLimitOrder(orders.NextID(), r.AccountID, r.Symbol, r.Side, r.Quantity, r.LimitPrice)
		}
		if err != nil {
			return err
		}
		result, err := exec.Process(o)
		*executed += len(result.Trades)
		return err
	}
	return errs.New(errs.InvalidArgument, "empty request at line %d", req.Line)
}

// fatal reports the error kind and message on stderr and exits non-zero.
func fatal(log logrus.FieldLogger, err error) {
	log.WithField("error_kind", errs.KindOf(err).String()).Error(err.Error())
	fmt.Fprintf(os.Stderr, "tradesim: [%s] %v\n", errs.KindOf(err), err)
	os.Exit(1)
}
