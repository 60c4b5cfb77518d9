// Package executor drives one incoming order through submit, match,
// settlement, and history recording as a single unit of work.
package executor

import (
	"github.com/sirupsen/logrus"

	"tradesim/internal/account"
	"tradesim/internal/errs"
	"tradesim/internal/history"
	"tradesim/internal/order"
	"tradesim/internal/orderbook"
)

// Executor composes the account store, order store, per-symbol books,
// and trade history. All processing is synchronous: one order is fully
// processed before the next is accepted.
type Executor struct {
	accounts *account.Store
	orders   *order.Store
	history  *history.History
	tradeSeq *orderbook.TradeSequence
	books    map[string]*orderbook.Book
	log      logrus.FieldLogger
}

func New(accounts *account.Store, orders *order.Store, hist *history.History, log logrus.FieldLogger) *Executor {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Executor{
		accounts: accounts,
		orders:   orders,
		history:  hist,
		tradeSeq: orderbook.NewTradeSequence(),
		books:    make(map[string]*orderbook.Book),
		log:      log,
	}
}

// Book returns the order book for a symbol, creating it on first use.
func (e *Executor) Book(symbol string) *orderbook.Book {
	b, ok := e.books[symbol]
	if !ok {
		b = orderbook.New(symbol, e.tradeSeq)
		e.books[symbol] = b
	}
	return b
}

// TradeSequence exposes the shared trade id sequence for seeding from
// persisted state.
func (e *Executor) TradeSequence() *orderbook.TradeSequence {
	return e.tradeSeq
}

// Result summarizes the processing of one incoming order. Trades holds
// only the trades that settled; on a settlement error the failed trade
// and anything after it are excluded.
type Result struct {
	Order  *order.Order
	Trades []orderbook.Trade
	Status order.Status
}

// Process submits the order, matches it, and settles the resulting
// trades in generation order. Each trade settles atomically: its four
// account mutations all apply or none do. If a trade in a multi-trade
// batch fails, earlier settled trades stay applied and the error
// propagates with no further mutation.
func (e *Executor) Process(o *order.Order) (Result, error) {
	if o == nil {
		return Result{}, errs.New(errs.InvalidArgument, "process: order is nil")
	}

	log := e.log.WithFields(logrus.Fields{
		"order_id": o.ID,
		"account":  o.AccountID,
		"symbol":   o.Symbol,
		"side":     o.Side.String(),
		"kind":     o.Kind.String(),
	})

	if err := e.orders.Submit(o); err != nil {
		log.WithField("error_kind", errs.KindOf(err).String()).Warn("order rejected at submission")
		return Result{}, err
	}

	trades, err := e.Book(o.Symbol).Match(o)
	if err != nil {
		log.WithField("error_kind", errs.KindOf(err).String()).Warn("order rejected by matching engine")
		return Result{Order: o, Status: o.Status}, err
	}

	for i, t := range trades {
		if err := e.settle(t); err != nil {
			log.WithFields(logrus.Fields{
				"trade_id":   t.ID,
				"error_kind": errs.KindOf(err).String(),
			}).Error("settlement aborted")
			return Result{Order: o, Trades: trades[:i], Status: o.Status}, err
		}
	}

	log.WithFields(logrus.Fields{
		"trades": len(trades),
		"status": o.Status.String(),
	}).Info("order processed")

	return Result{Order: o, Trades: trades, Status: o.Status}, nil
}

// settle applies one trade to both participant accounts and records it.
// Both accounts are pre-checked before the first mutation, so a failed
// settlement leaves them untouched.
func (e *Executor) settle(t orderbook.Trade) error {
	buyOrder, err := e.orders.Get(t.BuyOrderID)
	if err != nil {
		return err
	}
	sellOrder, err := e.orders.Get(t.SellOrderID)
	if err != nil {
		return err
	}

	// A malformed trade indicates an engine bug, not user error.
	if t.Quantity <= 0 {
		return errs.New(errs.InvalidState, "trade %d: quantity must be > 0, got %d", t.ID, t.Quantity)
	}
	if t.Price <= 0 {
		return errs.New(errs.InvalidState, "trade %d: price must be > 0, got %d", t.ID, t.Price)
	}
	if t.Symbol == "" {
		return errs.New(errs.InvalidState, "trade %d: symbol is empty", t.ID)
	}
	if buyOrder.Symbol != t.Symbol || sellOrder.Symbol != t.Symbol {
		return errs.New(errs.InvalidState, "trade %d: symbol %s mismatches orders", t.ID, t.Symbol)
	}
	if buyOrder.Side != order.Buy {
		return errs.New(errs.InvalidState, "trade %d: order %d in buy slot is not a buy", t.ID, buyOrder.ID)
	}
	if sellOrder.Side != order.Sell {
		return errs.New(errs.InvalidState, "trade %d: order %d in sell slot is not a sell", t.ID, sellOrder.ID)
	}

	buyer, err := e.accounts.Get(buyOrder.AccountID)
	if err != nil {
		return err
	}
	seller, err := e.accounts.Get(sellOrder.AccountID)
	if err != nil {
		return err
	}

	notional := t.Quantity * t.Price

	// Pre-check both sides so the trade applies all-or-nothing.
	if buyer.Balance < notional {
		return errs.New(errs.InsufficientFunds,
			"trade %d: buyer %s balance %d < notional %d", t.ID, buyer.ID, buyer.Balance, notional)
	}
	if seller.Position(t.Symbol) < t.Quantity {
		return errs.New(errs.InsufficientPosition,
			"trade %d: seller %s holds %d %s < %d", t.ID, seller.ID, seller.Position(t.Symbol), t.Symbol, t.Quantity)
	}

	if err := buyer.AdjustPosition(t.Symbol, t.Quantity); err != nil {
		return err
	}
	if err := buyer.Debit(notional); err != nil {
		return err
	}
	if err := seller.Credit(notional); err != nil {
		return err
	}
	if err := seller.AdjustPosition(t.Symbol, -t.Quantity); err != nil {
		return err
	}

	e.history.Record(t, buyer.ID, seller.ID)

	if err := e.updateFillStatus(buyOrder); err != nil {
		return err
	}
	return e.updateFillStatus(sellOrder)
}

func (e *Executor) updateFillStatus(o *order.Order) error {
	next := order.PartiallyFilled
	if o.IsFilled() {
		next = order.Filled
	}
	return e.orders.SetStatus(o.ID, next)
}

// Cancel transitions the order to Cancelled and evicts any resting
// remainder from its book. The book entry is derived state, removed
// exactly once here.
func (e *Executor) Cancel(id int64) error {
	restingPossible, err := e.orders.Cancel(id)
	if err != nil {
		return err
	}
	if restingPossible {
		o, err := e.orders.Get(id)
		if err != nil {
			return err
		}
		e.Book(o.Symbol).Remove(id)
	}
	e.log.WithField("order_id", id).Info("order cancelled")
	return nil
}
