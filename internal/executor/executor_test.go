package executor

import (
	"testing"

	"pgregory.net/rapid"

	"tradesim/internal/account"
	"tradesim/internal/errs"
	"tradesim/internal/history"
	"tradesim/internal/order"
)

type fixture struct {
	accounts *account.Store
	orders   *order.Store
	history  *history.History
	exec     *Executor
	factory  order.Factory
}

// testingT is the slice of testing.TB the fixture needs, satisfied by
// both *testing.T and *rapid.T.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

func setup(t testingT) *fixture {
	t.Helper()
	f := &fixture{
		accounts: account.NewStore(),
		orders:   order.NewStore(),
		history:  history.New(),
	}
	f.exec = New(f.accounts, f.orders, f.history, nil)
	return f
}

func (f *fixture) limit(t testingT, accountID, symbol string, side order.Side, qty, price int64) *order.Order {
	t.Helper()
	o, err := f.factory.NewLimitOrder(f.orders.NextID(), accountID, symbol, side, qty, price)
	if err != nil {
		t.Fatalf("NewLimitOrder failed: %v", err)
	}
	return o
}

func (f *fixture) market(t testingT, accountID, symbol string, side order.Side, qty int64) *order.Order {
	t.Helper()
	o, err := f.factory.NewMarketOrder(f.orders.NextID(), accountID, symbol, side, qty)
	if err != nil {
		t.Fatalf("NewMarketOrder failed: %v", err)
	}
	return o
}

func TestLimitBuyAgainstRestingSell(t *testing.T) {
	f := setup(t)

	u1, _ := f.accounts.Create("u1", 100000)
	u2, _ := f.accounts.Create("u2", 0)
	u2.AdjustPosition("AAPL", 10)

	sell := f.limit(t, "u2", "AAPL", order.Sell, 10, 9000)
	if _, err := f.exec.Process(sell); err != nil {
		t.Fatalf("resting sell failed: %v", err)
	}

	buy := f.limit(t, "u1", "AAPL", order.Buy, 10, 10000)
	result, err := f.exec.Process(buy)
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(result.Trades))
	}
	tr := result.Trades[0]
	if tr.Quantity != 10 || tr.Price != 9000 {
		t.Errorf("expected qty 10 @ 9000, got %d @ %d", tr.Quantity, tr.Price)
	}

	// Notional 90000: buyer pays the resting price, not their limit.
	if u1.Balance != 10000 {
		t.Errorf("u1 balance: expected 10000, got %d", u1.Balance)
	}
	if u1.Position("AAPL") != 10 {
		t.Errorf("u1 AAPL: expected 10, got %d", u1.Position("AAPL"))
	}
	if u2.Balance != 90000 {
		t.Errorf("u2 balance: expected 90000, got %d", u2.Balance)
	}
	if u2.Position("AAPL") != 0 {
		t.Errorf("u2 AAPL: expected 0, got %d", u2.Position("AAPL"))
	}

	if buy.Status != order.Filled || sell.Status != order.Filled {
		t.Errorf("expected both Filled, got buy=%v sell=%v", buy.Status, sell.Status)
	}

	if got := f.history.HistoryOf("u1"); len(got) != 1 {
		t.Errorf("expected 1 trade in u1 history, got %d", len(got))
	}
	if got := f.history.HistoryOf("u2"); len(got) != 1 {
		t.Errorf("expected 1 trade in u2 history, got %d", len(got))
	}
}

func TestZeroQuantityOrderRejectedUnchanged(t *testing.T) {
	f := setup(t)
	u1, _ := f.accounts.Create("u1", 100000)

	// The factory is the validation gate.
	_, err := f.factory.NewLimitOrder(f.orders.NextID(), "u1", "AAPL", order.Buy, 0, 100)
	if !errs.Is(err, errs.InvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	// A malformed order smuggled past the factory is still rejected
	// before the book or any account is touched.
	bad := &order.Order{ID: f.orders.NextID(), AccountID: "u1", Symbol: "AAPL", Side: order.Buy, Kind: order.Limit, Price: 100}
	_, err = f.exec.Process(bad)
	if !errs.Is(err, errs.InvalidArgument) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	if f.exec.Book("AAPL").Depth() != 0 {
		t.Error("book must be unchanged")
	}
	if u1.Balance != 100000 {
		t.Errorf("account must be unchanged, balance %d", u1.Balance)
	}
}

func TestProcessNilOrder(t *testing.T) {
	f := setup(t)
	if _, err := f.exec.Process(nil); !errs.Is(err, errs.InvalidArgument) {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}

func TestProcessDuplicateOrder(t *testing.T) {
	f := setup(t)
	f.accounts.Create("u1", 1000)

	o := f.limit(t, "u1", "AAPL", order.Buy, 1, 100)
	if _, err := f.exec.Process(o); err != nil {
		t.Fatalf("first Process failed: %v", err)
	}
	dup := f.limit(t, "u1", "AAPL", order.Buy, 1, 100)
	dup.ID = o.ID
	if _, err := f.exec.Process(dup); !errs.Is(err, errs.Duplicate) {
		t.Errorf("expected Duplicate, got %v", err)
	}
}

func TestPartialFillStatuses(t *testing.T) {
	f := setup(t)
	f.accounts.Create("buyer", 1000000)
	seller, _ := f.accounts.Create("seller", 0)
	seller.AdjustPosition("AAPL", 20)

	sell := f.limit(t, "seller", "AAPL", order.Sell, 20, 100)
	f.exec.Process(sell)

	buy := f.limit(t, "buyer", "AAPL", order.Buy, 10, 100)
	result, err := f.exec.Process(buy)
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	if result.Status != order.Filled {
		t.Errorf("incoming order should be Filled, got %v", result.Status)
	}
	if buy.Remaining() != 0 {
		t.Errorf("filled order remaining should be 0, got %d", buy.Remaining())
	}
	if sell.Status != order.PartiallyFilled {
		t.Errorf("resting order should be PartiallyFilled, got %v", sell.Status)
	}
	if sell.Remaining() != 10 {
		t.Errorf("resting remaining should be 10, got %d", sell.Remaining())
	}
}

func TestMarketOrderNoLiquidity(t *testing.T) {
	f := setup(t)
	f.accounts.Create("u1", 1000)

	o := f.market(t, "u1", "AAPL", order.Buy, 10)
	result, err := f.exec.Process(o)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(result.Trades) != 0 {
		t.Errorf("expected no trades, got %d", len(result.Trades))
	}
	// No fills: the order stays Pending and never rests.
	if result.Status != order.Pending {
		t.Errorf("expected Pending, got %v", result.Status)
	}
	if f.exec.Book("AAPL").Depth() != 0 {
		t.Error("market order must not rest in the book")
	}
}

func TestPartialMarketFillDiscardsRemainder(t *testing.T) {
	f := setup(t)
	f.accounts.Create("buyer", 1000000)
	seller, _ := f.accounts.Create("seller", 0)
	seller.AdjustPosition("AAPL", 5)

	f.exec.Process(f.limit(t, "seller", "AAPL", order.Sell, 5, 100))

	o := f.market(t, "buyer", "AAPL", order.Buy, 10)
	result, err := f.exec.Process(o)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(result.Trades) != 1 || result.Trades[0].Quantity != 5 {
		t.Fatalf("expected one trade of 5, got %v", result.Trades)
	}
	if result.Status != order.PartiallyFilled {
		t.Errorf("expected PartiallyFilled, got %v", result.Status)
	}
	if f.exec.Book("AAPL").Depth() != 0 {
		t.Error("market remainder must not rest")
	}
}

func TestSecondTradeFailureLeavesFirstApplied(t *testing.T) {
	f := setup(t)

	buyer, _ := f.accounts.Create("buyer", 1500)
	s1, _ := f.accounts.Create("seller1", 0)
	s1.AdjustPosition("AAPL", 10)
	s2, _ := f.accounts.Create("seller2", 0)
	s2.AdjustPosition("AAPL", 10)

	f.exec.Process(f.limit(t, "seller1", "AAPL", order.Sell, 10, 100)) // notional 1000
	f.exec.Process(f.limit(t, "seller2", "AAPL", order.Sell, 10, 200)) // notional 2000

	s2BalanceBefore := s2.Balance
	s2PositionBefore := s2.Position("AAPL")

	// Crosses both asks; funds only cover the first trade.
	buy := f.limit(t, "buyer", "AAPL", order.Buy, 20, 200)
	result, err := f.exec.Process(buy)
	if !errs.Is(err, errs.InsufficientFunds) {
		t.Fatalf("expected InsufficientFunds, got %v", err)
	}

	// The result reports the settled trade only, not the failed one.
	if len(result.Trades) != 1 {
		t.Errorf("expected 1 settled trade in result, got %d", len(result.Trades))
	}

	// First trade settled in full.
	if buyer.Balance != 500 {
		t.Errorf("buyer balance: expected 500, got %d", buyer.Balance)
	}
	if buyer.Position("AAPL") != 10 {
		t.Errorf("buyer AAPL: expected 10, got %d", buyer.Position("AAPL"))
	}
	if s1.Balance != 1000 || s1.Position("AAPL") != 0 {
		t.Errorf("seller1: expected 1000/0, got %d/%d", s1.Balance, s1.Position("AAPL"))
	}

	// Failed trade applied nothing to either of its accounts.
	if s2.Balance != s2BalanceBefore || s2.Position("AAPL") != s2PositionBefore {
		t.Errorf("seller2 must be untouched, got %d/%d", s2.Balance, s2.Position("AAPL"))
	}

	if f.history.Len() != 1 {
		t.Errorf("only the settled trade belongs in history, got %d", f.history.Len())
	}
}

func TestInsufficientPositionAbortsTrade(t *testing.T) {
	f := setup(t)

	buyer, _ := f.accounts.Create("buyer", 100000)
	seller, _ := f.accounts.Create("seller", 0) // sells without holding

	f.exec.Process(f.limit(t, "seller", "AAPL", order.Sell, 10, 100))

	_, err := f.exec.Process(f.limit(t, "buyer", "AAPL", order.Buy, 10, 100))
	if !errs.Is(err, errs.InsufficientPosition) {
		t.Fatalf("expected InsufficientPosition, got %v", err)
	}

	if buyer.Balance != 100000 || buyer.Position("AAPL") != 0 {
		t.Errorf("buyer must be untouched, got %d/%d", buyer.Balance, buyer.Position("AAPL"))
	}
	if seller.Balance != 0 {
		t.Errorf("seller must be untouched, got balance %d", seller.Balance)
	}
	if f.history.Len() != 0 {
		t.Errorf("aborted trade must not be recorded, got %d", f.history.Len())
	}
}

func TestSettlementUnknownAccount(t *testing.T) {
	f := setup(t)
	f.accounts.Create("buyer", 100000)
	// "ghost" never gets an account; its sell rests anyway.
	f.exec.Process(f.limit(t, "ghost", "AAPL", order.Sell, 10, 100))

	_, err := f.exec.Process(f.limit(t, "buyer", "AAPL", order.Buy, 10, 100))
	if !errs.Is(err, errs.NotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestCancelRestingOrder(t *testing.T) {
	f := setup(t)
	f.accounts.Create("u1", 1000)

	o := f.limit(t, "u1", "AAPL", order.Buy, 10, 100)
	f.exec.Process(o)
	if f.exec.Book("AAPL").Depth() != 1 {
		t.Fatal("order should be resting")
	}

	if err := f.exec.Cancel(o.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if o.Status != order.Cancelled {
		t.Errorf("expected Cancelled, got %v", o.Status)
	}
	if f.exec.Book("AAPL").Depth() != 0 {
		t.Error("cancelled order must be evicted from the book")
	}
}

func TestCancelFilledOrderFails(t *testing.T) {
	f := setup(t)
	f.accounts.Create("buyer", 100000)
	seller, _ := f.accounts.Create("seller", 0)
	seller.AdjustPosition("AAPL", 10)

	sell := f.limit(t, "seller", "AAPL", order.Sell, 10, 100)
	f.exec.Process(sell)
	f.exec.Process(f.limit(t, "buyer", "AAPL", order.Buy, 10, 100))

	if sell.Status != order.Filled {
		t.Fatalf("precondition: sell should be Filled, got %v", sell.Status)
	}
	if err := f.exec.Cancel(sell.ID); !errs.Is(err, errs.InvalidState) {
		t.Errorf("expected InvalidState, got %v", err)
	}
}

func TestCancelUnknownOrder(t *testing.T) {
	f := setup(t)
	if err := f.exec.Cancel(404); !errs.Is(err, errs.NotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

// Settlement either applies all four mutations of a trade or none, so
// total cash and total shares are conserved across any order flow.
func TestProperty_SettlementConservesCashAndShares(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := setup(t)

		aCash := rapid.Int64Range(0, 100000).Draw(t, "aCash")
		bCash := rapid.Int64Range(0, 100000).Draw(t, "bCash")
		aShares := rapid.Int64Range(0, 100).Draw(t, "aShares")
		bShares := rapid.Int64Range(0, 100).Draw(t, "bShares")

		a, _ := f.accounts.Create("a", aCash)
		b, _ := f.accounts.Create("b", bCash)
		a.AdjustPosition("AAPL", aShares)
		b.AdjustPosition("AAPL", bShares)

		totalCash := aCash + bCash
		totalShares := aShares + bShares

		n := rapid.IntRange(1, 20).Draw(t, "orders")
		for i := 0; i < n; i++ {
			who := rapid.SampledFrom([]string{"a", "b"}).Draw(t, "who")
			side := order.Buy
			if rapid.Bool().Draw(t, "sell") {
				side = order.Sell
			}
			qty := rapid.Int64Range(1, 20).Draw(t, "qty")
			price := rapid.Int64Range(1, 500).Draw(t, "price")

			o := f.limit(t, who, "AAPL", side, qty, price)
			// Business-rule rejections are expected; conservation must
			// hold either way.
			f.exec.Process(o)

			if a.Balance+b.Balance != totalCash {
				t.Fatalf("cash not conserved: %d + %d != %d", a.Balance, b.Balance, totalCash)
			}
			if a.Position("AAPL")+b.Position("AAPL") != totalShares {
				t.Fatalf("shares not conserved: %d + %d != %d",
					a.Position("AAPL"), b.Position("AAPL"), totalShares)
			}
			if a.Balance < 0 || b.Balance < 0 {
				t.Fatalf("negative balance: a=%d b=%d", a.Balance, b.Balance)
			}
		}
	})
}
