// Package feed reads order-request files for the CLI. Requests are
// comma-delimited lines; prices are decimal currency strings converted
// exactly to integer cents, never through floating point.
package feed

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"tradesim/internal/errs"
	"tradesim/internal/order"
)

// Request is one parsed line. Exactly one of the fields is set.
type Request struct {
	Line    int
	Account *AccountRequest
	Order   *OrderRequest
	Cancel  *CancelRequest
}

// AccountRequest creates an account inline:
//
//	account,<id>,<initialBalanceCents>
type AccountRequest struct {
	ID             string
	InitialBalance int64
}

// OrderRequest submits an order:
//
//	<accountId>,<symbol>,<side>,<kind>,<qty>[,<limitPrice>]
//
// side is buy|sell, kind is market|limit; limitPrice is a decimal
// currency string (e.g. 90.00) required iff kind is limit.
type OrderRequest struct {
	AccountID  string
	Symbol     string
	Side       order.Side
	Kind       order.Kind
	Quantity   int64
	LimitPrice int64 // in cents; 0 for market orders
}

// CancelRequest cancels a previously submitted order:
//
//	cancel,<orderId>
type CancelRequest struct {
	OrderID int64
}

// Parse reads all requests from r. Blank lines and lines starting with
// '#' are skipped; any malformed line fails the whole parse.
func Parse(r io.Reader) ([]Request, error) {
	var reqs []Request

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		req, err := parseLine(line, strings.Split(text, ","))
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.IOError, err, "read order requests")
	}
	return reqs, nil
}

func parseLine(line int, fields []string) (Request, error) {
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	switch fields[0] {
	case "account":
		if len(fields) != 3 {
			return Request{}, errs.New(errs.ParseError, "line %d: account directive wants 3 fields, got %d", line, len(fields))
		}
		balance, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return Request{}, errs.New(errs.ParseError, "line %d: bad balance %q", line, fields[2])
		}
		return Request{Line: line, Account: &AccountRequest{ID: fields[1], InitialBalance: balance}}, nil

	case "cancel":
		if len(fields) != 2 {
			return Request{}, errs.New(errs.ParseError, "line %d: cancel directive wants 2 fields, got %d", line, len(fields))
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return Request{}, errs.New(errs.ParseError, "line %d: bad order id %q", line, fields[1])
		}
		return Request{Line: line, Cancel: &CancelRequest{OrderID: id}}, nil
	}

	if len(fields) != 5 && len(fields) != 6 {
		return Request{}, errs.New(errs.ParseError, "line %d: order wants 5 or 6 fields, got %d", line, len(fields))
	}

	req := &OrderRequest{AccountID: fields[0], Symbol: fields[1]}

	switch fields[2] {
	case "buy":
		req.Side = order.Buy
	case "sell":
		req.Side = order.Sell
	default:
		return Request{}, errs.New(errs.ParseError, "line %d: bad side %q", line, fields[2])
	}

	switch fields[3] {
	case "market":
		req.Kind = order.Market
	case "limit":
		req.Kind = order.Limit
	default:
		return Request{}, errs.New(errs.ParseError, "line %d: bad kind %q", line, fields[3])
	}

	qty, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return Request{}, errs.New(errs.ParseError, "line %d: bad quantity %q", line, fields[4])
	}
	req.Quantity = qty

	switch {
	case req.Kind == order.Limit && len(fields) == 6:
		cents, err := ParsePrice(fields[5])
		if err != nil {
			return Request{}, errs.New(errs.ParseError, "line %d: bad limit price %q", line, fields[5])
		}
		req.LimitPrice = cents
	case req.Kind == order.Limit:
		return Request{}, errs.New(errs.ParseError, "line %d: limit order is missing a limit price", line)
	case len(fields) == 6:
		return Request{}, errs.New(errs.ParseError, "line %d: market order must not carry a limit price", line)
	}

	return Request{Line: line, Order: req}, nil
}

// ParsePrice converts a decimal currency string to cents exactly.
// More than two fraction digits is an error, not a rounding.
func ParsePrice(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errs.New(errs.ParseError, "bad price %q", s)
	}
	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, errs.New(errs.ParseError, "price %q has sub-cent precision", s)
	}
	return cents.IntPart(), nil
}

// Dollars renders cents as a fixed two-decimal currency string.
func Dollars(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
