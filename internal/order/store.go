package order

import (
	"tradesim/internal/errs"
)

// Store owns every submitted order and hands out ids.
type Store struct {
	next   int64
	orders map[int64]*Order
}

func NewStore() *Store {
	return &Store{next: 1, orders: make(map[int64]*Order)}
}

// NextID returns a fresh, strictly increasing order id. Ids are never
// reused, even after cancellation.
func (s *Store) NextID() int64 {
	id := s.next
	s.next++
	return id
}

// SeedNextID advances the id sequence past persisted orders so a
// restored run keeps ids monotonic. A smaller value is ignored.
func (s *Store) SeedNextID(next int64) {
	if next > s.next {
		s.next = next
	}
}

// Submit takes exclusive ownership of the order and marks it Pending.
func (s *Store) Submit(o *Order) error {
	if o == nil {
		return errs.New(errs.InvalidArgument, "submit: order is nil")
	}
	if _, ok := s.orders[o.ID]; ok {
		return errs.New(errs.Duplicate, "order id %d already submitted", o.ID)
	}
	o.Status = Pending
	s.orders[o.ID] = o
	return nil
}

// Get returns the order for id.
func (s *Store) Get(id int64) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, errs.New(errs.NotFound, "order not found: %d", id)
	}
	return o, nil
}

// Status returns the current status for id.
func (s *Store) Status(id int64) (Status, error) {
	o, ok := s.orders[id]
	if !ok {
		return 0, errs.New(errs.NotFound, "order not found: %d", id)
	}
	return o.Status, nil
}

// Cancel transitions the order to Cancelled. It reports whether the
// order may still have a resting remainder so the caller can evict it
// from the book; the book entry is derived state and is not tracked
// here.
func (s *Store) Cancel(id int64) (restingPossible bool, err error) {
	o, ok := s.orders[id]
	if !ok {
		return false, errs.New(errs.NotFound, "order not found: %d", id)
	}
	if err := o.transition(Cancelled); err != nil {
		return false, err
	}
	return o.Kind == Limit && o.Remaining() > 0, nil
}

// SetStatus advances an order through the state machine.
func (s *Store) SetStatus(id int64, next Status) error {
	o, ok := s.orders[id]
	if !ok {
		return errs.New(errs.NotFound, "order not found: %d", id)
	}
	return o.transition(next)
}

// Len returns the number of owned orders.
func (s *Store) Len() int {
	return len(s.orders)
}
