package order

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemStore is an in-memory Store. Transactions are optimistic: writes are
// buffered and validated at commit, so two transactions can race the way
// they would on Postgres and the loser gets ErrOrderNumberTaken or ErrConflict.
type MemStore struct {
	mu      sync.RWMutex
	orders  map[int64]*memOrder
	numbers map[string]int64

	orderSeq atomic.Int64
	itemSeq  atomic.Int64
}

type memOrder struct {
	order   Order
	items   []OrderItem
	version int
}

func (m *memOrder) clone() *memOrder {
	c := *m
	c.items = append([]OrderItem(nil), m.items...)
	return &c
}

func (m *memOrder) snapshot() *Order {
	o := m.order
	o.Items = append([]OrderItem{}, m.items...)
	return &o
}

func NewMemStore() *MemStore {
	return &MemStore{orders: map[int64]*memOrder{}, numbers: map[string]int64{}}
}

var _ Store = (*MemStore)(nil)

func (s *MemStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{store: s, pending: map[int64]*memOrder{}, read: map[int64]int{}}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

func (s *MemStore) Get(_ context.Context, id int64) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mo, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return mo.snapshot(), nil
}

func (s *MemStore) GetByNumber(_ context.Context, number string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.numbers[number]
	if !ok {
		return nil, ErrNotFound
	}
	return s.orders[id].snapshot(), nil
}

func (s *MemStore) ListByUser(_ context.Context, userID string, limit, offset int) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit, offset = normalizeLimit(limit, offset)
	all := []Order{}
	for _, mo := range s.orders {
		if mo.order.UserID != nil && *mo.order.UserID == userID {
			all = append(all, mo.order)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if offset >= len(all) {
		return []Order{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

type memTx struct {
	store   *MemStore
	pending map[int64]*memOrder
	// version of each committed order this tx copied before modifying it
	read map[int64]int
}

// working returns the tx-local copy of an order, copying it from committed state on first use.
func (t *memTx) working(id int64) (*memOrder, error) {
	if mo, ok := t.pending[id]; ok {
		return mo, nil
	}
	t.store.mu.RLock()
	committed, ok := t.store.orders[id]
	var mo *memOrder
	if ok {
		mo = committed.clone()
	}
	t.store.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	t.read[id] = mo.version
	t.pending[id] = mo
	return mo, nil
}

func (t *memTx) LastNumber(_ context.Context, prefix string) (string, error) {
	last := ""
	consider := func(n string) {
		if strings.HasPrefix(n, prefix) && n > last {
			last = n
		}
	}
	t.store.mu.RLock()
	for n := range t.store.numbers {
		consider(n)
	}
	t.store.mu.RUnlock()
	for _, mo := range t.pending {
		consider(mo.order.OrderNumber)
	}
	return last, nil
}

func (t *memTx) numberTaken(number string) bool {
	t.store.mu.RLock()
	_, taken := t.store.numbers[number]
	t.store.mu.RUnlock()
	if taken {
		return true
	}
	for _, mo := range t.pending {
		if mo.order.OrderNumber == number {
			return true
		}
	}
	return false
}

func (t *memTx) InsertOrder(_ context.Context, o *Order) error {
	if t.numberTaken(o.OrderNumber) {
		return ErrOrderNumberTaken
	}
	o.ID = t.store.orderSeq.Add(1)
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	stored := *o
	stored.Items = nil
	t.pending[o.ID] = &memOrder{order: stored}
	return nil
}

func (t *memTx) InsertItems(_ context.Context, orderID int64, items []OrderItem) error {
	mo, err := t.working(orderID)
	if err != nil {
		return err
	}
	seen := map[int64]bool{}
	for _, it := range mo.items {
		seen[it.ItemID] = true
	}
	for i := range items {
		if seen[items[i].ItemID] {
			return ErrDuplicateItem
		}
		seen[items[i].ItemID] = true
		items[i].ID = t.store.itemSeq.Add(1)
		items[i].OrderID = orderID
	}
	mo.items = append(mo.items, items...)
	return nil
}

func (t *memTx) Items(_ context.Context, orderID int64) ([]OrderItem, error) {
	mo, err := t.working(orderID)
	if err != nil {
		return nil, err
	}
	return append([]OrderItem{}, mo.items...), nil
}

func (t *memTx) SaveTotals(_ context.Context, o *Order) error {
	mo, err := t.working(o.ID)
	if err != nil {
		return err
	}
	mo.order.OriginalTotal = o.OriginalTotal
	mo.order.DiscountAmount = o.DiscountAmount
	mo.order.FinalTotal = o.FinalTotal
	mo.order.UpdatedAt = o.UpdatedAt
	return nil
}

func (t *memTx) LockByNumber(_ context.Context, number string) (*Order, error) {
	t.store.mu.RLock()
	id, ok := t.store.numbers[number]
	t.store.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	mo, err := t.working(id)
	if err != nil {
		return nil, err
	}
	return mo.snapshot(), nil
}

func (t *memTx) SetStatus(_ context.Context, id int64, s Status, at time.Time) error {
	mo, err := t.working(id)
	if err != nil {
		return err
	}
	mo.order.Status = s
	mo.order.UpdatedAt = at
	return nil
}

func (t *memTx) SetPaymentStatus(_ context.Context, id int64, p PaymentStatus, at time.Time) error {
	mo, err := t.working(id)
	if err != nil {
		return err
	}
	mo.order.PaymentStatus = p
	mo.order.UpdatedAt = at
	return nil
}

func (t *memTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, mo := range t.pending {
		committed, exists := s.orders[id]
		switch {
		case !exists:
			if _, taken := s.numbers[mo.order.OrderNumber]; taken {
				return ErrOrderNumberTaken
			}
		case committed.version != t.read[id]:
			return ErrConflict
		}
	}
	for id, mo := range t.pending {
		mo.version++
		s.orders[id] = mo
		s.numbers[mo.order.OrderNumber] = id
	}
	return nil
}
