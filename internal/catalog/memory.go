package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemStore is an in-memory Repository used for STORAGE_DRIVER=memory and tests.
type MemStore struct {
	mu         sync.RWMutex
	categories map[int64]Category
	items      map[int64]Item
	offers     map[int64]Offer
	nextID     int64
	now        func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		categories: map[int64]Category{},
		items:      map[int64]Item{},
		offers:     map[int64]Offer{},
		now:        time.Now,
	}
}

var _ Repository = (*MemStore)(nil)

func (m *MemStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemStore) GetItem(_ context.Context, id int64) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	return &it, nil
}

func (m *MemStore) OffersForItem(_ context.Context, it *Item) ([]Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Offer{}
	for _, o := range m.offers {
		if o.AppliesTo(*it) {
			out = append(out, cloneOffer(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) ListItems(_ context.Context, q Query) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit, offset := normalizeLimit(q.Limit, q.Offset)
	search := strings.ToLower(strings.TrimSpace(q.Q))

	all := make([]Item, 0, len(m.items))
	for _, it := range m.items {
		if q.CategoryID != 0 && it.CategoryID != q.CategoryID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(it.Name), search) &&
			!strings.Contains(strings.ToLower(it.Description), search) {
			continue
		}
		all = append(all, it)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if offset >= len(all) {
		return []Item{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *MemStore) ListCategories(context.Context) ([]Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemStore) GetCategoryBySlug(_ context.Context, slug string) (*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.categories {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, ErrCategoryNotFound
}

func (m *MemStore) ListOffers(context.Context) ([]Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Offer, 0, len(m.offers))
	for _, o := range m.offers {
		out = append(out, cloneOffer(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) CreateCategory(_ context.Context, c *Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slugTaken := func(s string) (bool, error) {
		for _, existing := range m.categories {
			if existing.Slug == s {
				return true, nil
			}
		}
		return false, nil
	}
	for _, existing := range m.categories {
		if existing.Name == c.Name {
			return ErrDuplicateName
		}
	}
	if c.Slug != "" {
		if taken, _ := slugTaken(c.Slug); taken {
			return ErrDuplicateSlug
		}
	} else {
		slug, err := UniqueSlug(Slugify(c.Name), slugTaken)
		if err != nil {
			return err
		}
		c.Slug = slug
	}
	c.ID = m.id()
	m.categories[c.ID] = *c
	return nil
}

func (m *MemStore) CreateItem(_ context.Context, it *Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[it.CategoryID]; !ok {
		return ErrCategoryNotFound
	}
	it.ID = m.id()
	it.CreatedAt = m.now()
	it.UpdatedAt = it.CreatedAt
	m.items[it.ID] = *it
	return nil
}

func (m *MemStore) UpdateItemPrice(_ context.Context, id int64, price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidItem
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return ErrItemNotFound
	}
	it.Price = price
	it.UpdatedAt = m.now()
	m.items[id] = it
	return nil
}

func (m *MemStore) DeleteItem(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return false, nil
	}
	delete(m.items, id)
	return true, nil
}

func (m *MemStore) CreateOffer(_ context.Context, o *Offer) error {
	if err := o.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = m.id()
	m.offers[o.ID] = cloneOffer(*o)
	return nil
}

func cloneOffer(o Offer) Offer {
	o.ItemIDs = append([]int64(nil), o.ItemIDs...)
	o.CategoryIDs = append([]int64(nil), o.CategoryIDs...)
	return o
}
