package catalog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Main Courses":     "main-courses",
		"  Café & Crème  ": "cafe-creme",
		"Pasta---Fresca!!": "pasta-fresca",
		"Entrées 2024":     "entrees-2024",
		"!!!":              "category",
		"":                 "category",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestUniqueSlug_Suffixes(t *testing.T) {
	used := map[string]bool{"drinks": true, "drinks-2": true}
	got, err := UniqueSlug("drinks", func(s string) (bool, error) { return used[s], nil })
	require.NoError(t, err)
	assert.Equal(t, "drinks-3", got)
}

func TestMemStore_CategorySlugCollision(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()

	a := &Category{Name: "Désserts"}
	require.NoError(t, m.CreateCategory(ctx, a))
	b := &Category{Name: "Desserts"}
	require.NoError(t, m.CreateCategory(ctx, b))

	assert.Equal(t, "desserts", a.Slug)
	assert.Equal(t, "desserts-2", b.Slug)

	err := m.CreateCategory(ctx, &Category{Name: "Desserts"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	got, err := m.GetCategoryBySlug(ctx, "desserts-2")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func TestMemStore_ExplicitSlugMustBeUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()

	require.NoError(t, m.CreateCategory(ctx, &Category{Name: "Drinks", Slug: "drinks"}))
	err := m.CreateCategory(ctx, &Category{Name: "Cold drinks", Slug: "drinks"})
	assert.ErrorIs(t, err, ErrDuplicateSlug)

	c := &Category{Name: "Drinks!"}
	require.NoError(t, m.CreateCategory(ctx, c))
	assert.Equal(t, "drinks-2", c.Slug)

	cats, err := m.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 2)
}

func TestMemStore_ItemsAndOffers(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()

	cat := &Category{Name: "Pizza"}
	require.NoError(t, m.CreateCategory(ctx, cat))
	other := &Category{Name: "Drinks"}
	require.NoError(t, m.CreateCategory(ctx, other))

	margherita := &Item{Name: "Margherita", Price: decimal.RequireFromString("9.50"), CategoryID: cat.ID}
	require.NoError(t, m.CreateItem(ctx, margherita))
	cola := &Item{Name: "Cola", Price: decimal.RequireFromString("2.00"), CategoryID: other.ID}
	require.NoError(t, m.CreateItem(ctx, cola))

	err := m.CreateItem(ctx, &Item{Name: "Ghost", Price: decimal.NewFromInt(1), CategoryID: 999})
	assert.ErrorIs(t, err, ErrCategoryNotFound)
	err = m.CreateItem(ctx, &Item{Name: "Bad", Price: decimal.NewFromInt(-1), CategoryID: cat.ID})
	assert.ErrorIs(t, err, ErrInvalidItem)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	byCategory := &Offer{Title: "Pizza week", DiscountPercent: decimal.NewFromInt(10),
		CategoryIDs: []int64{cat.ID}, StartDate: now, EndDate: now.Add(time.Hour), IsActive: true}
	require.NoError(t, m.CreateOffer(ctx, byCategory))
	byItem := &Offer{Title: "Cola deal", DiscountPercent: decimal.NewFromInt(50),
		ItemIDs: []int64{cola.ID}, StartDate: now, EndDate: now, IsActive: true}
	require.NoError(t, m.CreateOffer(ctx, byItem))

	offers, err := m.OffersForItem(ctx, margherita)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, byCategory.ID, offers[0].ID)

	items, err := m.ListItems(ctx, Query{CategoryID: cat.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Margherita", items[0].Name)

	items, err = m.ListItems(ctx, Query{Q: "col"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, m.UpdateItemPrice(ctx, cola.ID, decimal.RequireFromString("2.50")))
	got, err := m.GetItem(ctx, cola.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("2.5")))

	ok, err := m.DeleteItem(ctx, cola.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = m.GetItem(ctx, cola.ID)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestOffer_ValidateAndWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	o := Offer{Title: "x", DiscountPercent: decimal.NewFromInt(100), StartDate: start, EndDate: end, IsActive: true}
	require.NoError(t, o.Validate())

	assert.True(t, o.ActiveAt(start))
	assert.True(t, o.ActiveAt(end))
	assert.False(t, o.ActiveAt(start.Add(-time.Nanosecond)))
	assert.False(t, o.ActiveAt(end.Add(time.Nanosecond)))

	o.IsActive = false
	assert.False(t, o.ActiveAt(start))

	bad := o
	bad.DiscountPercent = decimal.RequireFromString("100.01")
	assert.ErrorIs(t, bad.Validate(), ErrInvalidOffer)
	bad = o
	bad.EndDate = start.Add(-time.Second)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidOffer)
}

const seedYAML = `
categories: [Pizza, Drinks]
items:
  - name: Margherita
    price: "9.50"
    category: Pizza
  - name: Cola
    price: "2.00"
    category: Drinks
offers:
  - title: Happy hour
    discount_percent: "20"
    items: [Cola]
    categories: [Pizza]
    start: 2026-01-01T00:00:00Z
    end: 2026-12-31T23:59:59Z
`

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s, err := LoadSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)

	m := NewMemStore()
	require.NoError(t, ApplySeed(ctx, m, s))

	offers, err := m.ListOffers(ctx)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.True(t, offers[0].IsActive)
	assert.Len(t, offers[0].ItemIDs, 1)
	assert.Len(t, offers[0].CategoryIDs, 1)

	cats, err := m.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, "drinks", cats[0].Slug)
}

func TestSeed_UnknownCategory(t *testing.T) {
	s := &Seed{Items: []SeedItem{{Name: "x", Price: "1", Category: "nope"}}}
	err := ApplySeed(context.Background(), NewMemStore(), s)
	assert.ErrorIs(t, err, ErrCategoryNotFound)
}
