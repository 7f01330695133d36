// Package pricing turns cart lines into a priced quote.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/storefront/internal/cart"
	"github.com/MikeMC777/storefront/internal/catalog"
	"github.com/MikeMC777/storefront/internal/money"
	"github.com/MikeMC777/storefront/internal/offer"
)

type Line struct {
	ItemID       int64           `json:"item_id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitOriginal decimal.Decimal `json:"unit_original"`
	UnitFinal    decimal.Decimal `json:"unit_final"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	OfferID      *int64          `json:"offer_id,omitempty"`
	OfferTitle   string          `json:"offer_title,omitempty"`
}

type Totals struct {
	Original decimal.Decimal `json:"original"`
	Final    decimal.Decimal `json:"final"`
	Discount decimal.Decimal `json:"discount"`
}

// Equal compares amounts, not representations.
func (t Totals) Equal(o Totals) bool {
	return t.Original.Equal(o.Original) && t.Final.Equal(o.Final) && t.Discount.Equal(o.Discount)
}

type Quote struct {
	Lines    []Line    `json:"lines"`
	Totals   Totals    `json:"totals"`
	Skipped  []int64   `json:"skipped,omitempty"`
	PricedAt time.Time `json:"priced_at"`
}

func (q Quote) Empty() bool { return len(q.Lines) == 0 }

func (q Quote) Count() int {
	n := 0
	for _, l := range q.Lines {
		n += l.Quantity
	}
	return n
}

// Summarize sums unit prices times quantities. It is the only place totals are derived.
func Summarize(lines []Line) Totals {
	t := Totals{Original: decimal.Zero, Final: decimal.Zero}
	for _, l := range lines {
		t.Original = t.Original.Add(money.Mul(l.UnitOriginal, l.Quantity))
		t.Final = t.Final.Add(money.Mul(l.UnitFinal, l.Quantity))
	}
	t.Original = money.Round(t.Original)
	t.Final = money.Round(t.Final)
	t.Discount = t.Original.Sub(t.Final)
	return t
}

type Resolver interface {
	ResolvePrice(ctx context.Context, it *catalog.Item, at time.Time) (offer.Resolution, error)
}

type Calculator struct {
	items  catalog.Reader
	offers Resolver
}

func NewCalculator(items catalog.Reader, offers Resolver) *Calculator {
	return &Calculator{items: items, offers: offers}
}

// PriceCart prices every line at the instant at. Items that no longer exist are
// skipped and listed in Quote.Skipped.
func (c *Calculator) PriceCart(ctx context.Context, lines []cart.Line, at time.Time) (Quote, error) {
	q := Quote{Lines: []Line{}, PricedAt: at}
	for _, cl := range lines {
		if cl.Quantity <= 0 {
			continue
		}
		it, err := c.items.GetItem(ctx, cl.ItemID)
		if errors.Is(err, catalog.ErrItemNotFound) {
			q.Skipped = append(q.Skipped, cl.ItemID)
			continue
		}
		if err != nil {
			return Quote{}, fmt.Errorf("item %d: %w", cl.ItemID, err)
		}
		res, err := c.offers.ResolvePrice(ctx, it, at)
		if err != nil {
			return Quote{}, err
		}
		l := Line{
			ItemID:       it.ID,
			Name:         it.Name,
			Quantity:     cl.Quantity,
			UnitOriginal: res.Base,
			UnitFinal:    res.Unit,
			Subtotal:     money.Mul(res.Unit, cl.Quantity),
		}
		if res.Offer != nil {
			id := res.Offer.ID
			l.OfferID = &id
			l.OfferTitle = res.Offer.Title
		}
		q.Lines = append(q.Lines, l)
	}
	q.Totals = Summarize(q.Lines)
	return q, nil
}
