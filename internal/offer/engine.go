// Package offer resolves the effective unit price of a catalog item at a point in time.
package offer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/storefront/internal/catalog"
	"github.com/MikeMC777/storefront/internal/money"
)

// Resolution is the price of one unit of an item. Offer is nil when no offer applied.
type Resolution struct {
	Base  decimal.Decimal
	Unit  decimal.Decimal
	Offer *catalog.Offer
}

// Best picks the offer with the highest discount among those linked to it and
// active at t. Ties go to the lowest offer ID.
func Best(it catalog.Item, offers []catalog.Offer, at time.Time) *catalog.Offer {
	var best *catalog.Offer
	for i := range offers {
		o := &offers[i]
		if !o.AppliesTo(it) || !o.ActiveAt(at) {
			continue
		}
		if best == nil {
			best = o
			continue
		}
		switch cmp := o.DiscountPercent.Cmp(best.DiscountPercent); {
		case cmp > 0, cmp == 0 && o.ID < best.ID:
			best = o
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// Active filters offers to the ones running at t.
func Active(offers []catalog.Offer, at time.Time) []catalog.Offer {
	out := make([]catalog.Offer, 0, len(offers))
	for _, o := range offers {
		if o.ActiveAt(at) {
			out = append(out, o)
		}
	}
	return out
}

// Apply computes the resolution for an item given an already chosen offer.
func Apply(it catalog.Item, o *catalog.Offer) Resolution {
	res := Resolution{Base: it.Price, Unit: it.Price, Offer: o}
	if o != nil {
		res.Unit = money.Discount(it.Price, o.DiscountPercent)
	}
	return res
}

type Engine struct {
	catalog catalog.Reader
}

func NewEngine(r catalog.Reader) *Engine { return &Engine{catalog: r} }

func (e *Engine) ResolvePrice(ctx context.Context, it *catalog.Item, at time.Time) (Resolution, error) {
	offers, err := e.catalog.OffersForItem(ctx, it)
	if err != nil {
		return Resolution{}, fmt.Errorf("offers for item %d: %w", it.ID, err)
	}
	return Apply(*it, Best(*it, offers, at)), nil
}
