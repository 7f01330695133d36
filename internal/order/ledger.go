// Package order is the order ledger: persisted orders, their line items,
// number allocation and the status workflows.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/storefront/internal/pricing"
)

type Ledger struct {
	store Store
	loc   *time.Location
}

// NewLedger uses loc to decide which calendar day an order number belongs to.
func NewLedger(store Store, loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{store: store, loc: loc}
}

func (l *Ledger) WithTx(ctx context.Context, fn func(Tx) error) error {
	return l.store.WithTx(ctx, fn)
}

// CreateOrder allocates a number and inserts a pending order with one item per
// priced line. Totals stay zero until CalculateTotals.
func (l *Ledger) CreateOrder(ctx context.Context, tx Tx, c Customer, lines []pricing.Line, now time.Time) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrNoItems
	}
	number, err := NextNumber(ctx, tx, now.In(l.loc))
	if err != nil {
		return nil, err
	}
	o := &Order{
		OrderNumber:         number,
		UserID:              c.UserID,
		CustomerName:        c.Name,
		CustomerEmail:       c.Email,
		CustomerPhone:       c.Phone,
		DeliveryAddress:     c.Address,
		SpecialInstructions: c.Instructions,
		Status:              StatusPending,
		PaymentStatus:       PaymentPending,
		OriginalTotal:       decimal.Zero,
		DiscountAmount:      decimal.Zero,
		FinalTotal:          decimal.Zero,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := tx.InsertOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("insert order %s: %w", number, err)
	}

	items := make([]OrderItem, 0, len(lines))
	for _, ln := range lines {
		items = append(items, OrderItem{
			ItemID:        ln.ItemID,
			ItemName:      ln.Name,
			Quantity:      ln.Quantity,
			OriginalPrice: ln.UnitOriginal,
			FinalPrice:    ln.UnitFinal,
			OfferID:       ln.OfferID,
		})
	}
	if err := tx.InsertItems(ctx, o.ID, items); err != nil {
		return nil, fmt.Errorf("insert items for %s: %w", number, err)
	}
	o.Items = items
	return o, nil
}

// CalculateTotals recomputes the totals from the persisted items and stores them on o.
func (l *Ledger) CalculateTotals(ctx context.Context, tx Tx, o *Order) error {
	items, err := tx.Items(ctx, o.ID)
	if err != nil {
		return err
	}
	lines := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.Line{
			ItemID:       it.ItemID,
			Quantity:     it.Quantity,
			UnitOriginal: it.OriginalPrice,
			UnitFinal:    it.FinalPrice,
		})
	}
	t := pricing.Summarize(lines)
	o.OriginalTotal = t.Original
	o.DiscountAmount = t.Discount
	o.FinalTotal = t.Final
	return tx.SaveTotals(ctx, o)
}

// Totals returns the order totals in the calculator's shape.
func (o *Order) Totals() pricing.Totals {
	return pricing.Totals{Original: o.OriginalTotal, Final: o.FinalTotal, Discount: o.DiscountAmount}
}

func (l *Ledger) UpdateStatus(ctx context.Context, number string, to Status, now time.Time) (*Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	var out *Order
	err := l.store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.LockByNumber(ctx, number)
		if err != nil {
			return err
		}
		if !o.Status.CanTransition(to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
		}
		if err := tx.SetStatus(ctx, o.ID, to, now); err != nil {
			return err
		}
		o.Status, o.UpdatedAt = to, now
		out = o
		return nil
	})
	return out, err
}

func (l *Ledger) UpdatePaymentStatus(ctx context.Context, number string, to PaymentStatus, now time.Time) (*Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrInvalidTransition, to)
	}
	var out *Order
	err := l.store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.LockByNumber(ctx, number)
		if err != nil {
			return err
		}
		if !o.PaymentStatus.CanTransition(to) {
			return fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, o.PaymentStatus, to)
		}
		if err := tx.SetPaymentStatus(ctx, o.ID, to, now); err != nil {
			return err
		}
		o.PaymentStatus, o.UpdatedAt = to, now
		out = o
		return nil
	})
	return out, err
}

func (l *Ledger) Get(ctx context.Context, id int64) (*Order, error) { return l.store.Get(ctx, id) }

func (l *Ledger) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return l.store.GetByNumber(ctx, number)
}

func (l *Ledger) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	return l.store.ListByUser(ctx, userID, limit, offset)
}
