// Package cart is the per-session shopping cart: an ordered mapping from item id to
// positive quantity, plus the stores that keep it between requests.
package cart

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MaxQuantity is the most units of one item a cart line may hold.
const MaxQuantity = 99

var (
	ErrNotInCart       = errors.New("item not in cart")
	ErrInvalidQuantity = fmt.Errorf("quantity must be between 0 and %d", MaxQuantity)
	ErrQuantityLimit   = fmt.Errorf("at most %d units of an item per order", MaxQuantity)
)

type Line struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// Cart keeps lines in the order items were first added. The zero value is an empty cart.
type Cart struct {
	lines []Line
}

func New(lines ...Line) *Cart {
	c := &Cart{}
	for _, l := range lines {
		c.addQty(l.ItemID, l.Quantity)
	}
	return c
}

func (c *Cart) index(itemID int64) int {
	for i, l := range c.lines {
		if l.ItemID == itemID {
			return i
		}
	}
	return -1
}

// addQty merges qty into the line for itemID, clamped to MaxQuantity.
func (c *Cart) addQty(itemID int64, qty int) {
	if qty <= 0 {
		return
	}
	if i := c.index(itemID); i >= 0 {
		c.lines[i].Quantity = min(c.lines[i].Quantity+min(qty, MaxQuantity), MaxQuantity)
		return
	}
	c.lines = append(c.lines, Line{ItemID: itemID, Quantity: min(qty, MaxQuantity)})
}

// Add increments the quantity of itemID by one, appending it when new.
// A line already at MaxQuantity is left unchanged and ErrQuantityLimit returned.
func (c *Cart) Add(itemID int64) error {
	if i := c.index(itemID); i >= 0 && c.lines[i].Quantity >= MaxQuantity {
		return ErrQuantityLimit
	}
	c.addQty(itemID, 1)
	return nil
}

// SetQuantity overwrites the quantity of an item already in the cart. Zero removes it.
func (c *Cart) SetQuantity(itemID int64, qty int) error {
	if qty < 0 || qty > MaxQuantity {
		return ErrInvalidQuantity
	}
	i := c.index(itemID)
	if i < 0 {
		return ErrNotInCart
	}
	if qty == 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return nil
	}
	c.lines[i].Quantity = qty
	return nil
}

func (c *Cart) Remove(itemID int64) {
	if i := c.index(itemID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

func (c *Cart) Snapshot() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Clear() { c.lines = nil }

// Count is the sum of quantities.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) Empty() bool { return len(c.lines) == 0 }

func (c *Cart) MarshalJSON() ([]byte, error) {
	if c.lines == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.lines)
}

// UnmarshalJSON drops non-positive quantities, merges repeated item ids and clamps to MaxQuantity,
// so a stored value that was tampered with still yields a valid cart.
func (c *Cart) UnmarshalJSON(b []byte) error {
	var lines []Line
	if err := json.Unmarshal(b, &lines); err != nil {
		return err
	}
	*c = *New(lines...)
	return nil
}
