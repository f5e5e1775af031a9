// Package cart holds the session-owned shopping cart: a mapping from
// product ID to requested quantity, with stock-checked mutations and
// self-healing resolution against the live catalog.
package cart

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/tarla/storefront/internal/models"
	"github.com/tarla/storefront/internal/pricing"
)

const MaxQuantity = 99

var (
	ErrStockInsufficient = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrNotInCart         = errors.New("product not in cart")
)

// Catalog returns the available products among ids. Missing or
// unavailable products are simply absent from the result.
type Catalog interface {
	AvailableProducts(ctx context.Context, ids []int64) (map[int64]models.Product, error)
}

type Cart struct {
	Items map[int64]int `json:"items"`

	// Token names one checkout of the current contents. Every change to
	// the cart discards it.
	Token string `json:"checkout_token,omitempty"`
}

func New() *Cart {
	return &Cart{Items: make(map[int64]int)}
}

func (c *Cart) ensure() {
	if c.Items == nil {
		c.Items = make(map[int64]int)
	}
}

func (c *Cart) Quantity(productID int64) int {
	return c.Items[productID]
}

func (c *Cart) Contains(productID int64) bool {
	_, ok := c.Items[productID]
	return ok
}

func (c *Cart) Len() int {
	return len(c.Items)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Count is the total number of units across all entries.
func (c *Cart) Count() int {
	n := 0
	for _, q := range c.Items {
		n += q
	}
	return n
}

func (c *Cart) ProductIDs() []int64 {
	return slices.Sorted(maps.Keys(c.Items))
}

// Add increments the quantity of p by delta. The cart is left unchanged
// when the result would exceed stock or the per-line maximum.
func (c *Cart) Add(p models.Product, delta int) error {
	if delta < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, delta)
	}
	c.ensure()

	next := c.Items[p.ID] + delta
	if next > p.StockQuantity {
		return ErrStockInsufficient
	}
	if next > MaxQuantity {
		return fmt.Errorf("%w: exceeds %d", ErrInvalidQuantity, MaxQuantity)
	}

	c.Items[p.ID] = next
	c.Token = ""
	return nil
}

// Decrease lowers the quantity of productID by one, never below one.
func (c *Cart) Decrease(productID int64) error {
	current, ok := c.Items[productID]
	if !ok {
		return ErrNotInCart
	}
	if current <= 1 {
		return fmt.Errorf("%w: minimum is 1", ErrInvalidQuantity)
	}
	c.Items[productID] = current - 1
	c.Token = ""
	return nil
}

// SetQuantity replaces the quantity of an existing entry. A quantity above
// stock is clamped down to stock and reported through clamped.
func (c *Cart) SetQuantity(p models.Product, qty int) (applied int, clamped bool, err error) {
	if !c.Contains(p.ID) {
		return 0, false, ErrNotInCart
	}
	if qty < 1 || qty > MaxQuantity {
		return c.Items[p.ID], false, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidQuantity, MaxQuantity)
	}
	if p.StockQuantity < 1 {
		return c.Items[p.ID], false, ErrStockInsufficient
	}

	if qty > p.StockQuantity {
		qty = p.StockQuantity
		clamped = true
	}
	if qty != c.Items[p.ID] {
		c.Items[p.ID] = qty
		c.Token = ""
	}
	return qty, clamped, nil
}

func (c *Cart) Remove(productID int64) bool {
	if !c.Contains(productID) {
		return false
	}
	delete(c.Items, productID)
	c.Token = ""
	return true
}

func (c *Cart) Clear() {
	c.Items = make(map[int64]int)
	c.Token = ""
}

// Warning reports a line whose quantity was lowered, or which was dropped,
// because of the product's current stock.
type Warning struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

type Snapshot struct {
	Lines    []pricing.Line `json:"lines"`
	Warnings []Warning      `json:"warnings,omitempty"`
	// Changed is set when resolution rewrote the cart and the owning
	// session needs saving.
	Changed bool `json:"-"`
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

func (s Snapshot) ItemCount() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

// Resolve matches entries to live products. Entries for
// deleted or unavailable products are removed from the cart, and
// quantities are clamped to [1, min(MaxQuantity, stock)] and written back.
// A product with no stock left cannot satisfy the lower bound and is
// dropped with a warning.
func (c *Cart) Resolve(ctx context.Context, catalog Catalog) (Snapshot, error) {
	var snap Snapshot
	if c.IsEmpty() {
		return snap, nil
	}

	ids := c.ProductIDs()
	products, err := catalog.AvailableProducts(ctx, ids)
	if err != nil {
		return snap, fmt.Errorf("resolve cart products: %w", err)
	}

	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			delete(c.Items, id)
			snap.Changed = true
			continue
		}

		qty := min(max(c.Items[id], 1), MaxQuantity)
		if qty > p.StockQuantity {
			qty = p.StockQuantity
			snap.Warnings = append(snap.Warnings, Warning{ProductID: id, ProductName: p.Name, Quantity: qty})
		}
		if qty < 1 {
			delete(c.Items, id)
			snap.Changed = true
			continue
		}

		if qty != c.Items[id] {
			c.Items[id] = qty
			snap.Changed = true
		}
		snap.Lines = append(snap.Lines, pricing.Line{Product: p, Quantity: qty})
	}

	if snap.Changed {
		c.Token = ""
	}
	return snap, nil
}
