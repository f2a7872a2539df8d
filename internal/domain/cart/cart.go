// Package cart models a single-restaurant shopping cart.
package cart

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrRestaurantSwitch is returned by Add when the cart already holds
	// items from a different restaurant. Callers confirm with the user and
	// then call Replace.
	ErrRestaurantSwitch = errors.New("cart holds items from another restaurant")
	// ErrMixedRestaurants is returned by FromLines for lines spanning
	// several restaurants.
	ErrMixedRestaurants = errors.New("cart lines span multiple restaurants")
	// ErrNegativePrice is returned by FromLines for a negative unit price.
	ErrNegativePrice = errors.New("unit price must not be negative")
	// ErrPriceOutOfRange is returned by FromLines for a unit price with more
	// than MaxPriceScale decimal places or not below MaxPrice.
	ErrPriceOutOfRange = errors.New("unit price out of range")
	// ErrLineNotFound is returned when updating a line that is not in the cart.
	ErrLineNotFound = errors.New("cart line not found")
)

// MaxPriceScale is the number of decimal places a unit price may carry.
const MaxPriceScale = 4

// MaxPrice is the exclusive upper bound of a unit price.
var MaxPrice = decimal.New(1, 12)

// PriceInRange reports whether p fits MaxPriceScale and MaxPrice. The
// exponent is checked first so that no arithmetic touches an oversized
// scale.
func PriceInRange(p decimal.Decimal) bool {
	exp := p.Exponent()
	if exp > 12 || exp < -(MaxPriceScale+14) {
		return false
	}
	if exp < -MaxPriceScale && !p.Equal(p.Truncate(MaxPriceScale)) {
		return false
	}
	return p.LessThan(MaxPrice)
}

// InvalidQuantityError indicates a line with a quantity below one.
type InvalidQuantityError struct {
	ItemID   string
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1 for item %s, got %d", e.ItemID, e.Quantity)
}

// Variant is a priced option of a menu item, e.g. a size.
type Variant struct {
	Name  string
	Price decimal.Decimal
}

// MenuItem is the subset of a menu entry needed to put it in a cart.
type MenuItem struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	IsVeg    bool
	Category string
}

// Line is one cart entry. UnitPrice is the selected variant's price, or the
// item's base price when no variant was chosen.
type Line struct {
	ItemID       string          `json:"itemId"`
	Name         string          `json:"name"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Quantity     int             `json:"quantity"`
	IsVeg        bool            `json:"isVeg"`
	Category     string          `json:"category"`
	RestaurantID string          `json:"restaurantId"`
	Variant      string          `json:"variant,omitempty"`
}

// Total returns UnitPrice * Quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds lines for a single restaurant. A Cart is not safe for
// concurrent use; pricing code must work on the copy returned by Lines.
type Cart struct {
	lines []Line
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// FromLines builds a cart from an externally supplied snapshot, enforcing
// the cart invariants.
func FromLines(lines []Line) (*Cart, error) {
	c := &Cart{lines: make([]Line, 0, len(lines))}
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, &InvalidQuantityError{ItemID: l.ItemID, Quantity: l.Quantity}
		}
		if l.UnitPrice.IsNegative() {
			return nil, errors.Wrapf(ErrNegativePrice, "item %s", l.ItemID)
		}
		if !PriceInRange(l.UnitPrice) {
			return nil, errors.Wrapf(ErrPriceOutOfRange, "item %s", l.ItemID)
		}
		if len(c.lines) > 0 && c.lines[0].RestaurantID != l.RestaurantID {
			return nil, ErrMixedRestaurants
		}
		c.lines = append(c.lines, l)
	}
	return c, nil
}

// Add puts one unit of item into the cart, merging with an existing line
// for the same item and variant.
func (c *Cart) Add(item MenuItem, restaurantID string, variant *Variant) error {
	if len(c.lines) > 0 && c.lines[0].RestaurantID != restaurantID {
		return ErrRestaurantSwitch
	}

	variantName := ""
	if variant != nil {
		variantName = variant.Name
	}
	if i := c.index(item.ID, variantName); i >= 0 {
		c.lines[i].Quantity++
		return nil
	}

	c.lines = append(c.lines, newLine(item, restaurantID, variant))
	return nil
}

// Replace clears the cart and adds item, used after the user confirmed
// switching restaurants.
func (c *Cart) Replace(item MenuItem, restaurantID string, variant *Variant) {
	c.lines = []Line{newLine(item, restaurantID, variant)}
}

// Increment adds one unit to an existing line.
func (c *Cart) Increment(itemID, variant string) error {
	i := c.index(itemID, variant)
	if i < 0 {
		return ErrLineNotFound
	}
	c.lines[i].Quantity++
	return nil
}

// Decrement removes one unit from a line, dropping the line when its
// quantity reaches zero.
func (c *Cart) Decrement(itemID, variant string) error {
	i := c.index(itemID, variant)
	if i < 0 {
		return ErrLineNotFound
	}
	if c.lines[i].Quantity > 1 {
		c.lines[i].Quantity--
		return nil
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return nil
}

// Clear empties the cart, e.g. after an order is placed.
func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the cart lines.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Count returns the total quantity across all lines.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// RestaurantID returns the restaurant all lines belong to, or "" when the
// cart is empty.
func (c *Cart) RestaurantID() string {
	if len(c.lines) == 0 {
		return ""
	}
	return c.lines[0].RestaurantID
}

// Subtotal returns the sum of unit price times quantity over all lines.
func (c *Cart) Subtotal() decimal.Decimal {
	return Subtotal(c.lines)
}

// Subtotal returns the item total of lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

func (c *Cart) index(itemID, variant string) int {
	for i, l := range c.lines {
		if l.ItemID == itemID && l.Variant == variant {
			return i
		}
	}
	return -1
}

func newLine(item MenuItem, restaurantID string, variant *Variant) Line {
	l := Line{
		ItemID:       item.ID,
		Name:         item.Name,
		UnitPrice:    item.Price,
		Quantity:     1,
		IsVeg:        item.IsVeg,
		Category:     item.Category,
		RestaurantID: restaurantID,
	}
	if variant != nil {
		l.UnitPrice = variant.Price
		l.Variant = variant.Name
	}
	return l
}
