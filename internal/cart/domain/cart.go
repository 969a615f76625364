package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidItem = errors.New("item id is required")

type Line struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// Cart is the working set of lines for one slip. A line with quantity zero is
// never kept.
type Cart struct {
	SlipID string          `json:"slipId"`
	ShopID string          `json:"shopId"`
	Lines  map[string]Line `json:"lines"`
}

func New(slipID, shopID string) Cart {
	return Cart{SlipID: slipID, ShopID: shopID, Lines: map[string]Line{}}
}

// PriceLookup returns the current unit price of an item.
type PriceLookup func(itemID string) (decimal.Decimal, bool)

func (c *Cart) Add(itemID string) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return ErrInvalidItem
	}
	if c.Lines == nil {
		c.Lines = map[string]Line{}
	}
	line := c.Lines[itemID]
	line.ItemID = itemID
	line.Quantity++
	c.Lines[itemID] = line
	return nil
}

// Remove decrements the line by one. Removing an absent item is a no-op.
func (c *Cart) Remove(itemID string) {
	line, ok := c.Lines[itemID]
	if !ok {
		return
	}
	line.Quantity--
	if line.Quantity <= 0 {
		delete(c.Lines, itemID)
		return
	}
	c.Lines[itemID] = line
}

func (c *Cart) ClearItem(itemID string) {
	delete(c.Lines, itemID)
}

func (c *Cart) Clear() {
	c.Lines = map[string]Line{}
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c Cart) Quantity(itemID string) int {
	return c.Lines[itemID].Quantity
}

// Items returns the lines ordered by item id.
func (c Cart) Items() []Line {
	items := make([]Line, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, l)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })
	return items
}

// Total prices the cart with live prices. It is a display figure only; orders
// snapshot their own prices.
func (c Cart) Total(prices PriceLookup) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, l := range c.Items() {
		price, ok := prices(l.ItemID)
		if !ok {
			return decimal.Zero, fmt.Errorf("no price for item %q", l.ItemID)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total, nil
}
