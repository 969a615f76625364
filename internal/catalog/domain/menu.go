package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrShopNotFound = errors.New("shop has no menu")
	ErrItemNotFound = errors.New("menu item not found")
	ErrInvalidItem  = errors.New("invalid menu item")
)

type ItemState string

const (
	ItemActive   ItemState = "active"
	ItemInactive ItemState = "inactive"
)

func (s ItemState) Valid() bool {
	return s == ItemActive || s == ItemInactive
}

type MenuItem struct {
	ID     string          `json:"id"`
	ShopID string          `json:"shopId"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	State  ItemState       `json:"state"`
}

// NewMenuItem validates and normalises an item. An empty state means active.
func NewMenuItem(id, shopID, name string, price decimal.Decimal, state ItemState) (MenuItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return MenuItem{}, fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	if price.IsNegative() {
		return MenuItem{}, fmt.Errorf("%w: price must not be negative", ErrInvalidItem)
	}
	if state == "" {
		state = ItemActive
	}
	if !state.Valid() {
		return MenuItem{}, fmt.Errorf("%w: unknown state %q", ErrInvalidItem, state)
	}
	return MenuItem{ID: id, ShopID: shopID, Name: name, Price: price.Round(2), State: state}, nil
}

func (m MenuItem) Orderable() bool {
	return m.State == ItemActive
}
