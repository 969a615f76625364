package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmehra2102/qr-order-flow/internal/cart/domain"
	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	"github.com/shopspring/decimal"
)

var ErrUnknownItem = errors.New("item is not on the shop's menu")

// View is a cart priced with the current menu.
type View struct {
	Cart  domain.Cart     `json:"cart"`
	Lines []PricedLine    `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

type PricedLine struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type Service struct {
	store   CartStore
	catalog Catalog
}

func NewService(store CartStore, catalog Catalog) *Service {
	return &Service{store: store, catalog: catalog}
}

// Load returns the raw cart of the actor's slip.
func (s *Service) Load(ctx context.Context, actor identity.Actor) (domain.Cart, error) {
	if err := actor.Require(identity.RoleCustomer); err != nil {
		return domain.Cart{}, err
	}
	return s.store.Get(ctx, actor.SlipID, actor.ShopID)
}

func (s *Service) View(ctx context.Context, actor identity.Actor) (View, error) {
	cart, err := s.Load(ctx, actor)
	if err != nil {
		return View{}, err
	}
	return s.price(ctx, cart)
}

func (s *Service) AddItem(ctx context.Context, actor identity.Actor, itemID string) (View, error) {
	cart, err := s.Load(ctx, actor)
	if err != nil {
		return View{}, err
	}
	items, err := s.catalog.Lookup(ctx, cart.ShopID, []string{itemID})
	if err != nil {
		return View{}, fmt.Errorf("lookup item: %w", err)
	}
	if _, ok := items[itemID]; !ok {
		return View{}, ErrUnknownItem
	}
	if err := cart.Add(itemID); err != nil {
		return View{}, err
	}
	return s.save(ctx, cart)
}

func (s *Service) RemoveItem(ctx context.Context, actor identity.Actor, itemID string) (View, error) {
	return s.mutate(ctx, actor, func(c *domain.Cart) { c.Remove(itemID) })
}

func (s *Service) ClearItem(ctx context.Context, actor identity.Actor, itemID string) (View, error) {
	return s.mutate(ctx, actor, func(c *domain.Cart) { c.ClearItem(itemID) })
}

func (s *Service) Clear(ctx context.Context, actor identity.Actor) error {
	if err := actor.Require(identity.RoleCustomer); err != nil {
		return err
	}
	return s.store.Delete(ctx, actor.SlipID)
}

func (s *Service) mutate(ctx context.Context, actor identity.Actor, fn func(*domain.Cart)) (View, error) {
	cart, err := s.Load(ctx, actor)
	if err != nil {
		return View{}, err
	}
	fn(&cart)
	return s.save(ctx, cart)
}

func (s *Service) save(ctx context.Context, cart domain.Cart) (View, error) {
	if err := s.store.Save(ctx, cart); err != nil {
		return View{}, err
	}
	return s.price(ctx, cart)
}

func (s *Service) price(ctx context.Context, cart domain.Cart) (View, error) {
	view := View{Cart: cart, Lines: []PricedLine{}, Total: decimal.Zero}
	if cart.IsEmpty() {
		return view, nil
	}

	lines := cart.Items()
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ItemID)
	}
	items, err := s.catalog.Lookup(ctx, cart.ShopID, ids)
	if err != nil {
		return View{}, fmt.Errorf("price cart: %w", err)
	}

	// Items dropped from the menu since they were added stay in the cart but
	// are not priced; checkout rejects them.
	total, err := cart.Total(func(id string) (decimal.Decimal, bool) {
		it, ok := items[id]
		if !ok {
			return decimal.Zero, true
		}
		return it.Price, true
	})
	if err != nil {
		return View{}, err
	}
	for _, l := range lines {
		it := items[l.ItemID]
		view.Lines = append(view.Lines, PricedLine{
			ItemID:    l.ItemID,
			Name:      it.Name,
			Quantity:  l.Quantity,
			UnitPrice: it.Price,
		})
	}
	view.Total = total
	return view, nil
}
