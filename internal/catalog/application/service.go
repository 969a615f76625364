package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmehra2102/qr-order-flow/internal/catalog/domain"
	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Repository interface {
	Menu(ctx context.Context, shopID string, state domain.ItemState) ([]domain.MenuItem, error)
	Upsert(ctx context.Context, item domain.MenuItem) error
	Update(ctx context.Context, item domain.MenuItem) (domain.MenuItem, error)
	Deactivate(ctx context.Context, shopID, itemID string) (domain.MenuItem, error)
}

// ItemInput is the editable part of a menu item.
type ItemInput struct {
	Name  string           `json:"name"`
	Price decimal.Decimal  `json:"price"`
	State domain.ItemState `json:"state,omitempty"`
}

// Service reads the public menu and lets a shop, or an admin, manage it.
type Service struct {
	log  *slog.Logger
	repo Repository
}

func NewService(log *slog.Logger, repo Repository) *Service {
	return &Service{log: log, repo: repo}
}

// Menu is public. An empty state lists every item.
func (s *Service) Menu(ctx context.Context, shopID string, state domain.ItemState) ([]domain.MenuItem, error) {
	if state != "" && !state.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", domain.ErrInvalidItem, state)
	}
	return s.repo.Menu(ctx, shopID, state)
}

func (s *Service) AddItem(ctx context.Context, actor identity.Actor, shopID string, in ItemInput) (domain.MenuItem, error) {
	if err := authorize(actor, shopID); err != nil {
		return domain.MenuItem{}, err
	}
	item, err := domain.NewMenuItem(uuid.NewString(), shopID, in.Name, in.Price, in.State)
	if err != nil {
		return domain.MenuItem{}, err
	}
	if err := s.repo.Upsert(ctx, item); err != nil {
		return domain.MenuItem{}, err
	}
	s.log.Info("menu item added", "shop_id", shopID, "item_id", item.ID, "actor", actor.ID)
	return item, nil
}

func (s *Service) UpdateItem(ctx context.Context, actor identity.Actor, shopID, itemID string, in ItemInput) (domain.MenuItem, error) {
	if err := authorize(actor, shopID); err != nil {
		return domain.MenuItem{}, err
	}
	item, err := domain.NewMenuItem(itemID, shopID, in.Name, in.Price, in.State)
	if err != nil {
		return domain.MenuItem{}, err
	}
	updated, err := s.repo.Update(ctx, item)
	if err != nil {
		return domain.MenuItem{}, err
	}
	s.log.Info("menu item updated", "shop_id", shopID, "item_id", itemID, "actor", actor.ID)
	return updated, nil
}

// DeactivateItem removes an item from the orderable menu. Items are never
// deleted so past order lines keep pointing at a known id.
func (s *Service) DeactivateItem(ctx context.Context, actor identity.Actor, shopID, itemID string) (domain.MenuItem, error) {
	if err := authorize(actor, shopID); err != nil {
		return domain.MenuItem{}, err
	}
	item, err := s.repo.Deactivate(ctx, shopID, itemID)
	if err != nil {
		return domain.MenuItem{}, err
	}
	s.log.Info("menu item deactivated", "shop_id", shopID, "item_id", itemID, "actor", actor.ID)
	return item, nil
}

func authorize(actor identity.Actor, shopID string) error {
	if err := actor.Require(identity.RoleShop, identity.RoleAdmin); err != nil {
		return err
	}
	if !actor.CanActForShop(shopID) {
		return identity.ErrForbidden
	}
	return nil
}
