// Package checkout turns a slip's cart into an order.
package checkout

import (
	"context"
	"errors"
	"log/slog"

	cart "github.com/dmehra2102/qr-order-flow/internal/cart/domain"
	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	order "github.com/dmehra2102/qr-order-flow/internal/order/domain"
	"github.com/dmehra2102/qr-order-flow/pkg/idempotency"
)

var ErrCheckoutInFlight = errors.New("checkout already in progress for this slip")

type Carts interface {
	Load(ctx context.Context, actor identity.Actor) (cart.Cart, error)
	Clear(ctx context.Context, actor identity.Actor) error
}

type Orders interface {
	CreateOrder(ctx context.Context, actor identity.Actor, shopID string, c cart.Cart) (order.Order, error)
}

type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

type Service struct {
	log    *slog.Logger
	carts  Carts
	orders Orders
	lock   Locker
}

func NewService(log *slog.Logger, carts Carts, orders Orders, lock Locker) *Service {
	return &Service{log: log, carts: carts, orders: orders, lock: lock}
}

// Checkout places an order for the actor's cart. At most one checkout per slip
// runs at a time. The cart is cleared only after the order is stored.
func (s *Service) Checkout(ctx context.Context, actor identity.Actor) (order.Order, error) {
	if err := actor.Require(identity.RoleCustomer); err != nil {
		return order.Order{}, err
	}

	release, err := s.lock.Acquire(ctx, actor.SlipID)
	if errors.Is(err, idempotency.ErrHeld) {
		return order.Order{}, ErrCheckoutInFlight
	}
	if err != nil {
		return order.Order{}, err
	}
	defer release()

	c, err := s.carts.Load(ctx, actor)
	if err != nil {
		return order.Order{}, err
	}
	o, err := s.orders.CreateOrder(ctx, actor, actor.ShopID, c)
	if err != nil {
		return order.Order{}, err
	}

	if err := s.carts.Clear(ctx, actor); err != nil {
		// The order exists; a stale cart is only cosmetic.
		s.log.Warn("clear cart after checkout failed", "order_id", o.ID, "slip_id", actor.SlipID, "err", err)
	}
	s.log.Info("order placed", "order_id", o.ID, "shop_id", o.ShopID, "total", o.TotalAmount.String())
	return o, nil
}
