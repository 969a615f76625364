package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cart "github.com/dmehra2102/qr-order-flow/internal/cart/domain"
	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	"github.com/dmehra2102/qr-order-flow/internal/order/domain"
	"github.com/dmehra2102/qr-order-flow/pkg/outbox"
	"github.com/dmehra2102/qr-order-flow/pkg/tracing"
	"github.com/google/uuid"
)

type Service struct {
	repo     OrderRepository
	catalog  Catalog
	currency string
	now      func() time.Time
}

func NewService(repo OrderRepository, catalog Catalog, currency string) *Service {
	return &Service{repo: repo, catalog: catalog, currency: currency, now: time.Now}
}

// CreateOrder turns the customer's cart into a pending, unpaid order, pricing
// every line from the shop's menu at this moment.
func (s *Service) CreateOrder(ctx context.Context, actor identity.Actor, shopID string, c cart.Cart) (domain.Order, error) {
	if err := actor.Require(identity.RoleCustomer); err != nil {
		return domain.Order{}, err
	}
	if actor.ShopID != shopID {
		return domain.Order{}, identity.ErrForbidden
	}
	if c.IsEmpty() {
		return domain.Order{}, domain.ErrEmptyCart
	}

	items := c.Items()
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ItemID)
	}
	menu, err := s.catalog.Lookup(ctx, shopID, ids)
	if err != nil {
		return domain.Order{}, fmt.Errorf("lookup menu: %w", err)
	}

	lines := make([]domain.Line, 0, len(items))
	for _, it := range items {
		m, ok := menu[it.ItemID]
		if !ok || !m.Orderable() {
			return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrUnknownItem, it.ItemID)
		}
		lines = append(lines, domain.Line{
			ItemID:    it.ItemID,
			Name:      m.Name,
			UnitPrice: m.Price,
			Quantity:  it.Quantity,
		})
	}

	o, err := domain.NewOrder(uuid.NewString(), shopID, actor.ID, actor.SlipID, s.currency, lines, s.now())
	if err != nil {
		return domain.Order{}, err
	}
	msg, err := statusMessage(ctx, o, domain.ChangeCreated)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.repo.CreateWithOutbox(ctx, o, msg); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, actor identity.Actor, orderID string) (domain.Order, error) {
	if err := actor.Require(); err != nil {
		return domain.Order{}, err
	}
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !canView(actor, o) {
		return domain.Order{}, identity.ErrForbidden
	}
	return o, nil
}

// MarkPaid is called once the payment gateway confirmed the charge.
func (s *Service) MarkPaid(ctx context.Context, actor identity.Actor, orderID string) (domain.Order, error) {
	if err := actor.Require(); err != nil {
		return domain.Order{}, err
	}
	return s.transition(ctx, actor, orderID, domain.ChangePaid, func(o *domain.Order) error {
		return o.MarkPaid(s.now())
	})
}

func (s *Service) MarkCompleted(ctx context.Context, actor identity.Actor, orderID string) (domain.Order, error) {
	if err := actor.Require(identity.RoleShop, identity.RoleAdmin); err != nil {
		return domain.Order{}, err
	}
	return s.transition(ctx, actor, orderID, domain.ChangeCompleted, func(o *domain.Order) error {
		return o.Complete(s.now())
	})
}

func (s *Service) CancelOrder(ctx context.Context, actor identity.Actor, orderID string) (domain.Order, error) {
	if err := actor.Require(); err != nil {
		return domain.Order{}, err
	}
	return s.transition(ctx, actor, orderID, domain.ChangeCancelled, func(o *domain.Order) error {
		return o.Cancel(s.now())
	})
}

// ListShopOrders is the shop's order queue, newest first.
func (s *Service) ListShopOrders(ctx context.Context, actor identity.Actor, shopID string, f Filter) ([]domain.Order, error) {
	if err := actor.Require(identity.RoleShop, identity.RoleAdmin); err != nil {
		return nil, err
	}
	if !actor.CanActForShop(shopID) {
		return nil, identity.ErrForbidden
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, f.Status)
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrInvalidFilter, f.PaymentStatus)
	}
	return s.repo.ListByShop(ctx, shopID, f)
}

func (s *Service) transition(ctx context.Context, actor identity.Actor, orderID string, change domain.Change, apply func(*domain.Order) error) (domain.Order, error) {
	return s.repo.Update(ctx, orderID, func(o *domain.Order) (outbox.Message, error) {
		if !canView(actor, *o) {
			return outbox.Message{}, identity.ErrForbidden
		}
		if err := apply(o); err != nil {
			return outbox.Message{}, err
		}
		return statusMessage(ctx, *o, change)
	})
}

func canView(actor identity.Actor, o domain.Order) bool {
	if actor.Role == identity.RoleCustomer {
		return actor.ID == o.CustomerID
	}
	return actor.CanActForShop(o.ShopID)
}

func statusMessage(ctx context.Context, o domain.Order, change domain.Change) (outbox.Message, error) {
	payload, err := json.Marshal(domain.NewStatusEvent(o, change))
	if err != nil {
		return outbox.Message{}, fmt.Errorf("marshal status event: %w", err)
	}
	return outbox.Message{
		AggregateType: domain.AggregateType,
		AggregateID:   o.ID,
		PartitionKey:  o.ShopID,
		Type:          domain.EventStatusChange,
		Payload:       payload,
		Headers:       map[string]string{"order_id": o.ID, "shop_id": o.ShopID},
		Traceparent:   tracing.Traceparent(ctx),
	}, nil
}
