package application

import (
	"context"
	"errors"

	catalog "github.com/dmehra2102/qr-order-flow/internal/catalog/domain"
	"github.com/dmehra2102/qr-order-flow/internal/order/domain"
	"github.com/dmehra2102/qr-order-flow/pkg/outbox"
)

// Mutation changes an order under lock and returns the event describing the change.
type Mutation func(o *domain.Order) (outbox.Message, error)

type Filter struct {
	Status        domain.Status
	PaymentStatus domain.PaymentStatus
}

type OrderRepository interface {
	// CreateWithOutbox stores a new order and its creation event atomically.
	CreateWithOutbox(ctx context.Context, o domain.Order, msg outbox.Message) error
	// Update locks the order, applies fn and stores the result with fn's event
	// in one transaction. Nothing is written when fn fails.
	Update(ctx context.Context, id string, fn Mutation) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	ListByShop(ctx context.Context, shopID string, f Filter) ([]domain.Order, error)
}

type Catalog interface {
	Lookup(ctx context.Context, shopID string, itemIDs []string) (map[string]catalog.MenuItem, error)
}

var ErrInvalidFilter = errors.New("invalid order filter")
