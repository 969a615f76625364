package application

import (
	"context"

	"github.com/dmehra2102/qr-order-flow/internal/cart/domain"
	catalog "github.com/dmehra2102/qr-order-flow/internal/catalog/domain"
)

type CartStore interface {
	Get(ctx context.Context, slipID, shopID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) error
	Delete(ctx context.Context, slipID string) error
}

type Catalog interface {
	Lookup(ctx context.Context, shopID string, itemIDs []string) (map[string]catalog.MenuItem, error)
}
