package application

import (
	"context"

	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	order "github.com/dmehra2102/qr-order-flow/internal/order/domain"
	"github.com/dmehra2102/qr-order-flow/internal/payment/domain"
)

type SessionRepository interface {
	Insert(ctx context.Context, s domain.Session) error
	Save(ctx context.Context, s domain.Session) error
	// Latest returns the highest attempt for the order, or false when there is none.
	Latest(ctx context.Context, orderID string) (domain.Session, bool, error)
	ByGatewayOrder(ctx context.Context, gatewayOrderID string) (domain.Session, error)
}

type GatewayOrder struct {
	ID       string
	Receipt  string
	Amount   int64
	Currency string
	Status   string
}

type Gateway interface {
	CreateOrder(ctx context.Context, receipt string, amount int64, currency string, notes map[string]string) (GatewayOrder, error)
	// LookupByReceipt finds a gateway order created earlier for receipt.
	LookupByReceipt(ctx context.Context, receipt string) (GatewayOrder, bool, error)
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
}

type Orders interface {
	GetOrder(ctx context.Context, actor identity.Actor, orderID string) (order.Order, error)
	MarkPaid(ctx context.Context, actor identity.Actor, orderID string) (order.Order, error)
}

type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}
