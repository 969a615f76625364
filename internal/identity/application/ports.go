package application

import (
	"context"
	"time"

	"github.com/dmehra2102/qr-order-flow/internal/identity/domain"
)

type SessionStore interface {
	Issue(ctx context.Context, actor domain.Actor, ttl time.Duration) (string, error)
	Resolve(ctx context.Context, token string) (domain.Actor, error)
	Revoke(ctx context.Context, token string) error
}
