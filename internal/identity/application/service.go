package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	"github.com/google/uuid"
)

var ErrInvalidSlipRequest = errors.New("shop id and customer id are required")

type Service struct {
	sessions SessionStore
	slipTTL  time.Duration
}

func NewService(sessions SessionStore, slipTTL time.Duration) *Service {
	return &Service{sessions: sessions, slipTTL: slipTTL}
}

// OpenSlip starts a customer ordering session for one shop, as produced by
// scanning that shop's code.
func (s *Service) OpenSlip(ctx context.Context, shopID, customerID string) (domain.Slip, error) {
	shopID, customerID = strings.TrimSpace(shopID), strings.TrimSpace(customerID)
	if shopID == "" || customerID == "" {
		return domain.Slip{}, ErrInvalidSlipRequest
	}

	slip := domain.Slip{
		ID:         uuid.NewString(),
		ShopID:     shopID,
		CustomerID: customerID,
	}
	token, err := s.sessions.Issue(ctx, domain.Actor{
		Role:   domain.RoleCustomer,
		ID:     customerID,
		ShopID: shopID,
		SlipID: slip.ID,
	}, s.slipTTL)
	if err != nil {
		return domain.Slip{}, err
	}
	slip.Token = token
	return slip, nil
}

// CurrentActor resolves a bearer token. An empty token is unauthenticated.
func (s *Service) CurrentActor(ctx context.Context, token string) (domain.Actor, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	return s.sessions.Resolve(ctx, token)
}

func (s *Service) CloseSession(ctx context.Context, actor domain.Actor) error {
	if err := actor.Require(); err != nil {
		return err
	}
	return s.sessions.Revoke(ctx, actor.Token)
}
