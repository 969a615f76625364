package application

import (
	"context"
	"testing"
	"time"

	"github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSessions struct {
	issued  map[string]domain.Actor
	ttl     time.Duration
	revoked []string
}

func (m *memSessions) Issue(_ context.Context, actor domain.Actor, ttl time.Duration) (string, error) {
	token := "tok-" + actor.SlipID
	m.issued[token] = actor
	m.ttl = ttl
	return token, nil
}

func (m *memSessions) Resolve(_ context.Context, token string) (domain.Actor, error) {
	a, ok := m.issued[token]
	if !ok {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	return a, nil
}

func (m *memSessions) Revoke(_ context.Context, token string) error {
	m.revoked = append(m.revoked, token)
	return nil
}

func TestOpenSlip(t *testing.T) {
	sessions := &memSessions{issued: map[string]domain.Actor{}}
	svc := NewService(sessions, 2*time.Hour)

	slip, err := svc.OpenSlip(context.Background(), " shop-1 ", "cust-1")
	require.NoError(t, err)

	assert.NotEmpty(t, slip.ID)
	assert.Equal(t, "shop-1", slip.ShopID)
	assert.Equal(t, 2*time.Hour, sessions.ttl)

	actor, err := svc.CurrentActor(context.Background(), slip.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, actor.Role)
	assert.Equal(t, slip.ID, actor.SlipID)
	assert.Equal(t, "shop-1", actor.ShopID)
}

func TestOpenSlip_Validation(t *testing.T) {
	svc := NewService(&memSessions{issued: map[string]domain.Actor{}}, time.Hour)

	_, err := svc.OpenSlip(context.Background(), "", "cust-1")
	assert.ErrorIs(t, err, ErrInvalidSlipRequest)
}

func TestCurrentActor_EmptyToken(t *testing.T) {
	svc := NewService(&memSessions{issued: map[string]domain.Actor{}}, time.Hour)

	_, err := svc.CurrentActor(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestCloseSession(t *testing.T) {
	sessions := &memSessions{issued: map[string]domain.Actor{}}
	svc := NewService(sessions, time.Hour)

	assert.ErrorIs(t, svc.CloseSession(context.Background(), domain.Actor{}), domain.ErrUnauthenticated)

	actor := domain.Actor{Role: domain.RoleCustomer, ID: "c", Token: "tok-x"}
	require.NoError(t, svc.CloseSession(context.Background(), actor))
	assert.Equal(t, []string{"tok-x"}, sessions.revoked)
}
