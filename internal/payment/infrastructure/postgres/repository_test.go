package postgres

import (
	"context"
	"testing"
	"time"

	order "github.com/dmehra2102/qr-order-flow/internal/order/domain"
	orderpg "github.com/dmehra2102/qr-order-flow/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/qr-order-flow/internal/payment/domain"
	"github.com/dmehra2102/qr-order-flow/internal/testenv"
	"github.com/dmehra2102/qr-order-flow/pkg/logging"
	"github.com/dmehra2102/qr-order-flow/pkg/outbox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRepository(t *testing.T) {
	pool := testenv.Postgres(t)
	ctx := context.Background()

	o, err := order.NewOrder(uuid.NewString(), "shop-1", "cust-1", "slip-1", "INR", []order.Line{
		{ItemID: "a", Name: "Dosa", UnitPrice: decimal.NewFromInt(50), Quantity: 1},
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, orderpg.NewRepository(logging.Discard(), pool).CreateWithOutbox(ctx, o, outbox.Message{
		AggregateType: order.AggregateType, AggregateID: o.ID, Type: order.EventStatusChange, Payload: []byte(`{}`),
	}))

	repo := NewRepository(logging.Discard(), pool)

	_, found, err := repo.Latest(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, found)

	first := domain.NewSession(uuid.NewString(), o.ID, 1, 5000, "INR", time.Now())
	require.NoError(t, repo.Insert(ctx, first))

	second := domain.NewSession(uuid.NewString(), o.ID, 2, 5000, "INR", time.Now())
	assert.ErrorIs(t, repo.Insert(ctx, second), domain.ErrActiveSession)

	first.Created("order_gw1", time.Now())
	require.NoError(t, repo.Save(ctx, first))

	got, err := repo.ByGatewayOrder(ctx, "order_gw1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCreated, got.State)
	assert.Equal(t, domain.Receipt(o.ID, 1), got.Receipt)

	first.Fail("card declined", time.Now())
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Insert(ctx, second))

	latest, found, err := repo.Latest(ctx, o.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, latest.Attempt)
	assert.Empty(t, latest.GatewayOrderID)

	_, err = repo.ByGatewayOrder(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	ghost := domain.NewSession(uuid.NewString(), o.ID, 9, 5000, "INR", time.Now())
	assert.ErrorIs(t, repo.Save(ctx, ghost), domain.ErrSessionNotFound)
}

func TestSessionRepository_PaidIsNotOverwritten(t *testing.T) {
	pool := testenv.Postgres(t)
	ctx := context.Background()

	o, err := order.NewOrder(uuid.NewString(), "shop-1", "cust-1", "slip-1", "INR", []order.Line{
		{ItemID: "a", Name: "Dosa", UnitPrice: decimal.NewFromInt(50), Quantity: 1},
	}, time.Now())
	require.NoError(t, err)
	require.NoError(t, orderpg.NewRepository(logging.Discard(), pool).CreateWithOutbox(ctx, o, outbox.Message{
		AggregateType: order.AggregateType, AggregateID: o.ID, Type: order.EventStatusChange, Payload: []byte(`{}`),
	}))
	repo := NewRepository(logging.Discard(), pool)

	sess := domain.NewSession(uuid.NewString(), o.ID, 1, 5000, "INR", time.Now())
	require.NoError(t, repo.Insert(ctx, sess))
	sess.Created("order_gw_paid", time.Now())
	require.NoError(t, repo.Save(ctx, sess))

	// a failure report read the session before the payment landed
	stale := sess

	sess.MarkPaid("pay_1", time.Now())
	require.NoError(t, repo.Save(ctx, sess))

	stale.Fail("card declined", time.Now())
	assert.ErrorIs(t, repo.Save(ctx, stale), domain.ErrSessionSettled)

	got, err := repo.ByGatewayOrder(ctx, "order_gw_paid")
	require.NoError(t, err)
	assert.Equal(t, domain.StatePaid, got.State)
	assert.Equal(t, "pay_1", got.PaymentID)
	assert.Empty(t, got.ErrorReason)

	// a replayed success is still accepted
	require.NoError(t, repo.Save(ctx, sess))
}
