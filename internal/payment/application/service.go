package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	order "github.com/dmehra2102/qr-order-flow/internal/order/domain"
	"github.com/dmehra2102/qr-order-flow/internal/payment/domain"
	"github.com/dmehra2102/qr-order-flow/pkg/apperr"
	"github.com/dmehra2102/qr-order-flow/pkg/idempotency"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Service hands unpaid orders to the payment gateway and reconciles the
// outcome the client reports back. It never retries the gateway on its own.
type Service struct {
	log      *slog.Logger
	sessions SessionRepository
	gateway  Gateway
	orders   Orders
	lock     Locker
	group    singleflight.Group
	now      func() time.Time
}

func NewService(log *slog.Logger, sessions SessionRepository, gateway Gateway, orders Orders, lock Locker) *Service {
	return &Service{
		log:      log,
		sessions: sessions,
		gateway:  gateway,
		orders:   orders,
		lock:     lock,
		now:      time.Now,
	}
}

// InitiatePayment returns the live payment session for the order, creating a
// gateway order when there is none.
func (s *Service) InitiatePayment(ctx context.Context, actor identity.Actor, orderID string) (domain.Session, error) {
	if err := actor.Require(identity.RoleCustomer); err != nil {
		return domain.Session{}, err
	}
	o, err := s.orders.GetOrder(ctx, actor, orderID)
	if err != nil {
		return domain.Session{}, err
	}
	if o.PaymentStatus == order.PaymentPaid {
		return domain.Session{}, order.ErrAlreadyPaid
	}
	if o.Status != order.StatusPending {
		return domain.Session{}, order.ErrInvalidTransition
	}

	v, err, shared := s.group.Do(orderID, func() (any, error) {
		return s.initiate(ctx, o)
	})
	if shared {
		s.log.Debug("payment initiation coalesced", "order_id", orderID)
	}
	if err != nil {
		return domain.Session{}, err
	}
	return v.(domain.Session), nil
}

func (s *Service) initiate(ctx context.Context, o order.Order) (domain.Session, error) {
	release, err := s.lock.Acquire(ctx, o.ID)
	if errors.Is(err, idempotency.ErrHeld) {
		return domain.Session{}, domain.ErrPaymentInFlight
	}
	if err != nil {
		return domain.Session{}, apperr.Transient(err)
	}
	defer release()

	latest, found, err := s.sessions.Latest(ctx, o.ID)
	if err != nil {
		return domain.Session{}, err
	}

	var sess domain.Session
	switch {
	case found && latest.State == domain.StateCreated:
		return latest, nil
	case found && latest.State == domain.StateRequested:
		// The previous gateway call ended without a known outcome.
		sess = latest
		gw, ok, err := s.gateway.LookupByReceipt(ctx, sess.Receipt)
		if err != nil {
			return domain.Session{}, err
		}
		if ok {
			return s.created(ctx, sess, gw)
		}
	default:
		attempt := 1
		if found {
			attempt = latest.Attempt + 1
		}
		sess = domain.NewSession(uuid.NewString(), o.ID, attempt, minorUnits(o), o.Currency, s.now())
		err := s.sessions.Insert(ctx, sess)
		if errors.Is(err, domain.ErrActiveSession) {
			// Another instance opened a session after our lock expired.
			return domain.Session{}, fmt.Errorf("%w: %w", domain.ErrPaymentInFlight, err)
		}
		if err != nil {
			return domain.Session{}, err
		}
	}

	gw, err := s.gateway.CreateOrder(ctx, sess.Receipt, sess.Amount, sess.Currency, map[string]string{
		"order_id": o.ID,
		"shop_id":  o.ShopID,
	})
	if err != nil {
		if apperr.IsTransient(err) {
			s.log.Warn("gateway order outcome unknown", "order_id", o.ID, "receipt", sess.Receipt, "err", err)
			return domain.Session{}, err
		}
		sess.Fail(err.Error(), s.now())
		if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
			s.log.Error("save failed payment session", "order_id", o.ID, "err", saveErr)
		}
		return domain.Session{}, fmt.Errorf("%w: %w", domain.ErrPaymentFailed, err)
	}
	return s.created(ctx, sess, gw)
}

func (s *Service) created(ctx context.Context, sess domain.Session, gw GatewayOrder) (domain.Session, error) {
	sess.Created(gw.ID, s.now())
	if err := s.sessions.Save(ctx, sess); err != nil {
		return domain.Session{}, err
	}
	s.log.Info("payment session created", "order_id", sess.OrderID, "attempt", sess.Attempt, "gateway_order_id", gw.ID)
	return sess, nil
}

// Reconcile applies the gateway result reported by the client. A success is
// only accepted with a valid signature and marks the order paid. A failure or
// a dismissed checkout leaves the order unpaid and returns a retryable
// ErrPaymentFailed, unless the session was paid in the meantime.
func (s *Service) Reconcile(ctx context.Context, actor identity.Actor, cb domain.Callback) (order.Order, error) {
	if err := actor.Require(identity.RoleCustomer); err != nil {
		return order.Order{}, err
	}
	sess, err := s.sessions.ByGatewayOrder(ctx, cb.GatewayOrderID)
	if err != nil {
		return order.Order{}, err
	}
	o, err := s.orders.GetOrder(ctx, actor, sess.OrderID)
	if err != nil {
		return order.Order{}, err
	}

	if !cb.Success && sess.State != domain.StatePaid {
		if cb.Dismissed {
			sess.Dismiss(s.now())
		} else {
			sess.Fail(cb.ErrorReason, s.now())
		}
		err := s.sessions.Save(ctx, sess)
		if errors.Is(err, domain.ErrSessionSettled) {
			// A success for the same session landed after our read.
			s.log.Info("payment not completed report ignored, session already paid", "order_id", o.ID)
			return s.settle(ctx, actor, sess.OrderID)
		}
		if err != nil {
			return order.Order{}, err
		}
		s.log.Info("payment not completed", "order_id", o.ID, "state", sess.State, "reason", sess.ErrorReason)
		return o, apperr.Transient(fmt.Errorf("%w: %s", domain.ErrPaymentFailed, sess.ErrorReason))
	}

	if cb.Success && sess.State != domain.StatePaid {
		if !s.gateway.VerifySignature(sess.GatewayOrderID, cb.PaymentID, cb.Signature) {
			s.log.Warn("payment signature mismatch", "order_id", o.ID, "gateway_order_id", sess.GatewayOrderID)
			return order.Order{}, domain.ErrInvalidSignature
		}
		sess.MarkPaid(cb.PaymentID, s.now())
		if err := s.sessions.Save(ctx, sess); err != nil {
			return order.Order{}, err
		}
	}

	// A session already marked paid is replayed into the order so a callback
	// retried after a partial failure still settles it.
	return s.settle(ctx, actor, sess.OrderID)
}

func (s *Service) settle(ctx context.Context, actor identity.Actor, orderID string) (order.Order, error) {
	paid, err := s.orders.MarkPaid(ctx, actor, orderID)
	if errors.Is(err, order.ErrAlreadyPaid) {
		return s.orders.GetOrder(ctx, actor, orderID)
	}
	if err != nil {
		s.log.Error("mark order paid failed", "order_id", orderID, "err", err)
		return order.Order{}, err
	}
	return paid, nil
}

func minorUnits(o order.Order) int64 {
	return o.TotalAmount.Shift(2).Round(0).IntPart()
}
