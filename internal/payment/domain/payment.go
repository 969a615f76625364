package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNetwork            = errors.New("payment gateway unreachable")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected the request")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrPaymentInFlight    = errors.New("payment already being initiated for this order")
	ErrSessionNotFound    = errors.New("payment session not found")
	ErrActiveSession      = errors.New("order already has an active payment session")
	ErrSessionSettled     = errors.New("payment session already paid")
	ErrInvalidSignature   = errors.New("payment signature does not match")
)

type State string

const (
	StateRequested State = "requested"
	StateCreated   State = "created"
	StatePaid      State = "paid"
	StateFailed    State = "failed"
	StateDismissed State = "dismissed"
)

// Session is one attempt to collect payment for an order through the gateway.
//
// A session is written in the requested state before the gateway is called, so
// a gateway order whose creation outcome is unknown can be found again by its
// receipt.
type Session struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"orderId"`
	Attempt        int       `json:"attempt"`
	Receipt        string    `json:"receipt"`
	GatewayOrderID string    `json:"gatewayOrderId,omitempty"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	State          State     `json:"state"`
	PaymentID      string    `json:"paymentId,omitempty"`
	ErrorReason    string    `json:"errorReason,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func NewSession(id, orderID string, attempt int, amount int64, currency string, now time.Time) Session {
	now = now.UTC()
	return Session{
		ID:        id,
		OrderID:   orderID,
		Attempt:   attempt,
		Receipt:   Receipt(orderID, attempt),
		Amount:    amount,
		Currency:  currency,
		State:     StateRequested,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Receipt is the idempotency reference sent to the gateway for an attempt.
func Receipt(orderID string, attempt int) string {
	return fmt.Sprintf("%s-%d", orderID, attempt)
}

// Active sessions block creation of another session for the same order.
func (s Session) Active() bool {
	return s.State == StateRequested || s.State == StateCreated
}

func (s *Session) Created(gatewayOrderID string, now time.Time) {
	s.GatewayOrderID = gatewayOrderID
	s.State = StateCreated
	s.UpdatedAt = now.UTC()
}

// MarkPaid accepts a verified payment. A gateway may let the customer retry on
// the same gateway order, so a failed or dismissed session can still be paid.
func (s *Session) MarkPaid(paymentID string, now time.Time) {
	s.PaymentID = paymentID
	s.State = StatePaid
	s.ErrorReason = ""
	s.UpdatedAt = now.UTC()
}

func (s *Session) Fail(reason string, now time.Time) {
	if s.State == StatePaid {
		return
	}
	if reason == "" {
		reason = "payment failed"
	}
	s.State = StateFailed
	s.ErrorReason = reason
	s.UpdatedAt = now.UTC()
}

func (s *Session) Dismiss(now time.Time) {
	if s.State == StatePaid {
		return
	}
	s.State = StateDismissed
	s.ErrorReason = "checkout dismissed"
	s.UpdatedAt = now.UTC()
}

// Callback is the gateway result reported by the client after checkout.
type Callback struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	Success        bool   `json:"success"`
	Dismissed      bool   `json:"dismissed,omitempty"`
	PaymentID      string `json:"paymentId,omitempty"`
	Signature      string `json:"signature,omitempty"`
	ErrorReason    string `json:"errorReason,omitempty"`
}
