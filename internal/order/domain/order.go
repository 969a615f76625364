package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrUnknownItem       = errors.New("item is not on the shop's active menu")
	ErrOrderNotFound     = errors.New("order not found")
	ErrAlreadyPaid       = errors.New("order is already paid")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrPaymentRequired   = errors.New("order must be paid first")
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses have no outgoing transition.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

func (p PaymentStatus) Valid() bool {
	return p == PaymentUnpaid || p == PaymentPaid
}

// Line is an order line with the name and price captured when the order was placed.
type Line struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID            string          `json:"orderId"`
	ShopID        string          `json:"shopId"`
	CustomerID    string          `json:"customerId"`
	SlipID        string          `json:"slipId"`
	Lines         []Line          `json:"lines"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Currency      string          `json:"currency"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// NewOrder builds a pending, unpaid order. The total is fixed here from the
// line snapshots and never recomputed.
func NewOrder(id, shopID, customerID, slipID, currency string, lines []Line, now time.Time) (Order, error) {
	if len(lines) == 0 {
		return Order{}, ErrEmptyCart
	}
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount())
	}
	now = now.UTC()
	return Order{
		ID:            id,
		ShopID:        shopID,
		CustomerID:    customerID,
		SlipID:        slipID,
		Lines:         lines,
		TotalAmount:   total,
		Currency:      currency,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// MarkPaid records payment and moves a pending order into processing.
func (o *Order) MarkPaid(now time.Time) error {
	if o.PaymentStatus == PaymentPaid {
		return ErrAlreadyPaid
	}
	if o.Status != StatusPending {
		return ErrInvalidTransition
	}
	o.PaymentStatus = PaymentPaid
	o.Status = StatusProcessing
	o.touch(now)
	return nil
}

// Complete is only reachable from processing, and only once paid.
func (o *Order) Complete(now time.Time) error {
	if o.PaymentStatus != PaymentPaid {
		return ErrPaymentRequired
	}
	if o.Status != StatusProcessing {
		return ErrInvalidTransition
	}
	o.Status = StatusCompleted
	o.touch(now)
	return nil
}

func (o *Order) Cancel(now time.Time) error {
	if o.Status != StatusPending && o.Status != StatusProcessing {
		return ErrInvalidTransition
	}
	o.Status = StatusCancelled
	o.touch(now)
	return nil
}

func (o *Order) touch(now time.Time) {
	o.UpdatedAt = now.UTC()
	o.Version++
}
