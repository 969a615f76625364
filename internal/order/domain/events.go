package domain

import "time"

const (
	AggregateType     = "order"
	EventStatusChange = "OrderStatusChanged"
)

type Change string

const (
	ChangeCreated   Change = "created"
	ChangePaid      Change = "paid"
	ChangeCompleted Change = "completed"
	ChangeCancelled Change = "cancelled"
)

// StatusEvent announces a committed status or payment-status change. It is
// delivered at most once to live subscribers and never stored by them.
type StatusEvent struct {
	OrderID       string        `json:"orderId"`
	ShopID        string        `json:"shopId"`
	Change        Change        `json:"change"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Version       int64         `json:"version"`
	EmittedAt     time.Time     `json:"emittedAt"`
}

func NewStatusEvent(o Order, change Change) StatusEvent {
	return StatusEvent{
		OrderID:       o.ID,
		ShopID:        o.ShopID,
		Change:        change,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Version:       o.Version,
		EmittedAt:     o.UpdatedAt,
	}
}
