package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Message is what a producer writes next to its state change, inside the same transaction.
type Message struct {
	AggregateType string
	AggregateID   string
	// PartitionKey orders delivery; rows sharing a key are published in insert order.
	PartitionKey string
	Type         string
	Payload      []byte
	Headers      map[string]string
	Traceparent  string
}

type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	PartitionKey  string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Status        Status
	RelayID       string
	RetryCount    int
	LastError     *string
}
