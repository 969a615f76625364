package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	order "github.com/dmehra2102/qr-order-flow/internal/order/domain"
	"github.com/dmehra2102/qr-order-flow/pkg/idempotency"
	"github.com/dmehra2102/qr-order-flow/pkg/outbox"
	"github.com/dmehra2102/qr-order-flow/pkg/tracing"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher interface {
	PublishStatusChange(ev order.StatusEvent)
}

// NewReader joins group on topic. Every notifier instance uses its own group
// so each one sees every status event for its local subscribers.
func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     group,
		StartOffset: kafka.LastOffset,
	})
}

// Consumer feeds status events from the broker into the local hub.
type Consumer struct {
	log    *slog.Logger
	reader Reader
	group  string
	hub    Publisher
	idem   *idempotency.Store
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, reader Reader, group string, hub Publisher, idem *idempotency.Store) *Consumer {
	return &Consumer{
		log:    log,
		reader: reader,
		group:  group,
		hub:    hub,
		idem:   idem,
		tracer: otel.Tracer("status-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.handle(ctx, msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Warn("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	if eventType := outbox.Header(msg.Headers, outbox.HeaderEventType); eventType != "" && eventType != order.EventStatusChange {
		return
	}

	key := c.dedupeKey(msg)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		c.log.Warn("idempotency check failed, delivering anyway", "key", key, "err", err)
	}
	if seen {
		c.log.Debug("duplicate message skipped", "key", key)
		return
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	_, span := c.tracer.Start(msgCtx, "ConsumeOrderStatusChanged")
	defer span.End()

	var ev order.StatusEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.log.Error("unmarshal failed", "offset", msg.Offset, "err", err)
		return
	}
	span.SetAttributes(
		attribute.String("order.id", ev.OrderID),
		attribute.String("order.status", string(ev.Status)),
	)

	c.hub.PublishStatusChange(ev)
	c.log.Debug("status event delivered", "order_id", ev.OrderID, "status", ev.Status, "version", ev.Version)
}

// dedupeKey prefers the outbox row id, which survives a relay re-send, over
// the offset. The group is part of the key: another instance having seen a
// message says nothing about this instance's subscribers.
func (c *Consumer) dedupeKey(msg kafka.Message) string {
	if id := outbox.Header(msg.Headers, outbox.HeaderEventID); id != "" {
		return "idem:" + c.group + ":event:" + id
	}
	return c.group + ":" + c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
}
