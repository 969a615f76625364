package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	identity "github.com/dmehra2102/qr-order-flow/internal/identity/domain"
	order "github.com/dmehra2102/qr-order-flow/internal/order/domain"
)

type OrderReader interface {
	GetOrder(ctx context.Context, actor identity.Actor, orderID string) (order.Order, error)
}

type Source string

const (
	SourceFetch Source = "fetch"
	SourcePush  Source = "push"
)

// Snapshot is the tracked order state as last applied.
type Snapshot struct {
	Order  order.Order `json:"order"`
	Source Source      `json:"source"`
	Token  uint64      `json:"token"`
}

// Tracker follows one order. Pushed events are the primary source; the
// authoritative order is fetched at start, on Resync, and when no push has
// arrived for the fallback interval.
//
// Every fetch takes a token when it is issued and every push when it arrives.
// A result is applied only if its token is newer than the last applied one, so
// a slow fetch can never overwrite a newer pushed state. Pushes are further
// ordered by order version, so a late redelivery cannot move the order back.
type Tracker struct {
	log      *slog.Logger
	hub      *Hub
	reader   OrderReader
	actor    identity.Actor
	orderID  string
	key      string
	fallback time.Duration

	mu      sync.Mutex
	seq     uint64
	applied uint64
	current Snapshot
	have    bool
	// partial is set while current holds pushed status only
	partial bool

	updates chan Snapshot
	pushed  chan struct{}
}

func NewTracker(log *slog.Logger, hub *Hub, reader OrderReader, actor identity.Actor, orderID, key string, fallback time.Duration) *Tracker {
	return &Tracker{
		log:      log,
		hub:      hub,
		reader:   reader,
		actor:    actor,
		orderID:  orderID,
		key:      key,
		fallback: fallback,
		updates:  make(chan Snapshot, 1),
		pushed:   make(chan struct{}, 1),
	}
}

// Updates yields the newest snapshot. Intermediate states a slow reader did
// not pick up are replaced by newer ones.
func (t *Tracker) Updates() <-chan Snapshot {
	return t.updates
}

func (t *Tracker) Current() (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.have
}

// Run tracks the order until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	sub := t.hub.SubscribeOrder(t.orderID, t.key, func(m Message) { t.Push(m.Event) })
	defer sub.Unsubscribe()

	t.Resync(ctx)

	timer := time.NewTimer(t.fallback)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.pushed:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(t.fallback)
		case <-timer.C:
			t.Resync(ctx)
			timer.Reset(t.fallback)
		}
	}
}

// Resync fetches the authoritative order. It reports whether the fetched
// state became the current one.
func (t *Tracker) Resync(ctx context.Context) bool {
	token := t.next()
	o, err := t.reader.GetOrder(ctx, t.actor, t.orderID)
	if err != nil {
		if ctx.Err() == nil {
			t.log.Warn("order resync failed", "order_id", t.orderID, "err", err)
		}
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if token > t.applied {
		t.applied = token
		t.partial = false
		t.emitLocked(Snapshot{Order: o, Source: SourceFetch, Token: token})
		return true
	}
	if !t.partial {
		t.log.Debug("stale fetch discarded", "order_id", t.orderID, "token", token, "applied", t.applied)
		return false
	}

	// Only pushes have landed so far. The fetch is older than them but still
	// carries the lines and totals they lack.
	merged, src := o, SourceFetch
	if pushed := t.current.Order; pushed.Version > o.Version {
		merged.Status = pushed.Status
		merged.PaymentStatus = pushed.PaymentStatus
		merged.Version = pushed.Version
		merged.UpdatedAt = pushed.UpdatedAt
		src = SourcePush
	}
	t.partial = false
	t.emitLocked(Snapshot{Order: merged, Source: src, Token: t.applied})
	return src == SourceFetch
}

// Push applies a status event for the tracked order. Events not newer than
// the tracked version are dropped. Before the first fetch lands a push is
// held back, since it carries no lines or totals.
func (t *Tracker) Push(ev order.StatusEvent) bool {
	if ev.OrderID != t.orderID {
		return false
	}
	select {
	case t.pushed <- struct{}{}:
	default:
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	token := t.seq

	known := t.have || t.partial
	if known && ev.Version <= t.current.Order.Version {
		t.log.Debug("stale push discarded", "order_id", t.orderID, "version", ev.Version, "current", t.current.Order.Version)
		return false
	}

	o := t.current.Order
	if !known {
		o = order.Order{ID: ev.OrderID, ShopID: ev.ShopID}
	}
	o.Status = ev.Status
	o.PaymentStatus = ev.PaymentStatus
	o.Version = ev.Version
	o.UpdatedAt = ev.EmittedAt

	t.applied = token
	snap := Snapshot{Order: o, Source: SourcePush, Token: token}
	if !t.have {
		t.current = snap
		t.partial = true
		return true
	}
	t.emitLocked(snap)
	return true
}

func (t *Tracker) next() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	return t.seq
}

func (t *Tracker) emitLocked(snap Snapshot) {
	t.current = snap
	t.have = true

	select {
	case <-t.updates:
	default:
	}
	t.updates <- snap
}
