package saga

import (
	"time"

	"github.com/google/uuid"
	"github.com/mercadoartesano/orders/internal/domain/errors"
)

// Context holds the orchestration state for one in-flight order.
// It is owned exclusively by the orchestrator and mutated only while
// the store's per-order lock is held.
type Context struct {
	OrderID         uuid.UUID
	State           State
	ReservationID   string
	PaymentIntentID string
	LastError       string
	StartedAt       time.Time
	UpdatedAt       time.Time

	// processed is the dedup set of "<topic>:<natural-id>" keys already
	// applied to this saga instance. It only grows.
	processed map[string]struct{}

	timer *time.Timer
}

// NewContext creates a fresh context in STARTED state.
func NewContext(orderID uuid.UUID) *Context {
	now := time.Now()
	return &Context{
		OrderID:   orderID,
		State:     StateStarted,
		StartedAt: now,
		UpdatedAt: now,
		processed: make(map[string]struct{}),
	}
}

// TransitionTo advances the saga along a legal edge of the state machine.
func (c *Context) TransitionTo(next State) error {
	if !c.State.CanTransitionTo(next) {
		return errors.NewDomainError(
			"invalid_saga_transition",
			"cannot transition saga from "+string(c.State)+" to "+string(next),
			errors.ErrInvalidStateTransition,
		)
	}
	c.State = next
	c.UpdatedAt = time.Now()
	return nil
}

// AlreadyProcessed reports whether the dedup key was applied before.
func (c *Context) AlreadyProcessed(key string) bool {
	_, ok := c.processed[key]
	return ok
}

// MarkProcessed records a dedup key. Keys are never removed.
func (c *Context) MarkProcessed(key string) {
	c.processed[key] = struct{}{}
}

// armTimer schedules fn after d. A context carries at most one timer.
func (c *Context) armTimer(d time.Duration, fn func()) {
	c.timer = time.AfterFunc(d, fn)
}

// stopTimer cancels the pending timeout, if any.
func (c *Context) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
	}
}

// DedupKey builds the natural dedup key for an inbound event.
func DedupKey(topic, id string) string {
	return topic + ":" + id
}

// Snapshot is a read-only copy of a live context, safe to hand out
// past the store lock.
type Snapshot struct {
	OrderID         uuid.UUID `json:"order_id"`
	State           State     `json:"state"`
	ReservationID   string    `json:"reservation_id,omitempty"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Snapshot copies the exported context fields.
func (c *Context) Snapshot() Snapshot {
	return Snapshot{
		OrderID:         c.OrderID,
		State:           c.State,
		ReservationID:   c.ReservationID,
		PaymentIntentID: c.PaymentIntentID,
		LastError:       c.LastError,
		StartedAt:       c.StartedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}
