package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	domainErrors "github.com/mercadoartesano/orders/internal/domain/errors"
	"github.com/mercadoartesano/orders/internal/domain/order"
	"github.com/mercadoartesano/orders/internal/infrastructure/observability"
)

// DefaultTimeout is how long a saga may stay non-terminal before the
// timeout timer forces compensation.
const DefaultTimeout = 30 * time.Second

const timeoutReason = "Saga Timeout"

// Orchestrator drives the order fulfillment workflow: it starts sagas,
// reacts to inventory and payment events, enforces state transitions and
// triggers compensation on failure or timeout.
//
// Only Execute propagates errors to its caller. Event handlers swallow
// everything at the handler boundary: a malformed or unexpected event is
// logged and counted, never allowed to crash the worker.
type Orchestrator struct {
	orders  order.Repository
	bus     EventBus
	store   *Store
	logger  zerolog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
	timeout time.Duration
}

// NewOrchestrator wires the orchestrator with its collaborators. A
// timeout <= 0 falls back to DefaultTimeout.
func NewOrchestrator(
	orders order.Repository,
	bus EventBus,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	timeout time.Duration,
) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{
		orders:  orders,
		bus:     bus,
		store:   NewStore(),
		logger:  logger.With().Str("component", "saga_orchestrator").Logger(),
		metrics: metrics,
		tracer:  otel.Tracer("saga"),
		timeout: timeout,
	}
}

// Store exposes the context store for read-only inspection (saga status API).
func (o *Orchestrator) Store() *Store {
	return o.store
}

// Execute starts a saga for an existing order: creates the context, emits
// order.created.v1 and arms the timeout timer. It returns the order id
// immediately; the workflow completes asynchronously.
//
// The order must exist. A failed lookup compensates whatever partial
// context was created and propagates the error.
func (o *Orchestrator) Execute(ctx context.Context, orderID uuid.UUID) (uuid.UUID, error) {
	ctx, span := o.tracer.Start(ctx, "saga.execute",
		trace.WithAttributes(attribute.String("order_id", orderID.String())))
	defer span.End()

	var execErr error
	o.store.WithLock(orderID, func() {
		ord, err := o.orders.FindByID(ctx, orderID)
		if err != nil {
			if !errors.Is(err, domainErrors.ErrOrderNotFound) {
				err = fmt.Errorf("load order %s: %w", orderID, err)
			}
			execErr = err
			return
		}
		if ord == nil {
			execErr = domainErrors.ErrOrderNotFound
			return
		}

		sc := NewContext(orderID)
		if err := o.store.Put(sc); err != nil {
			execErr = err
			return
		}
		o.metrics.SagasStarted.Inc()
		o.metrics.ActiveSagas.Inc()

		items := make([]OrderItemPayload, 0, len(ord.Items))
		for _, it := range ord.Items {
			items = append(items, OrderItemPayload{
				ProductID: it.ProductID.String(),
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
			})
		}
		evt := OrderCreatedEvent{
			OrderID:     orderID.String(),
			CustomerID:  ord.CustomerID,
			Items:       items,
			TotalAmount: ord.TotalAmount,
			Timestamp:   time.Now(),
		}
		if err := o.emit(ctx, TopicOrderCreated, evt); err != nil {
			o.compensateLocked(ctx, sc, "order created event failed: "+err.Error())
			execErr = err
			return
		}

		sc.armTimer(o.timeout, func() { o.onTimeout(orderID) })
		o.logger.Info().
			Str("order_id", orderID.String()).
			Str("state", string(sc.State)).
			Msg("Saga started")
	})

	return orderID, execErr
}

// HandleInventoryReserved reacts to a successful stock reservation:
// records the reservation id, emits payment.initiate and advances the saga
// to PAYMENT_PENDING (through STOCK_RESERVED).
func (o *Orchestrator) HandleInventoryReserved(ctx context.Context, evt InventoryReservedEvent) {
	orderID, ok := o.parseOrderID(TopicInventoryReserved, evt.OrderID)
	if !ok {
		return
	}

	o.store.WithLock(orderID, func() {
		sc, live := o.liveContext(orderID, TopicInventoryReserved)
		if !live {
			return
		}
		key := DedupKey(TopicInventoryReserved, evt.ReservationID)
		if o.isDuplicate(sc, TopicInventoryReserved, key) {
			return
		}
		if sc.State != StateStarted {
			o.protocolViolation(sc, TopicInventoryReserved)
			return
		}

		sc.MarkProcessed(key)
		sc.ReservationID = evt.ReservationID
		sc.TransitionTo(StateStockReserved)
		sc.TransitionTo(StatePaymentPending)

		err := o.emit(ctx, TopicPaymentInitiate, PaymentInitiateEvent{
			OrderID:    evt.OrderID,
			Amount:     evt.TotalAmount,
			CustomerID: evt.CustomerID,
			Timestamp:  time.Now(),
		})
		if err != nil {
			// Payment will never start; the timeout timer picks this up.
			o.logger.Error().Err(err).
				Str("order_id", evt.OrderID).
				Msg("Failed to emit payment initiate")
			return
		}

		o.logger.Info().
			Str("order_id", evt.OrderID).
			Str("reservation_id", evt.ReservationID).
			Str("state", string(sc.State)).
			Msg("Stock reserved, payment initiated")
	})
}

// HandleInventoryOutOfStock compensates the saga. No state guard: an
// out-of-stock signal is honored in any live, non-terminal phase.
func (o *Orchestrator) HandleInventoryOutOfStock(ctx context.Context, evt InventoryOutOfStockEvent) {
	orderID, ok := o.parseOrderID(TopicInventoryOutOfStock, evt.OrderID)
	if !ok {
		return
	}

	o.store.WithLock(orderID, func() {
		sc, live := o.liveContext(orderID, TopicInventoryOutOfStock)
		if !live {
			return
		}
		o.compensateLocked(ctx, sc, "Stock insuficiente")
	})
}

// HandlePaymentSucceeded confirms the order, emits order.completed.v1 and
// retires the saga.
func (o *Orchestrator) HandlePaymentSucceeded(ctx context.Context, evt PaymentSucceededEvent) {
	orderID, ok := o.parseOrderID(TopicPaymentSucceeded, evt.OrderID)
	if !ok {
		return
	}

	o.store.WithLock(orderID, func() {
		sc, live := o.liveContext(orderID, TopicPaymentSucceeded)
		if !live {
			return
		}
		key := DedupKey(TopicPaymentSucceeded, evt.PaymentIntentID)
		if o.isDuplicate(sc, TopicPaymentSucceeded, key) {
			return
		}
		if sc.State != StatePaymentPending {
			o.protocolViolation(sc, TopicPaymentSucceeded)
			return
		}

		sc.MarkProcessed(key)
		sc.PaymentIntentID = evt.PaymentIntentID

		ord, err := o.orders.FindByID(ctx, orderID)
		if err != nil || ord == nil {
			o.compensateLocked(ctx, sc, "order lookup failed during completion")
			return
		}
		if err := ord.ConfirmPayment(); err != nil {
			o.compensateLocked(ctx, sc, "confirm payment: "+err.Error())
			return
		}
		if err := o.orders.Save(ctx, ord); err != nil {
			o.compensateLocked(ctx, sc, "save order: "+err.Error())
			return
		}

		sc.TransitionTo(StateCompleted)
		o.emit(ctx, TopicOrderCompleted, OrderCompletedEvent{
			OrderID:         evt.OrderID,
			PaymentIntentID: evt.PaymentIntentID,
			Status:          string(StateCompleted),
		})
		o.retireLocked(sc, observability.OutcomeCompleted)

		o.logger.Info().
			Str("order_id", evt.OrderID).
			Str("payment_intent_id", evt.PaymentIntentID).
			Msg("Saga completed")
	})
}

// HandlePaymentFailed compensates the saga. Like out-of-stock, there is no
// state guard beyond liveness.
func (o *Orchestrator) HandlePaymentFailed(ctx context.Context, evt PaymentFailedEvent) {
	orderID, ok := o.parseOrderID(TopicPaymentFailed, evt.OrderID)
	if !ok {
		return
	}

	o.store.WithLock(orderID, func() {
		sc, live := o.liveContext(orderID, TopicPaymentFailed)
		if !live {
			return
		}
		o.compensateLocked(ctx, sc, "Pago fallido: "+evt.Reason)
	})
}

// Compensate runs the compensation routine for an order, if its saga is
// still live. Exposed for operational use; event handlers go through the
// same locked path.
func (o *Orchestrator) Compensate(ctx context.Context, orderID uuid.UUID, reason string) {
	o.store.WithLock(orderID, func() {
		sc, ok := o.store.Get(orderID)
		if !ok || sc.State.IsTerminal() {
			return
		}
		o.compensateLocked(ctx, sc, reason)
	})
}

// onTimeout fires when the saga timer elapses. The liveness check inside
// the lock makes a late timer a no-op for finished sagas.
func (o *Orchestrator) onTimeout(orderID uuid.UUID) {
	o.store.WithLock(orderID, func() {
		sc, ok := o.store.Get(orderID)
		if !ok || sc.State.IsTerminal() {
			return
		}
		o.metrics.SagaTimeouts.Inc()
		o.logger.Warn().
			Str("order_id", orderID.String()).
			Str("state", string(sc.State)).
			Msg("Saga timed out, compensating")
		o.compensateLocked(context.Background(), sc, timeoutReason)
	})
}

// compensateLocked undoes the saga's completed steps and cancels the order.
// Must be called with the per-order lock held and a live context.
//
// Release and refund are independent fire-and-forget emissions; a failure
// in one does not stop the other. Any failure inside compensation forces
// the FAILED outcome. The context is always retired, success or not.
func (o *Orchestrator) compensateLocked(ctx context.Context, sc *Context, reason string) {
	ctx, span := o.tracer.Start(ctx, "saga.compensate",
		trace.WithAttributes(
			attribute.String("order_id", sc.OrderID.String()),
			attribute.String("reason", reason),
		))
	defer span.End()

	if sc.State.IsTerminal() {
		return
	}
	sc.TransitionTo(StateCompensating)
	sc.LastError = reason

	outcome := observability.OutcomeCompensated
	defer func() {
		o.retireLocked(sc, outcome)
	}()

	var errs []error
	orderID := sc.OrderID.String()

	if sc.ReservationID != "" {
		if err := o.emit(ctx, TopicInventoryRelease, InventoryReleaseEvent{
			OrderID:       orderID,
			ReservationID: sc.ReservationID,
			Reason:        reason,
		}); err != nil {
			errs = append(errs, fmt.Errorf("release inventory: %w", err))
		}
	}
	if sc.PaymentIntentID != "" {
		if err := o.emit(ctx, TopicPaymentRefund, PaymentRefundEvent{
			OrderID:         orderID,
			PaymentIntentID: sc.PaymentIntentID,
			Reason:          reason,
		}); err != nil {
			errs = append(errs, fmt.Errorf("refund payment: %w", err))
		}
	}

	if err := o.cancelOrder(ctx, sc.OrderID, reason); err != nil {
		errs = append(errs, err)
	} else if err := o.emit(ctx, TopicOrderCancelled, OrderCancelledEvent{
		OrderID: orderID,
		Reason:  reason,
	}); err != nil {
		errs = append(errs, fmt.Errorf("emit order cancelled: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		outcome = observability.OutcomeFailed
		sc.TransitionTo(StateFailed)
		sc.LastError = err.Error()
		span.RecordError(err)
		o.logger.Error().Err(err).
			Str("order_id", orderID).
			Str("reason", reason).
			Msg("Compensation failed")
		return
	}

	sc.TransitionTo(StateCompensated)
	o.logger.Info().
		Str("order_id", orderID).
		Str("reason", reason).
		Msg("Saga compensated")
}

func (o *Orchestrator) cancelOrder(ctx context.Context, orderID uuid.UUID, reason string) error {
	ord, err := o.orders.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order for cancellation: %w", err)
	}
	if ord == nil {
		return domainErrors.ErrOrderNotFound
	}
	if err := ord.Cancel(reason); err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if err := o.orders.Save(ctx, ord); err != nil {
		return fmt.Errorf("save cancelled order: %w", err)
	}
	return nil
}

// retireLocked removes the context from the store and records terminal
// metrics. Must be called with the per-order lock held.
func (o *Orchestrator) retireLocked(sc *Context, outcome string) {
	sc.stopTimer()
	o.store.Delete(sc.OrderID)
	o.metrics.SagasTotal.WithLabelValues(outcome).Inc()
	o.metrics.SagaDuration.WithLabelValues(outcome).Observe(time.Since(sc.StartedAt).Seconds())
	o.metrics.ActiveSagas.Dec()
}

// emit publishes onto the bus and records the outcome. Emission failures
// are reported to the caller; whether they matter depends on the step.
func (o *Orchestrator) emit(ctx context.Context, topic string, payload any) error {
	err := o.bus.Emit(ctx, topic, payload)
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.EventsPublished.WithLabelValues(topic, status).Inc()
	return err
}

// liveContext loads the saga for an order and checks it accepts events.
// A missing or terminal saga means the event is stale: it is ignored
// without side effects.
func (o *Orchestrator) liveContext(orderID uuid.UUID, topic string) (*Context, bool) {
	sc, ok := o.store.Get(orderID)
	if !ok || sc.State.IsTerminal() {
		o.logger.Debug().
			Str("order_id", orderID.String()).
			Str("topic", topic).
			Msg("Event for missing or finished saga ignored")
		return nil, false
	}
	return sc, true
}

func (o *Orchestrator) isDuplicate(sc *Context, topic, key string) bool {
	if !sc.AlreadyProcessed(key) {
		return false
	}
	o.metrics.DuplicateEvents.WithLabelValues(topic).Inc()
	o.logger.Info().
		Str("order_id", sc.OrderID.String()).
		Str("dedup_key", key).
		Msg("Duplicate event ignored")
	return true
}

func (o *Orchestrator) protocolViolation(sc *Context, topic string) {
	o.metrics.ProtocolViolations.WithLabelValues(topic).Inc()
	o.logger.Error().
		Str("order_id", sc.OrderID.String()).
		Str("topic", topic).
		Str("state", string(sc.State)).
		Msg("Event not accepted in current saga state")
}

func (o *Orchestrator) parseOrderID(topic, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		o.logger.Error().
			Str("topic", topic).
			Str("raw", raw).
			Msg("Invalid order id in event")
		return uuid.Nil, false
	}
	return id, true
}

// HandlerFunc decodes and applies one inbound event payload. A returned
// error means the payload could not be decoded; domain-level failures are
// handled inside the saga and never surface here.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Routes returns the explicit topic-to-handler dispatch table consumed by
// the event worker.
func (o *Orchestrator) Routes() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		TopicInventoryReserved: func(ctx context.Context, payload []byte) error {
			var evt InventoryReservedEvent
			if err := json.Unmarshal(payload, &evt); err != nil {
				return fmt.Errorf("decode %s: %w", TopicInventoryReserved, err)
			}
			o.HandleInventoryReserved(ctx, evt)
			return nil
		},
		TopicInventoryOutOfStock: func(ctx context.Context, payload []byte) error {
			var evt InventoryOutOfStockEvent
			if err := json.Unmarshal(payload, &evt); err != nil {
				return fmt.Errorf("decode %s: %w", TopicInventoryOutOfStock, err)
			}
			o.HandleInventoryOutOfStock(ctx, evt)
			return nil
		},
		TopicPaymentSucceeded: func(ctx context.Context, payload []byte) error {
			var evt PaymentSucceededEvent
			if err := json.Unmarshal(payload, &evt); err != nil {
				return fmt.Errorf("decode %s: %w", TopicPaymentSucceeded, err)
			}
			o.HandlePaymentSucceeded(ctx, evt)
			return nil
		},
		TopicPaymentFailed: func(ctx context.Context, payload []byte) error {
			var evt PaymentFailedEvent
			if err := json.Unmarshal(payload, &evt); err != nil {
				return fmt.Errorf("decode %s: %w", TopicPaymentFailed, err)
			}
			o.HandlePaymentFailed(ctx, evt)
			return nil
		},
	}
}
