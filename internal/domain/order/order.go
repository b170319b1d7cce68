package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/mercadoartesano/orders/internal/domain/errors"
)

// OrderStatus represents the order status in the state machine
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusCancelled OrderStatus = "cancelled"
)

// Item is a single order line.
type Item struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice int64 // smallest currency unit (cents)
}

// Subtotal returns the line total in cents.
func (i Item) Subtotal() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

// Order represents a customer order being fulfilled by the saga.
type Order struct {
	ID           uuid.UUID
	CustomerID   string
	Items        []Item
	TotalAmount  int64 // cents
	Currency     string
	Status       OrderStatus
	CancelReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ConfirmedAt  *time.Time
}

// NewOrder creates a new pending order. The total is derived from the items.
func NewOrder(customerID string, items []Item, currency string) (*Order, error) {
	if customerID == "" {
		return nil, errors.NewValidationError("customer_id", "cannot be empty")
	}
	if len(items) == 0 {
		return nil, errors.ErrEmptyOrder
	}
	if len(currency) != 3 {
		return nil, errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}

	var total int64
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, errors.NewValidationError("quantity", "must be greater than 0")
		}
		if it.UnitPrice <= 0 {
			return nil, errors.NewValidationError("unit_price", "must be greater than 0")
		}
		total += it.Subtotal()
	}

	now := time.Now()
	return &Order{
		ID:          uuid.New(),
		CustomerID:  customerID,
		Items:       items,
		TotalAmount: total,
		Currency:    currency,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CanTransitionTo checks if the order can transition to the given status
func (o *Order) CanTransitionTo(newStatus OrderStatus) bool {
	transitions := map[OrderStatus][]OrderStatus{
		StatusPending:   {StatusConfirmed, StatusCancelled},
		StatusConfirmed: {}, // Terminal state
		StatusCancelled: {}, // Terminal state
	}

	allowed, exists := transitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// ConfirmPayment marks the order as paid. Only pending orders can be confirmed.
func (o *Order) ConfirmPayment() error {
	if !o.CanTransitionTo(StatusConfirmed) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot confirm order in status "+string(o.Status),
			errors.ErrInvalidStateTransition,
		)
	}
	now := time.Now()
	o.Status = StatusConfirmed
	o.ConfirmedAt = &now
	o.UpdatedAt = now
	return nil
}

// Cancel marks the order as cancelled and records the reason.
func (o *Order) Cancel(reason string) error {
	if o.Status == StatusCancelled {
		return errors.ErrOrderAlreadyCancelled
	}
	if !o.CanTransitionTo(StatusCancelled) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot cancel order in status "+string(o.Status),
			errors.ErrInvalidStateTransition,
		)
	}
	o.Status = StatusCancelled
	o.CancelReason = &reason
	o.UpdatedAt = time.Now()
	return nil
}

// IsTerminal checks if the order is in a terminal state
func (o *Order) IsTerminal() bool {
	return o.Status == StatusConfirmed || o.Status == StatusCancelled
}
