package saga

import (
	"context"
	"time"
)

// Topics consumed by the orchestrator.
const (
	TopicInventoryReserved   = "inventory.reserved"
	TopicInventoryOutOfStock = "inventory.out_of_stock"
	TopicPaymentSucceeded    = "payment.succeeded"
	TopicPaymentFailed       = "payment.failed"
)

// Topics emitted by the orchestrator.
const (
	TopicOrderCreated     = "order.created.v1"
	TopicOrderCompleted   = "order.completed.v1"
	TopicOrderCancelled   = "order.cancelled.v1"
	TopicPaymentInitiate  = "payment.initiate"
	TopicPaymentRefund    = "payment.refund"
	TopicInventoryRelease = "inventory.release"
)

// EventBus is the outbound port onto the asynchronous message transport.
// Emissions are fire-and-forget from the saga's point of view: the bus
// guarantees neither ordering nor exactly-once delivery, so dedup keys
// and state guards remain the orchestrator's responsibility.
type EventBus interface {
	Emit(ctx context.Context, topic string, payload any) error
}

// --- Inbound events ---

type InventoryReservedEvent struct {
	OrderID       string `json:"orderId"`
	ReservationID string `json:"reservationId"`
	TotalAmount   int64  `json:"totalAmount"`
	CustomerID    string `json:"customerId"`
}

type InventoryOutOfStockEvent struct {
	OrderID string `json:"orderId"`
}

type PaymentSucceededEvent struct {
	OrderID         string `json:"orderId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type PaymentFailedEvent struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// --- Outbound events ---

type OrderItemPayload struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type OrderCreatedEvent struct {
	OrderID     string             `json:"orderId"`
	CustomerID  string             `json:"customerId"`
	Items       []OrderItemPayload `json:"items"`
	TotalAmount int64              `json:"totalAmount"`
	Timestamp   time.Time          `json:"timestamp"`
}

type PaymentInitiateEvent struct {
	OrderID    string    `json:"orderId"`
	Amount     int64     `json:"amount"`
	CustomerID string    `json:"customerId"`
	Timestamp  time.Time `json:"timestamp"`
}

type InventoryReleaseEvent struct {
	OrderID       string `json:"orderId"`
	ReservationID string `json:"reservationId"`
	Reason        string `json:"reason"`
}

type PaymentRefundEvent struct {
	OrderID         string `json:"orderId"`
	PaymentIntentID string `json:"paymentIntentId"`
	Reason          string `json:"reason"`
}

type OrderCompletedEvent struct {
	OrderID         string `json:"orderId"`
	PaymentIntentID string `json:"paymentIntentId"`
	Status          string `json:"status"`
}

type OrderCancelledEvent struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}
