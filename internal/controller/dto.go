package controller

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercadoartesano/orders/internal/domain/order"
	"github.com/mercadoartesano/orders/internal/saga"
)

// --- Request DTOs ---

// OrderItemRequest is one line of a create-order request.
type OrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
	UnitPrice int64  `json:"unit_price" validate:"required,gt=0"`
}

// CreateOrderRequest holds the input for creating an order.
type CreateOrderRequest struct {
	CustomerID string             `json:"customer_id" validate:"required"`
	Currency   string             `json:"currency" validate:"required,len=3"`
	Items      []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// --- Response DTOs ---

// OrderItemResponse represents an order line in API responses.
type OrderItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// OrderResponse represents an order in API responses.
type OrderResponse struct {
	ID           string              `json:"id"`
	CustomerID   string              `json:"customer_id"`
	Items        []OrderItemResponse `json:"items"`
	TotalAmount  int64               `json:"total_amount"`
	Currency     string              `json:"currency"`
	Status       string              `json:"status"`
	CancelReason *string             `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	ConfirmedAt  *time.Time          `json:"confirmed_at,omitempty"`
}

// CreateOrderResponse is returned when a saga is accepted.
type CreateOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// SagaResponse represents a live saga context in API responses.
type SagaResponse struct {
	OrderID         string    `json:"order_id"`
	State           string    `json:"state"`
	ReservationID   string    `json:"reservation_id,omitempty"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromOrder converts a domain order to API response.
func FromOrder(o *order.Order) *OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemResponse{
			ProductID: it.ProductID.String(),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return &OrderResponse{
		ID:           o.ID.String(),
		CustomerID:   o.CustomerID,
		Items:        items,
		TotalAmount:  o.TotalAmount,
		Currency:     o.Currency,
		Status:       string(o.Status),
		CancelReason: o.CancelReason,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
		ConfirmedAt:  o.ConfirmedAt,
	}
}

// FromSnapshot converts a saga snapshot to API response.
func FromSnapshot(s saga.Snapshot) *SagaResponse {
	return &SagaResponse{
		OrderID:         s.OrderID.String(),
		State:           string(s.State),
		ReservationID:   s.ReservationID,
		PaymentIntentID: s.PaymentIntentID,
		LastError:       s.LastError,
		StartedAt:       s.StartedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

// toDomainItems converts request items to domain items. The ids are
// validated upstream, so parse failures cannot happen here.
func toDomainItems(items []OrderItemRequest) []order.Item {
	out := make([]order.Item, 0, len(items))
	for _, it := range items {
		pid, _ := uuid.Parse(it.ProductID)
		out = append(out, order.Item{
			ProductID: pid,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return out
}
