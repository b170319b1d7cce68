package testutil

import (
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mercadoartesano/orders/internal/domain/order"
	"github.com/mercadoartesano/orders/internal/infrastructure/observability"
)

// NewTestOrder builds a pending order with a single line item.
func NewTestOrder(customerID string, quantity int, unitPriceCents int64) *order.Order {
	o, err := order.NewOrder(customerID, []order.Item{
		{ProductID: uuid.New(), Quantity: quantity, UnitPrice: unitPriceCents},
	}, "EUR")
	if err != nil {
		panic(err)
	}
	return o
}

// NewTestMetrics builds a metrics set against a private registry so
// parallel tests don't collide on collector registration.
func NewTestMetrics() *observability.Metrics {
	return observability.NewMetrics("test", prometheus.NewRegistry())
}
