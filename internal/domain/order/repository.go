package order

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for order persistence
type Repository interface {
	// Create creates a new order with its items
	Create(ctx context.Context, o *Order) error

	// FindByID retrieves an order (with items) by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// Save persists status changes to an existing order
	Save(ctx context.Context, o *Order) error
}
