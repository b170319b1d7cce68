package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mercadoartesano/orders/internal/domain/order"
)

// --- Order Repository Mock ---

// MockOrderRepository is a mock implementation of order.Repository.
type MockOrderRepository struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*order.Order

	CreateFunc   func(ctx context.Context, o *order.Order) error
	FindByIDFunc func(ctx context.Context, id uuid.UUID) (*order.Order, error)
	SaveFunc     func(ctx context.Context, o *order.Order) error
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[uuid.UUID]*order.Order),
	}
}

// AddOrder pre-populates the mock with an order.
func (m *MockOrderRepository) AddOrder(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	return nil
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return o, nil
}

func (m *MockOrderRepository) Save(ctx context.Context, o *order.Order) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	return nil
}

// GetOrderByID returns the stored order (test helper, no context needed).
func (m *MockOrderRepository) GetOrderByID(id uuid.UUID) *order.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

// --- Event Bus Mock ---

// Emission is one recorded bus publish.
type Emission struct {
	Topic   string
	Payload any
}

// RecordingBus is a mock saga.EventBus that records every emission.
type RecordingBus struct {
	mu        sync.Mutex
	emissions []Emission

	EmitFunc func(ctx context.Context, topic string, payload any) error
}

func NewRecordingBus() *RecordingBus {
	return &RecordingBus{}
}

func (b *RecordingBus) Emit(ctx context.Context, topic string, payload any) error {
	if b.EmitFunc != nil {
		if err := b.EmitFunc(ctx, topic, payload); err != nil {
			return err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emissions = append(b.emissions, Emission{Topic: topic, Payload: payload})
	return nil
}

// Emissions returns all recorded payloads for a topic, in order.
func (b *RecordingBus) Emissions(topic string) []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []any
	for _, e := range b.emissions {
		if e.Topic == topic {
			out = append(out, e.Payload)
		}
	}
	return out
}

// Count returns how many events were emitted on a topic.
func (b *RecordingBus) Count(topic string) int {
	return len(b.Emissions(topic))
}

// All returns every recorded emission, in order.
func (b *RecordingBus) All() []Emission {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Emission, len(b.emissions))
	copy(out, b.emissions)
	return out
}
