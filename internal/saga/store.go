package saga

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
	"github.com/mercadoartesano/orders/internal/domain/errors"
)

const lockStripes = 64

// Store is the in-memory table of live saga contexts, keyed by order id.
// All processing for one order is serialized through WithLock so that
// state transitions for that order are strictly sequential, even when
// the bus delivers events concurrently or a timeout races a late event.
//
// Contexts are ephemeral: an in-flight saga does not survive a process
// restart.
type Store struct {
	mu    sync.RWMutex
	sagas map[uuid.UUID]*Context

	// Striped per-order locks. Two distinct orders may share a stripe;
	// that only costs a little contention, never correctness.
	stripes [lockStripes]sync.Mutex
}

// NewStore creates an empty context store.
func NewStore() *Store {
	return &Store{sagas: make(map[uuid.UUID]*Context)}
}

func (s *Store) stripe(id uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(id[:])
	return &s.stripes[h.Sum32()%lockStripes]
}

// WithLock runs fn while holding the per-order lock. Every read-check-mutate
// sequence on a context must happen inside fn.
func (s *Store) WithLock(orderID uuid.UUID, fn func()) {
	l := s.stripe(orderID)
	l.Lock()
	defer l.Unlock()
	fn()
}

// Put registers a context. At most one context may exist per order.
func (s *Store) Put(c *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sagas[c.OrderID]; exists {
		return errors.ErrSagaAlreadyActive
	}
	s.sagas[c.OrderID] = c
	return nil
}

// Get returns the live context for an order, if any.
func (s *Store) Get(orderID uuid.UUID) (*Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.sagas[orderID]
	return c, ok
}

// Delete retires a context. Safe to call for an unknown order.
func (s *Store) Delete(orderID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sagas, orderID)
}

// Len returns the number of live sagas.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sagas)
}

// Snapshot returns a copy of the context for read-only inspection,
// taken under the per-order lock.
func (s *Store) Snapshot(orderID uuid.UUID) (Snapshot, bool) {
	var (
		snap  Snapshot
		found bool
	)
	s.WithLock(orderID, func() {
		if c, ok := s.Get(orderID); ok {
			snap = c.Snapshot()
			found = true
		}
	})
	return snap, found
}
