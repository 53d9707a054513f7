package broker

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

// Registry holds the live adapters keyed by broker identity. Registration
// order is preserved because the decision engine's last-resort pick walks
// brokers in the order they were registered.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.BrokerID]Adapter
	order    []models.BrokerID
	logger   *logrus.Entry
}

// NewRegistry creates an empty adapter registry
func NewRegistry(logger *logrus.Logger) *Registry {
	return &Registry{
		adapters: make(map[models.BrokerID]Adapter),
		logger:   logger.WithField("component", "broker-registry"),
	}
}

// Register adds a live adapter. Registering the same broker twice is an error.
func (r *Registry) Register(adapter Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := adapter.ID()
	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("broker %s already registered", id)
	}

	r.adapters[id] = adapter
	r.order = append(r.order, id)

	r.logger.WithField("broker", id).Info("Broker registered")
	return nil
}

// Unregister removes an adapter and returns it for teardown by the caller.
func (r *Registry) Unregister(id models.BrokerID) (Adapter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	adapter, exists := r.adapters[id]
	if !exists {
		return nil, false
	}

	delete(r.adapters, id)
	for i, b := range r.order {
		if b == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.logger.WithField("broker", id).Info("Broker unregistered")
	return adapter, true
}

// Get returns the live adapter for a broker, if registered.
func (r *Registry) Get(id models.BrokerID) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, exists := r.adapters[id]
	return adapter, exists
}

// IDs returns registered broker identities in registration order.
func (r *Registry) IDs() []models.BrokerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]models.BrokerID, len(r.order))
	copy(ids, r.order)
	return ids
}

// List returns registered adapters in registration order.
func (r *Registry) List() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapters := make([]Adapter, 0, len(r.order))
	for _, id := range r.order {
		adapters = append(adapters, r.adapters[id])
	}
	return adapters
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}
