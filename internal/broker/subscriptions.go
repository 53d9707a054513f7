package broker

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

// SubscriptionID identifies one callback registration within an adapter
type SubscriptionID uint64

// SubscriptionManager is the per-adapter callback registry: symbol-keyed
// quote/bar handlers plus adapter-wide order and position handlers. Each
// adapter owns exactly one manager; there is no process-wide registry.
// Dispatch isolates callback panics so one failing subscriber cannot kill
// the shared push-channel reader.
type SubscriptionManager struct {
	mu        sync.RWMutex
	nextID    SubscriptionID
	quotes    map[string]map[SubscriptionID]QuoteHandler
	bars      map[string]map[SubscriptionID]BarHandler
	orders    map[SubscriptionID]OrderUpdateHandler
	positions map[SubscriptionID]PositionUpdateHandler
	logger    *logrus.Entry
}

// NewSubscriptionManager creates an empty manager for one adapter
func NewSubscriptionManager(broker models.BrokerID, logger *logrus.Logger) *SubscriptionManager {
	return &SubscriptionManager{
		quotes:    make(map[string]map[SubscriptionID]QuoteHandler),
		bars:      make(map[string]map[SubscriptionID]BarHandler),
		orders:    make(map[SubscriptionID]OrderUpdateHandler),
		positions: make(map[SubscriptionID]PositionUpdateHandler),
		logger: logger.WithFields(logrus.Fields{
			"component": "subscriptions",
			"broker":    broker,
		}),
	}
}

// AddQuoteHandler registers fn for every given symbol under one id.
func (m *SubscriptionManager) AddQuoteHandler(symbols []string, fn QuoteHandler) SubscriptionID {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	for _, symbol := range symbols {
		if m.quotes[symbol] == nil {
			m.quotes[symbol] = make(map[SubscriptionID]QuoteHandler)
		}
		m.quotes[symbol][id] = fn
	}
	return id
}

// AddBarHandler registers fn for every given symbol under one id.
func (m *SubscriptionManager) AddBarHandler(symbols []string, fn BarHandler) SubscriptionID {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	for _, symbol := range symbols {
		if m.bars[symbol] == nil {
			m.bars[symbol] = make(map[SubscriptionID]BarHandler)
		}
		m.bars[symbol][id] = fn
	}
	return id
}

// AddOrderHandler registers an adapter-wide order update handler.
func (m *SubscriptionManager) AddOrderHandler(fn OrderUpdateHandler) SubscriptionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.orders[m.nextID] = fn
	return m.nextID
}

// AddPositionHandler registers an adapter-wide position update handler.
func (m *SubscriptionManager) AddPositionHandler(fn PositionUpdateHandler) SubscriptionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.positions[m.nextID] = fn
	return m.nextID
}

// RemoveSymbols drops all quote and bar registrations for the given symbols.
func (m *SubscriptionManager) RemoveSymbols(symbols []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, symbol := range symbols {
		delete(m.quotes, symbol)
		delete(m.bars, symbol)
	}
}

// Remove drops every registration made under the given id.
func (m *SubscriptionManager) Remove(id SubscriptionID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for symbol, handlers := range m.quotes {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(m.quotes, symbol)
		}
	}
	for symbol, handlers := range m.bars {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(m.bars, symbol)
		}
	}
	delete(m.orders, id)
	delete(m.positions, id)
}

// Clear drops every registration.
func (m *SubscriptionManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes = make(map[string]map[SubscriptionID]QuoteHandler)
	m.bars = make(map[string]map[SubscriptionID]BarHandler)
	m.orders = make(map[SubscriptionID]OrderUpdateHandler)
	m.positions = make(map[SubscriptionID]PositionUpdateHandler)
}

// QuoteSymbols returns the symbols with at least one quote subscriber.
func (m *SubscriptionManager) QuoteSymbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	symbols := make([]string, 0, len(m.quotes))
	for symbol := range m.quotes {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// BarSymbols returns the symbols with at least one bar subscriber.
func (m *SubscriptionManager) BarSymbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	symbols := make([]string, 0, len(m.bars))
	for symbol := range m.bars {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// HasMarketData reports whether any quote or bar subscription is active.
// Adapters use it to decide when the vendor push channel can be torn down.
func (m *SubscriptionManager) HasMarketData() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.quotes) > 0 || len(m.bars) > 0
}

// DispatchQuote fans a quote out to every handler registered for its symbol.
func (m *SubscriptionManager) DispatchQuote(quote *models.Quote) {
	m.mu.RLock()
	handlers := make([]QuoteHandler, 0, len(m.quotes[quote.Symbol]))
	for _, fn := range m.quotes[quote.Symbol] {
		handlers = append(handlers, fn)
	}
	m.mu.RUnlock()

	for _, fn := range handlers {
		m.safeCall(func() { fn(quote) })
	}
}

// DispatchBar fans a bar out to every handler registered for its symbol.
func (m *SubscriptionManager) DispatchBar(bar *models.Bar) {
	m.mu.RLock()
	handlers := make([]BarHandler, 0, len(m.bars[bar.Symbol]))
	for _, fn := range m.bars[bar.Symbol] {
		handlers = append(handlers, fn)
	}
	m.mu.RUnlock()

	for _, fn := range handlers {
		m.safeCall(func() { fn(bar) })
	}
}

// DispatchOrderUpdate fans an order update out to every order handler.
func (m *SubscriptionManager) DispatchOrderUpdate(update *models.OrderUpdate) {
	m.mu.RLock()
	handlers := make([]OrderUpdateHandler, 0, len(m.orders))
	for _, fn := range m.orders {
		handlers = append(handlers, fn)
	}
	m.mu.RUnlock()

	for _, fn := range handlers {
		m.safeCall(func() { fn(update) })
	}
}

// DispatchPositionUpdate fans a position update out to every position handler.
func (m *SubscriptionManager) DispatchPositionUpdate(update *models.PositionUpdate) {
	m.mu.RLock()
	handlers := make([]PositionUpdateHandler, 0, len(m.positions))
	for _, fn := range m.positions {
		handlers = append(handlers, fn)
	}
	m.mu.RUnlock()

	for _, fn := range handlers {
		m.safeCall(func() { fn(update) })
	}
}

// safeCall runs one callback, recovering panics so the push-channel reader
// and the remaining subscribers keep going.
func (m *SubscriptionManager) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.WithField("panic", r).Error("Subscription callback panicked")
		}
	}()
	fn()
}
