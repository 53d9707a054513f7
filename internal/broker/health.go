package broker

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

// TransitionHook is called whenever a broker's healthy flag flips. The hook
// runs outside the tracker lock and receives a copy of the record.
type TransitionHook func(models.BrokerHealth)

// HealthTracker owns the per-broker health records, the one piece of
// cross-request mutable shared state in the core. All updates are applied
// atomically per broker under the tracker lock.
type HealthTracker struct {
	mu      sync.RWMutex
	records map[models.BrokerID]*models.BrokerHealth
	hook    TransitionHook
	logger  *logrus.Entry
}

// NewHealthTracker creates an empty tracker
func NewHealthTracker(logger *logrus.Logger) *HealthTracker {
	return &HealthTracker{
		records: make(map[models.BrokerID]*models.BrokerHealth),
		logger:  logger.WithField("component", "health-tracker"),
	}
}

// SetTransitionHook registers a callback fired on healthy/unhealthy flips.
func (t *HealthTracker) SetTransitionHook(hook TransitionHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hook = hook
}

// Track creates the health record for a newly registered broker. A freshly
// registered broker starts connected and healthy so routing can use it
// before the first probe completes.
func (t *HealthTracker) Track(broker models.BrokerID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.records[broker]; exists {
		return
	}
	t.records[broker] = &models.BrokerHealth{
		Broker:      broker,
		IsConnected: true,
		IsHealthy:   true,
		LastChecked: time.Now(),
	}
}

// Untrack removes the record when a broker is unregistered.
func (t *HealthTracker) Untrack(broker models.BrokerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, broker)
}

// RecordSuccess marks a broker healthy after a successful adapter call.
func (t *HealthTracker) RecordSuccess(broker models.BrokerID, latency time.Duration) {
	t.mu.Lock()
	rec, exists := t.records[broker]
	if !exists {
		t.mu.Unlock()
		return
	}

	flipped := !rec.IsHealthy
	now := time.Now()
	rec.IsHealthy = true
	rec.IsConnected = true
	rec.ConsecutiveFailures = 0
	rec.LastResponseTime = latency
	rec.LastChecked = now
	rec.LastSuccess = now
	rec.LastError = ""
	rec.TotalCalls++
	rec.ErrorRate = float64(rec.TotalFailures) / float64(rec.TotalCalls)

	snapshot := *rec
	hook := t.hook
	t.mu.Unlock()

	if flipped {
		t.logger.WithFields(logrus.Fields{
			"broker":  broker,
			"latency": latency.Milliseconds(),
		}).Info("Broker recovered")
		if hook != nil {
			hook(snapshot)
		}
	}
}

// RecordFailure marks a broker unhealthy after a failed adapter call.
func (t *HealthTracker) RecordFailure(broker models.BrokerID, err error) {
	t.mu.Lock()
	rec, exists := t.records[broker]
	if !exists {
		t.mu.Unlock()
		return
	}

	flipped := rec.IsHealthy
	rec.IsHealthy = false
	rec.ConsecutiveFailures++
	rec.LastChecked = time.Now()
	rec.TotalCalls++
	rec.TotalFailures++
	rec.ErrorRate = float64(rec.TotalFailures) / float64(rec.TotalCalls)
	if err != nil {
		rec.LastError = err.Error()
	}

	snapshot := *rec
	hook := t.hook
	t.mu.Unlock()

	if flipped {
		t.logger.WithFields(logrus.Fields{
			"broker": broker,
			"error":  snapshot.LastError,
		}).Warn("Broker marked unhealthy")
		if hook != nil {
			hook(snapshot)
		}
	}
}

// SetConnected updates the connectivity flag without touching health counters.
func (t *HealthTracker) SetConnected(broker models.BrokerID, connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, exists := t.records[broker]; exists {
		rec.IsConnected = connected
		rec.LastChecked = time.Now()
	}
}

// IsHealthy reports the healthy flag; unknown brokers are not healthy.
func (t *HealthTracker) IsHealthy(broker models.BrokerID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, exists := t.records[broker]
	return exists && rec.IsHealthy
}

// Get returns a copy of one broker's record.
func (t *HealthTracker) Get(broker models.BrokerID) (models.BrokerHealth, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, exists := t.records[broker]
	if !exists {
		return models.BrokerHealth{}, false
	}
	return *rec, true
}

// All returns copies of every tracked record.
func (t *HealthTracker) All() []models.BrokerHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.BrokerHealth, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, *rec)
	}
	return out
}
