package routing

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/internal/broker"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

// DecisionEngine selects the executing broker for a request. Each call
// computes a fresh decision from live registry and health state; decisions
// are never cached across requests.
type DecisionEngine struct {
	logger   *logrus.Entry
	caps     *CapabilityRegistry
	registry *broker.Registry
	health   *broker.HealthTracker
}

// NewDecisionEngine creates a decision engine
func NewDecisionEngine(logger *logrus.Logger, caps *CapabilityRegistry, registry *broker.Registry, health *broker.HealthTracker) *DecisionEngine {
	return &DecisionEngine{
		logger:   logger.WithField("component", "decision_engine"),
		caps:     caps,
		registry: registry,
		health:   health,
	}
}

// SelectBroker picks the venue for one request. Selection order: the
// caller's explicit per-class preference, then the priority table walk,
// then a last-resort fallback over any registered broker. Every path
// requires the candidate to be connected, capable and healthy. Returns
// ErrNoBrokerAvailable when nothing is connected at all,
// ErrNoCapableBroker when connected brokers exist but no healthy one can
// trade the class.
func (e *DecisionEngine) SelectBroker(class models.AssetClass, orderType models.OrderType, prefs models.RoutingPreferences) (*models.RoutingDecision, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("unknown asset class %q: %w", class, models.ErrInvalidOrder)
	}

	if e.connectedCount() == 0 {
		return nil, fmt.Errorf("no brokers connected: %w", models.ErrNoBrokerAvailable)
	}

	if preferred, ok := prefs.PreferredBrokers[class]; ok {
		if e.isEligible(preferred, class, orderType) {
			return e.decision(preferred, class, models.ReasonExplicitPreference, models.ConfidenceExplicitPreference), nil
		}
		e.logger.WithFields(logrus.Fields{
			"broker":      preferred,
			"asset_class": class,
		}).Debug("Preferred broker unavailable, continuing selection")
	}

	if prefs.SmartRouting {
		for _, b := range e.caps.PriorityFor(class) {
			if e.isEligible(b, class, orderType) {
				return e.decision(b, class, models.ReasonPriorityRanking, models.ConfidencePriorityRanking), nil
			}
		}
	}

	if prefs.AllowFallback {
		for _, b := range e.registry.IDs() {
			if e.isEligible(b, class, orderType) {
				return e.decision(b, class, models.ReasonFallback, models.ConfidenceFallback), nil
			}
		}
	}

	return nil, fmt.Errorf("no healthy connected broker supports %s: %w", class, models.ErrNoCapableBroker)
}

// Alternatives lists connected healthy capable brokers other than the
// excluded one, priority-table order first.
func (e *DecisionEngine) Alternatives(class models.AssetClass, orderType models.OrderType, exclude models.BrokerID) []models.BrokerID {
	seen := map[models.BrokerID]bool{exclude: true}
	var out []models.BrokerID

	scan := func(brokers []models.BrokerID) {
		for _, b := range brokers {
			if seen[b] {
				continue
			}
			seen[b] = true
			if e.isEligible(b, class, orderType) {
				out = append(out, b)
			}
		}
	}
	scan(e.caps.PriorityFor(class))
	scan(e.registry.IDs())
	return out
}

func (e *DecisionEngine) decision(selected models.BrokerID, class models.AssetClass, reason string, confidence int) *models.RoutingDecision {
	d := &models.RoutingDecision{
		SelectedBroker: selected,
		AssetClass:     class,
		Reason:         reason,
		Confidence:     confidence,
		Alternatives:   e.Alternatives(class, "", selected),
		DecidedAt:      time.Now().UTC(),
	}
	if h, ok := e.health.Get(selected); ok {
		d.LatencyEstimate = h.LastResponseTime
	}

	e.logger.WithFields(logrus.Fields{
		"broker":      selected,
		"asset_class": class,
		"reason":      reason,
		"confidence":  confidence,
	}).Debug("Broker selected")
	return d
}

func (e *DecisionEngine) connectedCount() int {
	n := 0
	for _, a := range e.registry.List() {
		if a.IsConnected() {
			n++
		}
	}
	return n
}

func (e *DecisionEngine) isConnected(b models.BrokerID) bool {
	a, ok := e.registry.Get(b)
	return ok && a.IsConnected()
}

// isEligible is the selection gate every path shares: the broker must be
// connected, healthy and capable of the class and order type.
func (e *DecisionEngine) isEligible(b models.BrokerID, class models.AssetClass, orderType models.OrderType) bool {
	return e.isConnected(b) && e.health.IsHealthy(b) && e.isCapable(b, class, orderType)
}

func (e *DecisionEngine) isCapable(b models.BrokerID, class models.AssetClass, orderType models.OrderType) bool {
	c, ok := e.caps.Capabilities(b)
	if !ok || !c.SupportsAssetClass(class) {
		return false
	}
	if orderType != "" && !c.SupportsOrderType(orderType) {
		return false
	}
	return true
}
