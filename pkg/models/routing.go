package models

import "time"

// Routing decision confidence levels and reasons, fixed by the decision
// engine's selection path.
const (
	ConfidenceExplicitPreference = 95
	ConfidencePriorityRanking    = 90
	ConfidenceFallback           = 70

	ReasonExplicitPreference = "explicit preference"
	ReasonPriorityRanking    = "priority ranking"
	ReasonFallback           = "fallback"
)

// RoutingPreferences carries caller routing intent for one request
type RoutingPreferences struct {
	// PreferredBrokers pins an explicit venue per asset class.
	PreferredBrokers map[AssetClass]BrokerID `json:"preferred_brokers,omitempty"`
	// SmartRouting enables the per-asset-class priority tables.
	SmartRouting bool `json:"smart_routing"`
	// AllowFallback permits both the decision engine's last-resort pick and
	// the router's single retry hop against an alternative broker.
	AllowFallback bool `json:"allow_fallback"`
}

// DefaultRoutingPreferences enables smart routing and fallback with no
// explicit per-class pins.
func DefaultRoutingPreferences() RoutingPreferences {
	return RoutingPreferences{
		SmartRouting:  true,
		AllowFallback: true,
	}
}

// RoutingDecision is the outcome of broker selection for one request.
// Computed fresh per request, never cached across orders.
type RoutingDecision struct {
	SelectedBroker  BrokerID      `json:"selected_broker"`
	AssetClass      AssetClass    `json:"asset_class"`
	Reason          string        `json:"reason"`
	Confidence      int           `json:"confidence"`
	Alternatives    []BrokerID    `json:"alternatives"`
	LatencyEstimate time.Duration `json:"latency_estimate_ns,omitempty"`
	DecidedAt       time.Time     `json:"decided_at"`
}

// RouteResult bundles the order outcome with the decision that produced it
type RouteResult struct {
	Order           *OrderResponse   `json:"order"`
	Decision        *RoutingDecision `json:"decision"`
	ExecutionTimeMs int64            `json:"execution_time_ms"`
}
