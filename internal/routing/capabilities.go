package routing

import (
	"sync"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

// CapabilityRegistry holds the static per-venue capability records and the
// per-asset-class priority tables. Priorities may be replaced once at startup
// from the routing overrides file; capability records never change.
type CapabilityRegistry struct {
	mu         sync.RWMutex
	caps       map[models.BrokerID]models.BrokerCapabilities
	priorities map[models.AssetClass][]models.BrokerID
}

// NewCapabilityRegistry creates a registry with the built-in capability
// records and priority tables
func NewCapabilityRegistry() *CapabilityRegistry {
	r := &CapabilityRegistry{
		caps:       make(map[models.BrokerID]models.BrokerCapabilities),
		priorities: defaultPriorities(),
	}
	for _, c := range models.AllDefaultCapabilities() {
		r.caps[c.Broker] = c
	}
	return r
}

// ApplyPriorities replaces the priority table for each listed asset class.
// Classes absent from the overrides keep their built-in ranking.
func (r *CapabilityRegistry) ApplyPriorities(overrides map[models.AssetClass][]models.BrokerID) {
	if len(overrides) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for class, brokers := range overrides {
		ranked := make([]models.BrokerID, len(brokers))
		copy(ranked, brokers)
		r.priorities[class] = ranked
	}
}

// Capabilities returns the capability record for a broker
func (r *CapabilityRegistry) Capabilities(broker models.BrokerID) (models.BrokerCapabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[broker]
	return c, ok
}

// All returns every known capability record
func (r *CapabilityRegistry) All() []models.BrokerCapabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.BrokerCapabilities, 0, len(r.caps))
	for _, c := range r.caps {
		out = append(out, c)
	}
	return out
}

// PriorityFor returns the ranked broker list for an asset class, best first
func (r *CapabilityRegistry) PriorityFor(class models.AssetClass) []models.BrokerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ranked := r.priorities[class]
	out := make([]models.BrokerID, len(ranked))
	copy(out, ranked)
	return out
}

// Supports reports whether a broker can trade the given asset class
func (r *CapabilityRegistry) Supports(broker models.BrokerID, class models.AssetClass) bool {
	c, ok := r.Capabilities(broker)
	return ok && c.SupportsAssetClass(class)
}

// BrokersFor returns every broker capable of trading the asset class,
// priority-ranked brokers first, remaining capable brokers after.
func (r *CapabilityRegistry) BrokersFor(class models.AssetClass) []models.BrokerID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[models.BrokerID]bool)
	var out []models.BrokerID
	for _, b := range r.priorities[class] {
		if c, ok := r.caps[b]; ok && c.SupportsAssetClass(class) {
			out = append(out, b)
			seen[b] = true
		}
	}
	for _, b := range models.AllBrokerIDs() {
		if seen[b] {
			continue
		}
		if rec, ok := r.caps[b]; ok && rec.SupportsAssetClass(class) {
			out = append(out, b)
		}
	}
	return out
}

func defaultPriorities() map[models.AssetClass][]models.BrokerID {
	return map[models.AssetClass][]models.BrokerID{
		models.AssetClassUSEquity: {models.BrokerAlpaca, models.BrokerSchwab, models.BrokerInteractiveBrokers},
		models.AssetClassCrypto:   {models.BrokerBinance, models.BrokerCoinbase, models.BrokerAlpaca},
		models.AssetClassForex:    {models.BrokerInteractiveBrokers},
		models.AssetClassOptions:  {models.BrokerInteractiveBrokers, models.BrokerSchwab, models.BrokerAlpaca},
		models.AssetClassFutures:  {models.BrokerInteractiveBrokers},
	}
}
