package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

// RoutingOverrides is the optional YAML file replacing the built-in
// per-asset-class broker priority tables and default preferences.
type RoutingOverrides struct {
	// Priorities maps an asset class to a ranked broker list, best first.
	Priorities map[models.AssetClass][]models.BrokerID `yaml:"priorities"`
	// Preferences overrides the default routing preferences applied when a
	// caller supplies none.
	Preferences *struct {
		SmartRouting     bool                                  `yaml:"smart_routing"`
		AllowFallback    bool                                  `yaml:"allow_fallback"`
		PreferredBrokers map[models.AssetClass]models.BrokerID `yaml:"preferred_brokers"`
	} `yaml:"preferences"`
}

// LoadRoutingOverrides parses the routing override file. An empty path means
// no overrides; the built-in tables apply.
func LoadRoutingOverrides(path string) (*RoutingOverrides, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routing overrides: %w", err)
	}

	var overrides RoutingOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse routing overrides: %w", err)
	}

	for class, brokers := range overrides.Priorities {
		if !class.Valid() {
			return nil, fmt.Errorf("routing overrides: unknown asset class %q", class)
		}
		if len(brokers) == 0 {
			return nil, fmt.Errorf("routing overrides: empty priority list for %s", class)
		}
	}

	return &overrides, nil
}

// DefaultPreferences converts the override block into RoutingPreferences,
// falling back to the built-in defaults when absent.
func (r *RoutingOverrides) DefaultPreferences() models.RoutingPreferences {
	if r == nil || r.Preferences == nil {
		return models.DefaultRoutingPreferences()
	}
	return models.RoutingPreferences{
		PreferredBrokers: r.Preferences.PreferredBrokers,
		SmartRouting:     r.Preferences.SmartRouting,
		AllowFallback:    r.Preferences.AllowFallback,
	}
}
