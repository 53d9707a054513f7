package routing

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradoverse/broker-gateway/internal/broker"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

// stubAdapter satisfies broker.Adapter for selection tests; only ID and
// IsConnected are ever called.
type stubAdapter struct {
	broker.Adapter
	id        models.BrokerID
	connected bool
}

func (s *stubAdapter) ID() models.BrokerID { return s.id }
func (s *stubAdapter) IsConnected() bool   { return s.connected }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type engineFixture struct {
	engine   *DecisionEngine
	registry *broker.Registry
	health   *broker.HealthTracker
}

func newEngineFixture(t *testing.T, brokers ...*stubAdapter) *engineFixture {
	t.Helper()
	logger := quietLogger()
	registry := broker.NewRegistry(logger)
	health := broker.NewHealthTracker(logger)
	for _, b := range brokers {
		require.NoError(t, registry.Register(b))
		health.Track(b.id)
	}
	return &engineFixture{
		engine:   NewDecisionEngine(logger, NewCapabilityRegistry(), registry, health),
		registry: registry,
		health:   health,
	}
}

func TestSelectBrokerNoBrokersConnected(t *testing.T) {
	f := newEngineFixture(t,
		&stubAdapter{id: models.BrokerAlpaca, connected: false},
		&stubAdapter{id: models.BrokerBinance, connected: false},
	)

	_, err := f.engine.SelectBroker(models.AssetClassUSEquity, models.OrderTypeMarket, models.DefaultRoutingPreferences())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNoBrokerAvailable))
	assert.False(t, errors.Is(err, models.ErrNoCapableBroker))
}

func TestSelectBrokerEmptyRegistry(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.SelectBroker(models.AssetClassCrypto, models.OrderTypeMarket, models.DefaultRoutingPreferences())
	assert.True(t, errors.Is(err, models.ErrNoBrokerAvailable))
}

func TestSelectBrokerNoCapableBroker(t *testing.T) {
	// Binance is connected but only trades crypto
	f := newEngineFixture(t, &stubAdapter{id: models.BrokerBinance, connected: true})

	_, err := f.engine.SelectBroker(models.AssetClassForex, models.OrderTypeMarket, models.DefaultRoutingPreferences())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNoCapableBroker))
	assert.False(t, errors.Is(err, models.ErrNoBrokerAvailable))
}

func TestSelectBrokerExplicitPreference(t *testing.T) {
	f := newEngineFixture(t,
		&stubAdapter{id: models.BrokerAlpaca, connected: true},
		&stubAdapter{id: models.BrokerBinance, connected: true},
	)

	prefs := models.DefaultRoutingPreferences()
	prefs.PreferredBrokers = map[models.AssetClass]models.BrokerID{
		models.AssetClassCrypto: models.BrokerAlpaca,
	}

	d, err := f.engine.SelectBroker(models.AssetClassCrypto, models.OrderTypeMarket, prefs)
	require.NoError(t, err)
	assert.Equal(t, models.BrokerAlpaca, d.SelectedBroker)
	assert.Equal(t, models.ReasonExplicitPreference, d.Reason)
	assert.Equal(t, models.ConfidenceExplicitPreference, d.Confidence)
}

func TestSelectBrokerPreferenceIgnoredWhenDisconnected(t *testing.T) {
	f := newEngineFixture(t,
		&stubAdapter{id: models.BrokerAlpaca, connected: false},
		&stubAdapter{id: models.BrokerBinance, connected: true},
	)

	prefs := models.DefaultRoutingPreferences()
	prefs.PreferredBrokers = map[models.AssetClass]models.BrokerID{
		models.AssetClassCrypto: models.BrokerAlpaca,
	}

	d, err := f.engine.SelectBroker(models.AssetClassCrypto, models.OrderTypeMarket, prefs)
	require.NoError(t, err)
	assert.Equal(t, models.BrokerBinance, d.SelectedBroker)
	assert.Equal(t, models.ReasonPriorityRanking, d.Reason)
	assert.Equal(t, models.ConfidencePriorityRanking, d.Confidence)
}

func TestSelectBrokerPriorityOrder(t *testing.T) {
	// Both connected and healthy; the crypto table ranks Binance first
	f := newEngineFixture(t,
		&stubAdapter{id: models.BrokerAlpaca, connected: true},
		&stubAdapter{id: models.BrokerBinance, connected: true},
	)

	d, err := f.engine.SelectBroker(models.AssetClassCrypto, models.OrderTypeMarket, models.DefaultRoutingPreferences())
	require.NoError(t, err)
	assert.Equal(t, models.BrokerBinance, d.SelectedBroker)
	assert.Equal(t, models.ConfidencePriorityRanking, d.Confidence)
	assert.Contains(t, d.Alternatives, models.BrokerAlpaca)
}

func TestSelectBrokerSkipsUnhealthy(t *testing.T) {
	f := newEngineFixture(t,
		&stubAdapter{id: models.BrokerAlpaca, connected: true},
		&stubAdapter{id: models.BrokerBinance, connected: true},
	)
	f.health.RecordFailure(models.BrokerBinance, models.ErrConnection)

	d, err := f.engine.SelectBroker(models.AssetClassCrypto, models.OrderTypeMarket, models.DefaultRoutingPreferences())
	require.NoError(t, err)
	assert.Equal(t, models.BrokerAlpaca, d.SelectedBroker)
	assert.Equal(t, models.ReasonPriorityRanking, d.Reason)
}

func TestSelectBrokerRejectsLoneUnhealthyBroker(t *testing.T) {
	// The only broker for the class is unhealthy; even the last-resort
	// fallback must not route to it
	f := newEngineFixture(t, &stubAdapter{id: models.BrokerBinance, connected: true})
	f.health.RecordFailure(models.BrokerBinance, models.ErrConnection)

	_, err := f.engine.SelectBroker(models.AssetClassCrypto, models.OrderTypeMarket, models.DefaultRoutingPreferences())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrNoCapableBroker))
}

func TestSelectBrokerPreferenceIgnoredWhenUnhealthy(t *testing.T) {
	f := newEngineFixture(t,
		&stubAdapter{id: models.BrokerAlpaca, connected: true},
		&stubAdapter{id: models.BrokerBinance, connected: true},
	)
	f.health.RecordFailure(models.BrokerAlpaca, models.ErrConnection)

	prefs := models.DefaultRoutingPreferences()
	prefs.PreferredBrokers = map[models.AssetClass]models.BrokerID{
		models.AssetClassCrypto: models.BrokerAlpaca,
	}

	d, err := f.engine.SelectBroker(models.AssetClassCrypto, models.OrderTypeMarket, prefs)
	require.NoError(t, err)
	assert.Equal(t, models.BrokerBinance, d.SelectedBroker)
	assert.Equal(t, models.ReasonPriorityRanking, d.Reason)
	assert.NotContains(t, d.Alternatives, models.BrokerAlpaca)
}

func TestSelectBrokerFallbackDisabled(t *testing.T) {
	f := newEngineFixture(t, &stubAdapter{id: models.BrokerBinance, connected: true})
	f.health.RecordFailure(models.BrokerBinance, models.ErrConnection)

	prefs := models.DefaultRoutingPreferences()
	prefs.AllowFallback = false

	_, err := f.engine.SelectBroker(models.AssetClassCrypto, models.OrderTypeMarket, prefs)
	assert.True(t, errors.Is(err, models.ErrNoCapableBroker))
}

func TestSelectBrokerEquityAndCryptoScenario(t *testing.T) {
	classifier := NewAssetClassifier()
	f := newEngineFixture(t,
		&stubAdapter{id: models.BrokerAlpaca, connected: true},
		&stubAdapter{id: models.BrokerBinance, connected: true},
	)
	prefs := models.DefaultRoutingPreferences()

	equity, err := f.engine.SelectBroker(classifier.Classify("AAPL"), models.OrderTypeMarket, prefs)
	require.NoError(t, err)
	assert.Equal(t, models.BrokerAlpaca, equity.SelectedBroker)

	crypto, err := f.engine.SelectBroker(classifier.Classify("ETH-USD"), models.OrderTypeMarket, prefs)
	require.NoError(t, err)
	assert.Equal(t, models.BrokerBinance, crypto.SelectedBroker)
}

func TestSelectBrokerRejectsUnknownClass(t *testing.T) {
	f := newEngineFixture(t, &stubAdapter{id: models.BrokerAlpaca, connected: true})

	_, err := f.engine.SelectBroker(models.AssetClass("COMMODITY"), models.OrderTypeMarket, models.DefaultRoutingPreferences())
	assert.True(t, errors.Is(err, models.ErrInvalidOrder))
}

func TestAlternativesExcludeSelected(t *testing.T) {
	f := newEngineFixture(t,
		&stubAdapter{id: models.BrokerAlpaca, connected: true},
		&stubAdapter{id: models.BrokerBinance, connected: true},
		&stubAdapter{id: models.BrokerSchwab, connected: false},
	)

	alts := f.engine.Alternatives(models.AssetClassCrypto, "", models.BrokerBinance)
	assert.Equal(t, []models.BrokerID{models.BrokerAlpaca}, alts)
	assert.NotContains(t, alts, models.BrokerBinance)
}

func TestAlternativesExcludeUnhealthy(t *testing.T) {
	f := newEngineFixture(t,
		&stubAdapter{id: models.BrokerAlpaca, connected: true},
		&stubAdapter{id: models.BrokerBinance, connected: true},
	)
	f.health.RecordFailure(models.BrokerAlpaca, models.ErrConnection)

	alts := f.engine.Alternatives(models.AssetClassCrypto, "", models.BrokerBinance)
	assert.Empty(t, alts)
}
