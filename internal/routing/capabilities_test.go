package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

func TestCapabilityRegistryDefaults(t *testing.T) {
	reg := NewCapabilityRegistry()

	alpaca, ok := reg.Capabilities(models.BrokerAlpaca)
	require.True(t, ok)
	assert.True(t, alpaca.SupportsAssetClass(models.AssetClassUSEquity))
	assert.True(t, alpaca.SupportsAssetClass(models.AssetClassCrypto))
	assert.False(t, alpaca.SupportsAssetClass(models.AssetClassForex))

	binance, ok := reg.Capabilities(models.BrokerBinance)
	require.True(t, ok)
	assert.True(t, binance.SupportsAssetClass(models.AssetClassCrypto))
	assert.False(t, binance.SupportsAssetClass(models.AssetClassUSEquity))
	assert.False(t, binance.SupportsOrderType(models.OrderTypeTrailingStop))

	_, ok = reg.Capabilities(models.BrokerID("ROBINHOOD"))
	assert.False(t, ok)
}

func TestPriorityTables(t *testing.T) {
	reg := NewCapabilityRegistry()

	assert.Equal(t,
		[]models.BrokerID{models.BrokerAlpaca, models.BrokerSchwab, models.BrokerInteractiveBrokers},
		reg.PriorityFor(models.AssetClassUSEquity))
	assert.Equal(t,
		[]models.BrokerID{models.BrokerBinance, models.BrokerCoinbase, models.BrokerAlpaca},
		reg.PriorityFor(models.AssetClassCrypto))
	assert.Equal(t,
		[]models.BrokerID{models.BrokerInteractiveBrokers},
		reg.PriorityFor(models.AssetClassForex))
}

func TestApplyPriorities(t *testing.T) {
	reg := NewCapabilityRegistry()

	reg.ApplyPriorities(map[models.AssetClass][]models.BrokerID{
		models.AssetClassCrypto: {models.BrokerCoinbase, models.BrokerBinance},
	})

	assert.Equal(t,
		[]models.BrokerID{models.BrokerCoinbase, models.BrokerBinance},
		reg.PriorityFor(models.AssetClassCrypto))
	// Untouched classes keep their built-in ranking
	assert.Equal(t,
		[]models.BrokerID{models.BrokerAlpaca, models.BrokerSchwab, models.BrokerInteractiveBrokers},
		reg.PriorityFor(models.AssetClassUSEquity))
}

func TestBrokersForIncludesOffTableBrokers(t *testing.T) {
	reg := NewCapabilityRegistry()

	crypto := reg.BrokersFor(models.AssetClassCrypto)
	// Ranked brokers lead, capable off-table brokers follow
	assert.Equal(t, models.BrokerBinance, crypto[0])
	assert.Contains(t, crypto, models.BrokerInteractiveBrokers)
	assert.Contains(t, crypto, models.BrokerPaper)
	assert.NotContains(t, crypto, models.BrokerSchwab)
}
