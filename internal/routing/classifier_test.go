package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

func TestClassifySymbol(t *testing.T) {
	classifier := NewAssetClassifier()

	tests := []struct {
		symbol string
		want   models.AssetClass
	}{
		// Crypto in every accepted shape
		{"BTC", models.AssetClassCrypto},
		{"BTCUSD", models.AssetClassCrypto},
		{"BTCUSDT", models.AssetClassCrypto},
		{"BTC-USD", models.AssetClassCrypto},
		{"BTC_USD", models.AssetClassCrypto},
		{"ETH/USD", models.AssetClassCrypto},
		{"SOL/USDT", models.AssetClassCrypto},
		{"DOGEUSDT", models.AssetClassCrypto},

		// Forex pairs, concatenated and slashed
		{"EURUSD", models.AssetClassForex},
		{"EUR/USD", models.AssetClassForex},
		{"GBPJPY", models.AssetClassForex},
		{"USD/JPY", models.AssetClassForex},

		// OCC contracts and verbose option symbols
		{"AAPL240119C00150000", models.AssetClassOptions},
		{"SPY261218P00410000", models.AssetClassOptions},
		{"TSLA CALL 250", models.AssetClassOptions},
		{"SPY PUT 410", models.AssetClassOptions},

		// Futures month codes
		{"ESZ5", models.AssetClassFutures},
		{"CLF26", models.AssetClassFutures},
		{"NQH4", models.AssetClassFutures},
		{"GCM25", models.AssetClassFutures},

		// Everything else is an equity
		{"AAPL", models.AssetClassUSEquity},
		{"MSFT", models.AssetClassUSEquity},
		{"BRK.B", models.AssetClassUSEquity},
		{"F", models.AssetClassUSEquity},
		{"GOOGL", models.AssetClassUSEquity},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			assert.Equal(t, tt.want, classifier.Classify(tt.symbol))
		})
	}
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	classifier := NewAssetClassifier()

	variants := [][]string{
		{"BTC-USD", "btc-usd", "Btc-Usd"},
		{"EURUSD", "eurusd", "EurUsd"},
		{"AAPL", "aapl"},
		{"ESZ5", "esz5"},
	}

	for _, group := range variants {
		want := classifier.Classify(group[0])
		for _, symbol := range group[1:] {
			assert.Equal(t, want, classifier.Classify(symbol),
				"case variant %q should classify like %q", symbol, group[0])
		}
	}
}

func TestClassifySeparatorsAreEquivalent(t *testing.T) {
	classifier := NewAssetClassifier()

	assert.Equal(t, classifier.Classify("BTC-USD"), classifier.Classify("BTC_USD"))
	assert.Equal(t, classifier.Classify("EUR-USD"), classifier.Classify("EURUSD"))
}

func TestClassifyUnknownQuoteCurrencyIsNotCrypto(t *testing.T) {
	classifier := NewAssetClassifier()

	// A crypto base against an unlisted quote only matches via the slash form
	assert.Equal(t, models.AssetClassCrypto, classifier.Classify("BTC/EUR"))
	assert.Equal(t, models.AssetClassUSEquity, classifier.Classify("BTCEUR"))
}
