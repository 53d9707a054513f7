package routing

import (
	"regexp"
	"strings"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

var (
	// OCC-style contract: root, 6-digit yymmdd expiry, C or P, 8-digit strike.
	occPattern = regexp.MustCompile(`^[A-Z]{1,6}\d{6}[CP]\d{8}$`)
	// Futures contract: root, standard month code, 1-2 digit year.
	futuresPattern = regexp.MustCompile(`^[A-Z]{1,4}[FGHJKMNQUVXZ]\d{1,2}$`)
)

// AssetClassifier maps a symbol string to an asset class using curated
// symbol tables and format patterns. Classification is deterministic and
// side-effect-free; the tables are fixed at construction, so a single
// instance is safe for concurrent use.
type AssetClassifier struct {
	cryptoBases map[string]bool
	forexPairs  map[string]bool
}

// NewAssetClassifier creates a classifier with the built-in symbol tables
func NewAssetClassifier() *AssetClassifier {
	ac := &AssetClassifier{
		cryptoBases: make(map[string]bool),
		forexPairs:  make(map[string]bool),
	}

	// Curated crypto base symbols
	cryptos := []string{
		"BTC", "ETH", "BNB", "SOL", "XRP",
		"ADA", "DOGE", "AVAX", "DOT", "MATIC",
		"LINK", "LTC", "UNI", "ATOM", "XLM",
		"VET", "FIL", "ICP", "ETC", "SHIB",
		"AAVE", "ALGO", "BCH", "NEAR", "TRX",
	}
	for _, symbol := range cryptos {
		ac.cryptoBases[symbol] = true
	}

	// Major and cross forex pairs, stored concatenated
	pairs := []string{
		"EURUSD", "GBPUSD", "USDJPY", "USDCHF", "AUDUSD",
		"USDCAD", "NZDUSD", "EURGBP", "EURJPY", "GBPJPY",
		"EURCHF", "AUDJPY", "GBPCHF", "EURAUD", "EURCAD",
	}
	for _, pair := range pairs {
		ac.forexPairs[pair] = true
	}

	return ac
}

// Classify determines the asset class of a symbol. Checks run in a fixed
// order with first match winning: crypto tables, forex tables, the OCC
// options pattern, the futures contract pattern, then US_EQUITY by default.
func (ac *AssetClassifier) Classify(symbol string) models.AssetClass {
	// Normalize: uppercase, drop - and _ separators. The / separator is
	// kept because crypto pairs use it to mark the base symbol.
	normalized := strings.ToUpper(symbol)
	normalized = strings.ReplaceAll(normalized, "-", "")
	normalized = strings.ReplaceAll(normalized, "_", "")

	if ac.isCrypto(normalized) {
		return models.AssetClassCrypto
	}

	if ac.forexPairs[strings.ReplaceAll(normalized, "/", "")] {
		return models.AssetClassForex
	}

	if occPattern.MatchString(normalized) ||
		strings.Contains(normalized, "CALL") || strings.Contains(normalized, "PUT") {
		return models.AssetClassOptions
	}

	if futuresPattern.MatchString(normalized) {
		return models.AssetClassFutures
	}

	return models.AssetClassUSEquity
}

// isCrypto checks the curated base set in three shapes: the bare symbol, a
// USD/USDT-quoted pair, and a slash-separated pair.
func (ac *AssetClassifier) isCrypto(normalized string) bool {
	if ac.cryptoBases[normalized] {
		return true
	}
	if base, ok := strings.CutSuffix(normalized, "USDT"); ok && ac.cryptoBases[base] {
		return true
	}
	if base, ok := strings.CutSuffix(normalized, "USD"); ok && ac.cryptoBases[base] {
		return true
	}
	if base, _, ok := strings.Cut(normalized, "/"); ok && ac.cryptoBases[base] {
		return true
	}
	return false
}
