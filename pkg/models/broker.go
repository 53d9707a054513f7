package models

// BrokerID identifies a supported brokerage venue
type BrokerID string

const (
	BrokerAlpaca             BrokerID = "ALPACA"
	BrokerBinance            BrokerID = "BINANCE"
	BrokerCoinbase           BrokerID = "COINBASE"
	BrokerInteractiveBrokers BrokerID = "INTERACTIVE_BROKERS"
	BrokerSchwab             BrokerID = "SCHWAB"
	BrokerPaper              BrokerID = "PAPER"
)

// AllBrokerIDs returns the supported venues in a stable order
func AllBrokerIDs() []BrokerID {
	return []BrokerID{
		BrokerAlpaca,
		BrokerBinance,
		BrokerCoinbase,
		BrokerInteractiveBrokers,
		BrokerSchwab,
		BrokerPaper,
	}
}

// BrokerCapabilities describes what a venue supports. Records are immutable
// and sourced from the static capability registry at startup.
type BrokerCapabilities struct {
	Broker                BrokerID     `json:"broker"`
	AssetClasses          []AssetClass `json:"asset_classes"`
	OrderTypes            []OrderType  `json:"order_types"`
	TimeInForce           []TimeInForce `json:"time_in_force"`
	SupportsExtendedHours bool         `json:"supports_extended_hours"`
	SupportsFractional    bool         `json:"supports_fractional"`
	SupportsShortSelling  bool         `json:"supports_short_selling"`
	SupportsMargin        bool         `json:"supports_margin"`
	SupportsOptions       bool         `json:"supports_options"`
	SupportsCrypto        bool         `json:"supports_crypto"`
	SupportsForex         bool         `json:"supports_forex"`
	SupportsPaperTrading  bool         `json:"supports_paper_trading"`
	SupportsBracketOrders bool         `json:"supports_bracket_orders"`
	SupportsOCOOrders     bool         `json:"supports_oco_orders"`
	StreamsQuotes         bool         `json:"streams_quotes"`
	StreamsBars           bool         `json:"streams_bars"`
	StreamsTrades         bool         `json:"streams_trades"`
	MaxOrdersPerMinute    int          `json:"max_orders_per_minute"`
}

// SupportsAssetClass reports whether the venue can trade the given class
func (c BrokerCapabilities) SupportsAssetClass(class AssetClass) bool {
	for _, ac := range c.AssetClasses {
		if ac == class {
			return true
		}
	}
	return false
}

// SupportsOrderType reports whether the venue accepts the given order type
func (c BrokerCapabilities) SupportsOrderType(t OrderType) bool {
	for _, ot := range c.OrderTypes {
		if ot == t {
			return true
		}
	}
	return false
}

// SupportsTimeInForce reports whether the venue accepts the given TIF
func (c BrokerCapabilities) SupportsTimeInForce(tif TimeInForce) bool {
	for _, v := range c.TimeInForce {
		if v == tif {
			return true
		}
	}
	return false
}
