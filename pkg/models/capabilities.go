package models

// capabilityTable holds the static capability record for every supported
// venue. Adapters and the routing layer both read from here so the two
// views never diverge.
var capabilityTable = map[BrokerID]BrokerCapabilities{}

func init() {
	allTypes := []OrderType{
		OrderTypeMarket, OrderTypeLimit, OrderTypeStop,
		OrderTypeStopLimit, OrderTypeTrailingStop,
	}
	allTIFs := []TimeInForce{
		TimeInForceDay, TimeInForceGTC, TimeInForceOPG,
		TimeInForceCLS, TimeInForceIOC, TimeInForceFOK,
	}

	records := []BrokerCapabilities{
		{
			Broker:                BrokerAlpaca,
			AssetClasses:          []AssetClass{AssetClassUSEquity, AssetClassCrypto, AssetClassOptions},
			OrderTypes:            allTypes,
			TimeInForce:           allTIFs,
			SupportsExtendedHours: true,
			SupportsFractional:    true,
			SupportsShortSelling:  true,
			SupportsMargin:        true,
			SupportsOptions:       true,
			SupportsCrypto:        true,
			SupportsPaperTrading:  true,
			SupportsBracketOrders: true,
			SupportsOCOOrders:     true,
			StreamsQuotes:         true,
			StreamsBars:           true,
			StreamsTrades:         true,
			MaxOrdersPerMinute:    200,
		},
		{
			Broker:             BrokerBinance,
			AssetClasses:       []AssetClass{AssetClassCrypto},
			OrderTypes:         []OrderType{OrderTypeMarket, OrderTypeLimit, OrderTypeStopLimit},
			TimeInForce:        []TimeInForce{TimeInForceGTC, TimeInForceIOC, TimeInForceFOK},
			SupportsFractional: true,
			SupportsCrypto:     true,
			SupportsOCOOrders:  true,
			StreamsQuotes:      true,
			StreamsBars:        true,
			StreamsTrades:      true,
			MaxOrdersPerMinute: 1200,
		},
		{
			Broker:             BrokerCoinbase,
			AssetClasses:       []AssetClass{AssetClassCrypto},
			OrderTypes:         []OrderType{OrderTypeMarket, OrderTypeLimit, OrderTypeStopLimit},
			TimeInForce:        []TimeInForce{TimeInForceGTC, TimeInForceIOC, TimeInForceFOK},
			SupportsFractional: true,
			SupportsCrypto:     true,
			StreamsQuotes:      true,
			StreamsTrades:      true,
			MaxOrdersPerMinute: 300,
		},
		{
			Broker:                BrokerInteractiveBrokers,
			AssetClasses:          AllAssetClasses(),
			OrderTypes:            allTypes,
			TimeInForce:           allTIFs,
			SupportsExtendedHours: true,
			SupportsShortSelling:  true,
			SupportsMargin:        true,
			SupportsOptions:       true,
			SupportsCrypto:        true,
			SupportsForex:         true,
			SupportsBracketOrders: true,
			SupportsOCOOrders:     true,
			StreamsQuotes:         true,
			StreamsBars:           true,
			StreamsTrades:         true,
			MaxOrdersPerMinute:    50,
		},
		{
			Broker:                BrokerSchwab,
			AssetClasses:          []AssetClass{AssetClassUSEquity, AssetClassOptions},
			OrderTypes:            allTypes,
			TimeInForce:           []TimeInForce{TimeInForceDay, TimeInForceGTC},
			SupportsExtendedHours: true,
			SupportsShortSelling:  true,
			SupportsMargin:        true,
			SupportsOptions:       true,
			SupportsBracketOrders: true,
			StreamsQuotes:         true,
			MaxOrdersPerMinute:    120,
		},
		{
			Broker:                BrokerPaper,
			AssetClasses:          AllAssetClasses(),
			OrderTypes:            allTypes,
			TimeInForce:           allTIFs,
			SupportsExtendedHours: true,
			SupportsFractional:    true,
			SupportsShortSelling:  true,
			SupportsMargin:        true,
			SupportsOptions:       true,
			SupportsCrypto:        true,
			SupportsForex:         true,
			SupportsPaperTrading:  true,
			SupportsBracketOrders: true,
			SupportsOCOOrders:     true,
			StreamsQuotes:         true,
			StreamsBars:           true,
			StreamsTrades:         true,
		},
	}
	for _, r := range records {
		capabilityTable[r.Broker] = r
	}
}

// DefaultCapabilities returns the static capability record for a venue
func DefaultCapabilities(broker BrokerID) (BrokerCapabilities, bool) {
	c, ok := capabilityTable[broker]
	return c, ok
}

// AllDefaultCapabilities returns every static capability record
func AllDefaultCapabilities() []BrokerCapabilities {
	out := make([]BrokerCapabilities, 0, len(capabilityTable))
	for _, id := range AllBrokerIDs() {
		if c, ok := capabilityTable[id]; ok {
			out = append(out, c)
		}
	}
	return out
}
