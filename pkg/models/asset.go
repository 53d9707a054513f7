package models

import "time"

// AssetClass represents the coarse instrument category of a symbol
type AssetClass string

const (
	AssetClassUSEquity AssetClass = "US_EQUITY"
	AssetClassCrypto   AssetClass = "CRYPTO"
	AssetClassForex    AssetClass = "FOREX"
	AssetClassOptions  AssetClass = "OPTIONS"
	AssetClassFutures  AssetClass = "FUTURES"
)

// AllAssetClasses lists every supported asset class in a stable order
func AllAssetClasses() []AssetClass {
	return []AssetClass{
		AssetClassUSEquity,
		AssetClassCrypto,
		AssetClassForex,
		AssetClassOptions,
		AssetClassFutures,
	}
}

// Valid reports whether the asset class is one of the supported tags
func (a AssetClass) Valid() bool {
	switch a {
	case AssetClassUSEquity, AssetClassCrypto, AssetClassForex, AssetClassOptions, AssetClassFutures:
		return true
	}
	return false
}

// Asset contains normalized reference data for a tradable instrument
type Asset struct {
	Symbol       string     `json:"symbol"`
	Name         string     `json:"name"`
	AssetClass   AssetClass `json:"asset_class"`
	Exchange     string     `json:"exchange"`
	Tradable     bool       `json:"tradable"`
	Marginable   bool       `json:"marginable"`
	Shortable    bool       `json:"shortable"`
	Fractionable bool       `json:"fractionable"`
}

// OptionContract is a single contract in an options chain
type OptionContract struct {
	Symbol         string    `json:"symbol"`
	Underlying     string    `json:"underlying"`
	ContractType   string    `json:"contract_type"` // call or put
	StrikePrice    float64   `json:"strike_price"`
	ExpirationDate time.Time `json:"expiration_date"`
	OpenInterest   float64   `json:"open_interest,omitempty"`
	ClosePrice     float64   `json:"close_price,omitempty"`
	Tradable       bool      `json:"tradable"`
}

// NewsItem is a normalized news article tied to one or more symbols
type NewsItem struct {
	ID        string    `json:"id"`
	Headline  string    `json:"headline"`
	Summary   string    `json:"summary,omitempty"`
	Author    string    `json:"author,omitempty"`
	Source    string    `json:"source,omitempty"`
	URL       string    `json:"url,omitempty"`
	Symbols   []string  `json:"symbols"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
