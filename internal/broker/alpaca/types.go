package alpaca

import (
	"strconv"
	"time"
)

// Trading API wire DTOs. Alpaca sends every numeric field as a string;
// values are parsed at this boundary and absent fields stay zero.

type wireAccount struct {
	ID                string    `json:"id"`
	AccountNumber     string    `json:"account_number"`
	Status            string    `json:"status"`
	Currency          string    `json:"currency"`
	Cash              string    `json:"cash"`
	PortfolioValue    string    `json:"portfolio_value"`
	BuyingPower       string    `json:"buying_power"`
	Equity            string    `json:"equity"`
	InitialMargin     string    `json:"initial_margin"`
	MaintenanceMargin string    `json:"maintenance_margin"`
	DaytradeCount     int       `json:"daytrade_count"`
	PatternDayTrader  bool      `json:"pattern_day_trader"`
	CreatedAt         time.Time `json:"created_at"`
}

type wireOrder struct {
	ID             string      `json:"id"`
	ClientOrderID  string      `json:"client_order_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      *time.Time  `json:"updated_at"`
	SubmittedAt    *time.Time  `json:"submitted_at"`
	FilledAt       *time.Time  `json:"filled_at"`
	ExpiredAt      *time.Time  `json:"expired_at"`
	CanceledAt     *time.Time  `json:"canceled_at"`
	FailedAt       *time.Time  `json:"failed_at"`
	ReplacedAt     *time.Time  `json:"replaced_at"`
	ReplacedBy     string      `json:"replaced_by"`
	Symbol         string      `json:"symbol"`
	Qty            string      `json:"qty"`
	Notional       string      `json:"notional"`
	FilledQty      string      `json:"filled_qty"`
	FilledAvgPrice string      `json:"filled_avg_price"`
	OrderClass     string      `json:"order_class"`
	Type           string      `json:"type"`
	Side           string      `json:"side"`
	TimeInForce    string      `json:"time_in_force"`
	LimitPrice     string      `json:"limit_price"`
	StopPrice      string      `json:"stop_price"`
	TrailPrice     string      `json:"trail_price"`
	TrailPercent   string      `json:"trail_percent"`
	Status         string      `json:"status"`
	ExtendedHours  bool        `json:"extended_hours"`
	Legs           []wireOrder `json:"legs"`
}

type wirePosition struct {
	Symbol         string `json:"symbol"`
	Exchange       string `json:"exchange"`
	AssetClass     string `json:"asset_class"`
	AvgEntryPrice  string `json:"avg_entry_price"`
	Qty            string `json:"qty"`
	Side           string `json:"side"`
	MarketValue    string `json:"market_value"`
	CostBasis      string `json:"cost_basis"`
	UnrealizedPL   string `json:"unrealized_pl"`
	UnrealizedPLPC string `json:"unrealized_plpc"`
	CurrentPrice   string `json:"current_price"`
	LastdayPrice   string `json:"lastday_price"`
	ChangeToday    string `json:"change_today"`
}

type wireAsset struct {
	ID           string `json:"id"`
	Class        string `json:"class"`
	Exchange     string `json:"exchange"`
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	Tradable     bool   `json:"tradable"`
	Marginable   bool   `json:"marginable"`
	Shortable    bool   `json:"shortable"`
	Fractionable bool   `json:"fractionable"`
}

type wireOptionContract struct {
	Symbol           string `json:"symbol"`
	Name             string `json:"name"`
	Status           string `json:"status"`
	Tradable         bool   `json:"tradable"`
	ExpirationDate   string `json:"expiration_date"`
	UnderlyingSymbol string `json:"underlying_symbol"`
	Type             string `json:"type"`
	StrikePrice      string `json:"strike_price"`
	OpenInterest     string `json:"open_interest"`
	ClosePrice       string `json:"close_price"`
}

type wireOptionContracts struct {
	OptionContracts []wireOptionContract `json:"option_contracts"`
	NextPageToken   string               `json:"next_page_token"`
}

// closeAllResult is one element of the DELETE /v2/positions response
type closeAllResult struct {
	Symbol string    `json:"symbol"`
	Status int       `json:"status"`
	Body   wireOrder `json:"body"`
}

// cancelAllResult is one element of the DELETE /v2/orders response
type cancelAllResult struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
}

// orderRequest is the POST /v2/orders body. Prices travel as strings to
// match the vendor schema exactly.
type orderRequest struct {
	Symbol        string         `json:"symbol"`
	Qty           string         `json:"qty,omitempty"`
	Notional      string         `json:"notional,omitempty"`
	Side          string         `json:"side"`
	Type          string         `json:"type"`
	TimeInForce   string         `json:"time_in_force"`
	LimitPrice    string         `json:"limit_price,omitempty"`
	StopPrice     string         `json:"stop_price,omitempty"`
	TrailPrice    string         `json:"trail_price,omitempty"`
	TrailPercent  string         `json:"trail_percent,omitempty"`
	ExtendedHours bool           `json:"extended_hours,omitempty"`
	ClientOrderID string         `json:"client_order_id,omitempty"`
	OrderClass    string         `json:"order_class,omitempty"`
	TakeProfit    *takeProfitLeg `json:"take_profit,omitempty"`
	StopLoss      *stopLossLeg   `json:"stop_loss,omitempty"`
}

type takeProfitLeg struct {
	LimitPrice string `json:"limit_price"`
}

type stopLossLeg struct {
	StopPrice  string `json:"stop_price"`
	LimitPrice string `json:"limit_price,omitempty"`
}

type patchRequest struct {
	Qty           string `json:"qty,omitempty"`
	TimeInForce   string `json:"time_in_force,omitempty"`
	LimitPrice    string `json:"limit_price,omitempty"`
	StopPrice     string `json:"stop_price,omitempty"`
	Trail         string `json:"trail,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// parseFloat parses a vendor string numeric, treating absent or malformed
// values as zero so they never propagate as NaN into arithmetic.
func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// formatFloat renders a price or quantity the way the vendor expects
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
