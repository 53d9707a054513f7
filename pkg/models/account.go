package models

import "time"

// Account is a normalized balance snapshot for one venue account. Vendor
// wire values arrive as strings and are parsed at the adapter boundary;
// absent fields stay zero.
type Account struct {
	AccountID         string    `json:"account_id"`
	Broker            BrokerID  `json:"broker,omitempty"`
	Status            string    `json:"status,omitempty"`
	Currency          string    `json:"currency,omitempty"`
	Cash              float64   `json:"cash"`
	BuyingPower       float64   `json:"buying_power"`
	Equity            float64   `json:"equity"`
	PortfolioValue    float64   `json:"portfolio_value,omitempty"`
	InitialMargin     float64   `json:"initial_margin,omitempty"`
	MaintenanceMargin float64   `json:"maintenance_margin,omitempty"`
	DaytradeCount     int       `json:"daytrade_count,omitempty"`
	PatternDayTrader  bool      `json:"pattern_day_trader,omitempty"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
}
