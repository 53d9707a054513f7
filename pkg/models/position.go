package models

// Position is an ephemeral snapshot of a venue-held position. It is owned by
// the brokerage and mirrored locally only for the duration of a query or a
// streaming subscription.
type Position struct {
	Symbol             string     `json:"symbol"`
	AssetClass         AssetClass `json:"asset_class,omitempty"`
	Broker             BrokerID   `json:"broker,omitempty"`
	Qty                float64    `json:"qty"`
	Side               string     `json:"side"` // long or short
	AvgEntryPrice      float64    `json:"avg_entry_price"`
	MarketValue        float64    `json:"market_value"`
	CostBasis          float64    `json:"cost_basis"`
	UnrealizedPL       float64    `json:"unrealized_pl"`
	UnrealizedPLPct    float64    `json:"unrealized_pl_pct"`
	CurrentPrice       float64    `json:"current_price"`
	LastdayPrice       float64    `json:"lastday_price,omitempty"`
	ChangeToday        float64    `json:"change_today,omitempty"`
}

// ClosePositionRequest asks a venue to flatten all or part of a position.
// Qty and Percent are mutually exclusive; both zero closes the whole position.
type ClosePositionRequest struct {
	Qty     float64 `json:"qty,omitempty"`
	Percent float64 `json:"percent,omitempty"`
}

// PositionUpdate is a streamed position change derived from order fills
type PositionUpdate struct {
	Broker   BrokerID  `json:"broker"`
	Position *Position `json:"position"`
}
