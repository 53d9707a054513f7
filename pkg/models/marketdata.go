package models

import "time"

// Quote is the canonical best bid/ask for a symbol at a point in time
type Quote struct {
	Symbol    string    `json:"symbol"`
	BidPrice  float64   `json:"bid_price"`
	BidSize   float64   `json:"bid_size"`
	AskPrice  float64   `json:"ask_price"`
	AskSize   float64   `json:"ask_size"`
	Timestamp time.Time `json:"timestamp"`
}

// MidPrice returns the quote midpoint, falling back to whichever side exists
func (q *Quote) MidPrice() float64 {
	switch {
	case q.BidPrice > 0 && q.AskPrice > 0:
		return (q.BidPrice + q.AskPrice) / 2
	case q.AskPrice > 0:
		return q.AskPrice
	default:
		return q.BidPrice
	}
}

// Bar is one canonical OHLCV candle
type Bar struct {
	Symbol     string    `json:"symbol"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
	VWAP       float64   `json:"vwap,omitempty"`
	TradeCount int64     `json:"trade_count,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Trade is a single trade print
type Trade struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is a composite view of the latest market state for a symbol.
// Change and ChangePercent are computed against the previous daily close.
type Snapshot struct {
	Symbol        string  `json:"symbol"`
	LatestQuote   *Quote  `json:"latest_quote,omitempty"`
	LatestTrade   *Trade  `json:"latest_trade,omitempty"`
	MinuteBar     *Bar    `json:"minute_bar,omitempty"`
	DailyBar      *Bar    `json:"daily_bar,omitempty"`
	PrevDailyBar  *Bar    `json:"prev_daily_bar,omitempty"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// ComputeChange fills Change/ChangePercent from the daily and previous daily
// bars when both are present.
func (s *Snapshot) ComputeChange() {
	if s.DailyBar == nil || s.PrevDailyBar == nil || s.PrevDailyBar.Close == 0 {
		return
	}
	s.Change = s.DailyBar.Close - s.PrevDailyBar.Close
	s.ChangePercent = s.Change / s.PrevDailyBar.Close * 100
}

// Timeframe is the canonical bar interval vocabulary
type Timeframe string

const (
	Timeframe1Min  Timeframe = "1Min"
	Timeframe5Min  Timeframe = "5Min"
	Timeframe15Min Timeframe = "15Min"
	Timeframe30Min Timeframe = "30Min"
	Timeframe1Hour Timeframe = "1Hour"
	Timeframe4Hour Timeframe = "4Hour"
	Timeframe1Day  Timeframe = "1Day"
	Timeframe1Week Timeframe = "1Week"
)

// Duration returns the bar interval length, defaulting to one minute
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe5Min:
		return 5 * time.Minute
	case Timeframe15Min:
		return 15 * time.Minute
	case Timeframe30Min:
		return 30 * time.Minute
	case Timeframe1Hour:
		return time.Hour
	case Timeframe4Hour:
		return 4 * time.Hour
	case Timeframe1Day:
		return 24 * time.Hour
	case Timeframe1Week:
		return 7 * 24 * time.Hour
	default:
		return time.Minute
	}
}

// BarsRequest parameterizes a historical bars query
type BarsRequest struct {
	Symbol     string    `json:"symbol"`
	Timeframe  Timeframe `json:"timeframe"`
	Start      time.Time `json:"start,omitempty"`
	End        time.Time `json:"end,omitempty"`
	Limit      int       `json:"limit,omitempty"`
	Adjustment string    `json:"adjustment,omitempty"` // raw, split, dividend, all
}
