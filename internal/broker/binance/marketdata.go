package binance

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

// Market data comes from the unauthenticated spot endpoints. Quotes map
// from the order book ticker, bars from klines and the composite snapshot
// is assembled from the 24h rolling ticker plus the book ticker.

var intervalFromTimeframe = map[models.Timeframe]string{
	models.Timeframe1Min:  "1m",
	models.Timeframe5Min:  "5m",
	models.Timeframe15Min: "15m",
	models.Timeframe30Min: "30m",
	models.Timeframe1Hour: "1h",
	models.Timeframe4Hour: "4h",
	models.Timeframe1Day:  "1d",
	models.Timeframe1Week: "1w",
}

// GetQuote fetches the best bid/ask for one pair
func (a *Adapter) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	params := url.Values{}
	params.Set("symbol", vendorSymbol(symbol))
	var w wireBookTicker
	if err := a.rest.public(ctx, "/api/v3/ticker/bookTicker", params, &w); err != nil {
		return nil, err
	}
	return translateBookTicker(&w), nil
}

// GetQuotes fetches best bid/ask for several pairs in one call
func (a *Adapter) GetQuotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	vendors := make([]string, len(symbols))
	for i, s := range symbols {
		vendors[i] = vendorSymbol(s)
	}
	params := url.Values{}
	params.Set("symbols", symbolsParam(vendors))

	var wires []wireBookTicker
	if err := a.rest.public(ctx, "/api/v3/ticker/bookTicker", params, &wires); err != nil {
		return nil, err
	}
	out := make(map[string]*models.Quote, len(wires))
	for i := range wires {
		quote := translateBookTicker(&wires[i])
		out[quote.Symbol] = quote
	}
	return out, nil
}

// GetBars fetches historical klines
func (a *Adapter) GetBars(ctx context.Context, req models.BarsRequest) ([]models.Bar, error) {
	interval, ok := intervalFromTimeframe[req.Timeframe]
	if !ok {
		if req.Timeframe == "" {
			interval = "1m"
		} else {
			return nil, models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder,
				fmt.Sprintf("unsupported timeframe %q", req.Timeframe), nil)
		}
	}

	symbol := vendorSymbol(req.Symbol)
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	if !req.Start.IsZero() {
		params.Set("startTime", strconv.FormatInt(req.Start.UnixMilli(), 10))
	}
	if !req.End.IsZero() {
		params.Set("endTime", strconv.FormatInt(req.End.UnixMilli(), 10))
	}
	limit := req.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	params.Set("limit", strconv.Itoa(limit))

	var raw [][]interface{}
	if err := a.rest.public(ctx, "/api/v3/klines", params, &raw); err != nil {
		return nil, err
	}

	canonical := canonicalSymbol(symbol)
	out := make([]models.Bar, 0, len(raw))
	for _, k := range raw {
		bar, ok := translateKline(canonical, k)
		if ok {
			out = append(out, bar)
		}
	}
	return out, nil
}

// GetTrades fetches recent trade prints
func (a *Adapter) GetTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	vendor := vendorSymbol(symbol)
	params := url.Values{}
	params.Set("symbol", vendor)
	params.Set("limit", strconv.Itoa(limit))

	var wires []wireTrade
	if err := a.rest.public(ctx, "/api/v3/trades", params, &wires); err != nil {
		return nil, err
	}
	canonical := canonicalSymbol(vendor)
	out := make([]models.Trade, 0, len(wires))
	for _, w := range wires {
		out = append(out, models.Trade{
			Symbol:    canonical,
			Price:     parseFloat(w.Price),
			Size:      parseFloat(w.Qty),
			Timestamp: time.UnixMilli(w.Time),
		})
	}
	return out, nil
}

// GetSnapshot composes the consolidated market state for one pair
func (a *Adapter) GetSnapshot(ctx context.Context, symbol string) (*models.Snapshot, error) {
	vendor := vendorSymbol(symbol)
	params := url.Values{}
	params.Set("symbol", vendor)
	var t wireTicker24h
	if err := a.rest.public(ctx, "/api/v3/ticker/24hr", params, &t); err != nil {
		return nil, err
	}
	quote, err := a.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return translateTicker(&t, quote), nil
}

// GetSnapshots composes snapshots for several pairs in one batched call
func (a *Adapter) GetSnapshots(ctx context.Context, symbols []string) (map[string]*models.Snapshot, error) {
	vendors := make([]string, len(symbols))
	for i, s := range symbols {
		vendors[i] = vendorSymbol(s)
	}
	params := url.Values{}
	params.Set("symbols", symbolsParam(vendors))
	var tickers []wireTicker24h
	if err := a.rest.public(ctx, "/api/v3/ticker/24hr", params, &tickers); err != nil {
		return nil, err
	}
	quotes, err := a.GetQuotes(ctx, symbols)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*models.Snapshot, len(tickers))
	for i := range tickers {
		canonical := canonicalSymbol(tickers[i].Symbol)
		snap := translateTicker(&tickers[i], quotes[canonical])
		out[canonical] = snap
	}
	return out, nil
}

func translateBookTicker(w *wireBookTicker) *models.Quote {
	return &models.Quote{
		Symbol:    canonicalSymbol(w.Symbol),
		BidPrice:  parseFloat(w.BidPrice),
		BidSize:   parseFloat(w.BidQty),
		AskPrice:  parseFloat(w.AskPrice),
		AskSize:   parseFloat(w.AskQty),
		Timestamp: time.Now(),
	}
}

// translateTicker builds a snapshot from the 24h rolling window. The window
// stands in for the daily bar; the previous close comes straight from the
// ticker so ComputeChange agrees with the venue's own change figures.
func translateTicker(t *wireTicker24h, quote *models.Quote) *models.Snapshot {
	canonical := canonicalSymbol(t.Symbol)
	daily := &models.Bar{
		Symbol:     canonical,
		Open:       parseFloat(t.OpenPrice),
		High:       parseFloat(t.HighPrice),
		Low:        parseFloat(t.LowPrice),
		Close:      parseFloat(t.LastPrice),
		Volume:     parseFloat(t.Volume),
		VWAP:       parseFloat(t.WeightedAvgPrice),
		TradeCount: t.Count,
		Timestamp:  time.UnixMilli(t.OpenTime),
	}
	snap := &models.Snapshot{
		Symbol:      canonical,
		LatestQuote: quote,
		LatestTrade: &models.Trade{
			Symbol:    canonical,
			Price:     parseFloat(t.LastPrice),
			Size:      parseFloat(t.LastQty),
			Timestamp: time.UnixMilli(t.CloseTime),
		},
		DailyBar: daily,
		PrevDailyBar: &models.Bar{
			Symbol:    canonical,
			Close:     parseFloat(t.PrevClosePrice),
			Timestamp: time.UnixMilli(t.OpenTime).Add(-24 * time.Hour),
		},
	}
	snap.ComputeChange()
	return snap
}

// translateKline parses one kline array:
// [openTime, open, high, low, close, volume, closeTime, ...]
func translateKline(symbol string, k []interface{}) (models.Bar, bool) {
	if len(k) < 6 {
		return models.Bar{}, false
	}
	openTime, ok := k[0].(float64)
	if !ok {
		return models.Bar{}, false
	}
	str := func(v interface{}) float64 {
		s, _ := v.(string)
		return parseFloat(s)
	}
	bar := models.Bar{
		Symbol:    symbol,
		Open:      str(k[1]),
		High:      str(k[2]),
		Low:       str(k[3]),
		Close:     str(k[4]),
		Volume:    str(k[5]),
		Timestamp: time.UnixMilli(int64(openTime)),
	}
	if len(k) > 8 {
		if count, ok := k[8].(float64); ok {
			bar.TradeCount = int64(count)
		}
	}
	return bar, true
}
