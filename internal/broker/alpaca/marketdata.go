package alpaca

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/tradoverse/broker-gateway/pkg/models"
)

// Market data comes from the official marketdata client. Stock and crypto
// symbols hit different endpoint families; a slashed pair ("BTC/USD")
// selects the crypto family.
//
// The v3 marketdata client does not accept a context, so each method
// honors cancellation up front and the SDK call itself runs to completion
// once dispatched.

func isCryptoPair(symbol string) bool {
	return strings.ContainsAny(symbol, "/")
}

// GetQuote fetches the latest quote for one symbol
func (a *Adapter) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)
	if isCryptoPair(symbol) {
		q, err := a.md.GetLatestCryptoQuote(symbol, marketdata.GetLatestCryptoQuoteRequest{})
		if err != nil {
			return nil, a.mdError("latest crypto quote", symbol, err)
		}
		return &models.Quote{
			Symbol:    symbol,
			BidPrice:  q.BidPrice,
			BidSize:   q.BidSize,
			AskPrice:  q.AskPrice,
			AskSize:   q.AskSize,
			Timestamp: q.Timestamp,
		}, nil
	}

	q, err := a.md.GetLatestQuote(symbol, marketdata.GetLatestQuoteRequest{Feed: marketdata.Feed(a.cfg.DataFeed)})
	if err != nil {
		return nil, a.mdError("latest quote", symbol, err)
	}
	return translateQuote(symbol, q), nil
}

// GetQuotes fetches the latest quotes for several symbols in one call
func (a *Adapter) GetQuotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = strings.ToUpper(s)
	}
	quotes, err := a.md.GetLatestQuotes(upper, marketdata.GetLatestQuoteRequest{Feed: marketdata.Feed(a.cfg.DataFeed)})
	if err != nil {
		return nil, a.mdError("latest quotes", strings.Join(upper, ","), err)
	}
	out := make(map[string]*models.Quote, len(quotes))
	for symbol, q := range quotes {
		quote := q
		out[symbol] = translateQuote(symbol, &quote)
	}
	return out, nil
}

// GetBars fetches historical bars
func (a *Adapter) GetBars(ctx context.Context, req models.BarsRequest) ([]models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol := strings.ToUpper(req.Symbol)
	tf, err := translateTimeframe(req.Timeframe)
	if err != nil {
		return nil, err
	}

	if isCryptoPair(symbol) {
		bars, err := a.md.GetCryptoBars(symbol, marketdata.GetCryptoBarsRequest{
			TimeFrame:  tf,
			Start:      req.Start,
			End:        req.End,
			TotalLimit: req.Limit,
		})
		if err != nil {
			return nil, a.mdError("crypto bars", symbol, err)
		}
		out := make([]models.Bar, 0, len(bars))
		for _, b := range bars {
			out = append(out, models.Bar{
				Symbol:     symbol,
				Open:       b.Open,
				High:       b.High,
				Low:        b.Low,
				Close:      b.Close,
				Volume:     b.Volume,
				VWAP:       b.VWAP,
				TradeCount: int64(b.TradeCount),
				Timestamp:  b.Timestamp,
			})
		}
		return out, nil
	}

	bars, err := a.md.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  tf,
		Adjustment: translateAdjustment(req.Adjustment),
		Start:      req.Start,
		End:        req.End,
		TotalLimit: req.Limit,
		Feed:       marketdata.Feed(a.cfg.DataFeed),
	})
	if err != nil {
		return nil, a.mdError("bars", symbol, err)
	}
	out := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		out = append(out, translateBar(symbol, &b))
	}
	return out, nil
}

// GetTrades fetches recent trade prints
func (a *Adapter) GetTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)
	if limit <= 0 {
		limit = 100
	}
	trades, err := a.md.GetTrades(symbol, marketdata.GetTradesRequest{
		Start:      time.Now().Add(-15 * time.Minute),
		TotalLimit: limit,
		Feed:       marketdata.Feed(a.cfg.DataFeed),
	})
	if err != nil {
		return nil, a.mdError("trades", symbol, err)
	}
	out := make([]models.Trade, 0, len(trades))
	for _, t := range trades {
		out = append(out, models.Trade{
			Symbol:    symbol,
			Price:     t.Price,
			Size:      float64(t.Size),
			Timestamp: t.Timestamp,
		})
	}
	return out, nil
}

// GetSnapshot composes the consolidated market state for one symbol
func (a *Adapter) GetSnapshot(ctx context.Context, symbol string) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)
	snap, err := a.md.GetSnapshot(symbol, marketdata.GetSnapshotRequest{Feed: marketdata.Feed(a.cfg.DataFeed)})
	if err != nil {
		return nil, a.mdError("snapshot", symbol, err)
	}
	return translateSnapshot(symbol, snap), nil
}

// GetSnapshots composes snapshots for several symbols in one call
func (a *Adapter) GetSnapshots(ctx context.Context, symbols []string) (map[string]*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = strings.ToUpper(s)
	}
	snaps, err := a.md.GetSnapshots(upper, marketdata.GetSnapshotRequest{Feed: marketdata.Feed(a.cfg.DataFeed)})
	if err != nil {
		return nil, a.mdError("snapshots", strings.Join(upper, ","), err)
	}
	out := make(map[string]*models.Snapshot, len(snaps))
	for symbol, s := range snaps {
		if s == nil {
			continue
		}
		out[symbol] = translateSnapshot(symbol, s)
	}
	return out, nil
}

// GetNews fetches recent articles for the symbols
func (a *Adapter) GetNews(ctx context.Context, symbols []string, limit int) ([]models.NewsItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	news, err := a.md.GetNews(marketdata.GetNewsRequest{
		Symbols:    symbols,
		TotalLimit: limit,
	})
	if err != nil {
		return nil, a.mdError("news", strings.Join(symbols, ","), err)
	}
	out := make([]models.NewsItem, 0, len(news))
	for _, n := range news {
		out = append(out, models.NewsItem{
			ID:        fmt.Sprintf("%d", n.ID),
			Headline:  n.Headline,
			Summary:   n.Summary,
			Author:    n.Author,
			Source:    "alpaca",
			URL:       n.URL,
			Symbols:   n.Symbols,
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.UpdatedAt,
		})
	}
	return out, nil
}

func translateQuote(symbol string, q *marketdata.Quote) *models.Quote {
	return &models.Quote{
		Symbol:    symbol,
		BidPrice:  q.BidPrice,
		BidSize:   float64(q.BidSize),
		AskPrice:  q.AskPrice,
		AskSize:   float64(q.AskSize),
		Timestamp: q.Timestamp,
	}
}

func translateBar(symbol string, b *marketdata.Bar) models.Bar {
	return models.Bar{
		Symbol:     symbol,
		Open:       b.Open,
		High:       b.High,
		Low:        b.Low,
		Close:      b.Close,
		Volume:     float64(b.Volume),
		VWAP:       b.VWAP,
		TradeCount: int64(b.TradeCount),
		Timestamp:  b.Timestamp,
	}
}

func translateSnapshot(symbol string, s *marketdata.Snapshot) *models.Snapshot {
	out := &models.Snapshot{Symbol: symbol}
	if s.LatestQuote != nil {
		out.LatestQuote = translateQuote(symbol, s.LatestQuote)
	}
	if s.LatestTrade != nil {
		out.LatestTrade = &models.Trade{
			Symbol:    symbol,
			Price:     s.LatestTrade.Price,
			Size:      float64(s.LatestTrade.Size),
			Timestamp: s.LatestTrade.Timestamp,
		}
	}
	if s.MinuteBar != nil {
		bar := translateBar(symbol, s.MinuteBar)
		out.MinuteBar = &bar
	}
	if s.DailyBar != nil {
		bar := translateBar(symbol, s.DailyBar)
		out.DailyBar = &bar
	}
	if s.PrevDailyBar != nil {
		bar := translateBar(symbol, s.PrevDailyBar)
		out.PrevDailyBar = &bar
	}
	out.ComputeChange()
	return out
}

func translateTimeframe(tf models.Timeframe) (marketdata.TimeFrame, error) {
	switch tf {
	case "", models.Timeframe1Min:
		return marketdata.OneMin, nil
	case models.Timeframe5Min:
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case models.Timeframe15Min:
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case models.Timeframe30Min:
		return marketdata.NewTimeFrame(30, marketdata.Min), nil
	case models.Timeframe1Hour:
		return marketdata.OneHour, nil
	case models.Timeframe4Hour:
		return marketdata.NewTimeFrame(4, marketdata.Hour), nil
	case models.Timeframe1Day:
		return marketdata.OneDay, nil
	case models.Timeframe1Week:
		return marketdata.NewTimeFrame(1, marketdata.Week), nil
	default:
		return marketdata.TimeFrame{}, models.NewBrokerError(models.BrokerAlpaca, models.ErrInvalidOrder,
			fmt.Sprintf("unsupported timeframe %q", tf), nil)
	}
}

func translateAdjustment(adjustment string) marketdata.Adjustment {
	switch adjustment {
	case "split":
		return marketdata.Split
	case "dividend":
		return marketdata.Dividend
	case "all":
		return marketdata.All
	default:
		return marketdata.Raw
	}
}

// mdError wraps a marketdata client failure into the error taxonomy. The
// SDK flattens HTTP failures into opaque errors, so the status breakdown
// stays with the message text.
func (a *Adapter) mdError(op, symbol string, err error) error {
	kind := models.ErrUnknown
	msg := err.Error()
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "unauthorized"):
		kind = models.ErrAuthenticationFailed
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		kind = models.ErrRateLimited
	}
	return models.NewBrokerError(models.BrokerAlpaca, kind,
		fmt.Sprintf("%s for %s failed", op, symbol), err)
}
