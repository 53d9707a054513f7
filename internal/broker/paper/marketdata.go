package paper

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradoverse/broker-gateway/internal/broker"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

// priceBook is the synthetic price source. Each symbol starts at a price
// derived from its name and drifts in a small random walk on every read, so
// repeated quotes look alive without any external feed.
type priceBook struct {
	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]decimal.Decimal
}

func newPriceBook() *priceBook {
	return &priceBook{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		prices: make(map[string]decimal.Decimal),
	}
}

// last returns the current synthetic price, walking it one step
func (b *priceBook) last(symbol string) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.prices[symbol]
	if !ok {
		p = basePrice(symbol)
	}
	drift := (b.rng.Float64() - 0.5) * 0.002
	p = p.Mul(decimal.NewFromFloat(1 + drift))
	b.prices[symbol] = p
	return p
}

// set anchors the book at a traded price
func (b *priceBook) set(symbol string, price decimal.Decimal) {
	b.mu.Lock()
	b.prices[symbol] = price
	b.mu.Unlock()
}

// symbols lists every symbol the book has priced
func (b *priceBook) symbols() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.prices))
	for s := range b.prices {
		out = append(out, s)
	}
	return out
}

func (b *priceBook) intn(n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.Intn(n)
}

// basePrice derives a stable starting price from the symbol name
func basePrice(symbol string) decimal.Decimal {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	cents := 1000 + h.Sum32()%49000 // 10.00 .. 499.99
	return decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100))
}

// GetQuote returns a synthetic quote around the walked price
func (p *Adapter) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	return p.syntheticQuote(strings.ToUpper(symbol)), nil
}

// GetQuotes returns synthetic quotes for several symbols
func (p *Adapter) GetQuotes(ctx context.Context, symbols []string) (map[string]*models.Quote, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	out := make(map[string]*models.Quote, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(s)
		out[s] = p.syntheticQuote(s)
	}
	return out, nil
}

// GetBars generates a synthetic history ending at the current price
func (p *Adapter) GetBars(ctx context.Context, req models.BarsRequest) ([]models.Bar, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	symbol := strings.ToUpper(req.Symbol)
	step := req.Timeframe.Duration()

	count := req.Limit
	if count <= 0 {
		count = 100
	}
	end := req.End
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if !req.Start.IsZero() {
		if span := int(end.Sub(req.Start) / step); span > 0 && span < count {
			count = span
		}
	}

	price := p.prices.last(symbol)
	bars := make([]models.Bar, count)
	ts := end.Truncate(step)
	for i := count - 1; i >= 0; i-- {
		open := price.Mul(decimal.NewFromFloat(1 + float64(p.prices.intn(200)-100)/100000))
		high := decimal.Max(open, price).Mul(decimal.NewFromFloat(1.0005))
		low := decimal.Min(open, price).Mul(decimal.NewFromFloat(0.9995))
		bars[i] = models.Bar{
			Symbol:     symbol,
			Open:       open.InexactFloat64(),
			High:       high.InexactFloat64(),
			Low:        low.InexactFloat64(),
			Close:      price.InexactFloat64(),
			Volume:     float64(1000 + p.prices.intn(9000)),
			TradeCount: int64(10 + p.prices.intn(90)),
			Timestamp:  ts,
		}
		price = open
		ts = ts.Add(-step)
	}
	return bars, nil
}

// GetTrades generates recent synthetic prints
func (p *Adapter) GetTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)
	if limit <= 0 {
		limit = 50
	}
	now := time.Now().UTC()
	out := make([]models.Trade, limit)
	for i := 0; i < limit; i++ {
		out[i] = models.Trade{
			Symbol:    symbol,
			Price:     p.prices.last(symbol).InexactFloat64(),
			Size:      float64(1 + p.prices.intn(500)),
			Timestamp: now.Add(-time.Duration(limit-1-i) * time.Second),
		}
	}
	return out, nil
}

// GetSnapshot composes the synthetic market state for one symbol
func (p *Adapter) GetSnapshot(ctx context.Context, symbol string) (*models.Snapshot, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)
	quote := p.syntheticQuote(symbol)
	price := decimal.NewFromFloat(quote.MidPrice())

	now := time.Now().UTC()
	daily := &models.Bar{
		Symbol:    symbol,
		Open:      price.Mul(decimal.NewFromFloat(0.995)).InexactFloat64(),
		High:      price.Mul(decimal.NewFromFloat(1.01)).InexactFloat64(),
		Low:       price.Mul(decimal.NewFromFloat(0.99)).InexactFloat64(),
		Close:     price.InexactFloat64(),
		Volume:    float64(100000 + p.prices.intn(900000)),
		Timestamp: now.Truncate(24 * time.Hour),
	}
	prev := &models.Bar{
		Symbol:    symbol,
		Close:     price.Mul(decimal.NewFromFloat(0.99)).InexactFloat64(),
		Timestamp: daily.Timestamp.Add(-24 * time.Hour),
	}

	snap := &models.Snapshot{
		Symbol:      symbol,
		LatestQuote: quote,
		LatestTrade: &models.Trade{
			Symbol:    symbol,
			Price:     price.InexactFloat64(),
			Size:      100,
			Timestamp: now,
		},
		DailyBar:     daily,
		PrevDailyBar: prev,
	}
	snap.ComputeChange()
	return snap, nil
}

// GetSnapshots composes snapshots for several symbols
func (p *Adapter) GetSnapshots(ctx context.Context, symbols []string) (map[string]*models.Snapshot, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	out := make(map[string]*models.Snapshot, len(symbols))
	for _, s := range symbols {
		snap, err := p.GetSnapshot(ctx, s)
		if err != nil {
			return nil, err
		}
		out[strings.ToUpper(s)] = snap
	}
	return out, nil
}

// GetAsset synthesizes reference data for any symbol
func (p *Adapter) GetAsset(ctx context.Context, symbol string) (*models.Asset, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)
	class := p.classify(symbol)
	return &models.Asset{
		Symbol:       symbol,
		Name:         symbol,
		AssetClass:   class,
		Exchange:     "PAPER",
		Tradable:     true,
		Marginable:   class == models.AssetClassUSEquity,
		Shortable:    class == models.AssetClassUSEquity,
		Fractionable: true,
	}, nil
}

// GetAssets lists instruments the venue has priced so far
func (p *Adapter) GetAssets(ctx context.Context, assetClass models.AssetClass) ([]models.Asset, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	var out []models.Asset
	for _, symbol := range p.prices.symbols() {
		if assetClass != "" && p.classify(symbol) != assetClass {
			continue
		}
		asset, _ := p.GetAsset(ctx, symbol)
		out = append(out, *asset)
	}
	return out, nil
}

// GetOptionChain synthesizes a near-the-money chain for two expiries
func (p *Adapter) GetOptionChain(ctx context.Context, underlying string) ([]models.OptionContract, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	underlying = strings.ToUpper(underlying)
	spot := p.prices.last(underlying)

	atm := spot.Div(decimal.NewFromInt(5)).Round(0).Mul(decimal.NewFromInt(5))
	step := decimal.NewFromInt(5)

	var out []models.OptionContract
	for _, expiry := range []time.Time{thirdFriday(time.Now().UTC()), thirdFriday(time.Now().UTC().AddDate(0, 1, 0))} {
		for i := -5; i <= 5; i++ {
			strike := atm.Add(step.Mul(decimal.NewFromInt(int64(i))))
			if strike.Sign() <= 0 {
				continue
			}
			for _, ct := range []string{"call", "put"} {
				out = append(out, models.OptionContract{
					Symbol:         occSymbol(underlying, expiry, ct, strike),
					Underlying:     underlying,
					ContractType:   ct,
					StrikePrice:    strike.InexactFloat64(),
					ExpirationDate: expiry,
					Tradable:       true,
				})
			}
		}
	}
	return out, nil
}

// GetNews returns nothing; the paper venue has no news feed
func (p *Adapter) GetNews(ctx context.Context, symbols []string, limit int) ([]models.NewsItem, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	return []models.NewsItem{}, nil
}

// SubscribeQuotes streams synthetic quotes once per second
func (p *Adapter) SubscribeQuotes(symbols []string, fn broker.QuoteHandler) (broker.SubscriptionID, error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	id := p.subs.AddQuoteHandler(upperAll(symbols), fn)
	p.ensureTicker()
	return id, nil
}

// SubscribeBars streams synthetic minute bars
func (p *Adapter) SubscribeBars(symbols []string, fn broker.BarHandler) (broker.SubscriptionID, error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	id := p.subs.AddBarHandler(upperAll(symbols), fn)
	p.ensureTicker()
	return id, nil
}

// SubscribeOrderUpdates streams fills and cancellations
func (p *Adapter) SubscribeOrderUpdates(fn broker.OrderUpdateHandler) (broker.SubscriptionID, error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	return p.subs.AddOrderHandler(fn), nil
}

// SubscribePositionUpdates streams position changes derived from fills
func (p *Adapter) SubscribePositionUpdates(fn broker.PositionUpdateHandler) (broker.SubscriptionID, error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	return p.subs.AddPositionHandler(fn), nil
}

// Unsubscribe drops the symbols from all market data subscriptions
func (p *Adapter) Unsubscribe(symbols []string) error {
	p.subs.RemoveSymbols(upperAll(symbols))
	if !p.subs.HasMarketData() {
		p.stopTicker()
	}
	return nil
}

// UnsubscribeAll clears every subscription and stops the stream
func (p *Adapter) UnsubscribeAll() error {
	p.subs.Clear()
	p.stopTicker()
	return nil
}

func (p *Adapter) syntheticQuote(symbol string) *models.Quote {
	mid := p.prices.last(symbol)
	halfSpread := decimal.NewFromFloat(0.00025)
	return &models.Quote{
		Symbol:    symbol,
		BidPrice:  mid.Mul(decimal.NewFromInt(1).Sub(halfSpread)).InexactFloat64(),
		BidSize:   float64(100 + p.prices.intn(900)),
		AskPrice:  mid.Mul(decimal.NewFromInt(1).Add(halfSpread)).InexactFloat64(),
		AskSize:   float64(100 + p.prices.intn(900)),
		Timestamp: time.Now().UTC(),
	}
}

func (p *Adapter) ensureTicker() {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()
	if p.ticking {
		return
	}
	p.ticking = true
	p.tickDone = make(chan struct{})
	go p.streamLoop(p.tickDone)
}

func (p *Adapter) stopTicker() {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()
	if !p.ticking {
		return
	}
	close(p.tickDone)
	p.ticking = false
}

// streamLoop pushes synthetic quotes every second and a bar on each minute
// roll for all subscribed symbols.
func (p *Adapter) streamLoop(done chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	lastBar := make(map[string]time.Time)
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			for _, symbol := range p.subs.QuoteSymbols() {
				p.subs.DispatchQuote(p.syntheticQuote(symbol))
			}
			minute := now.UTC().Truncate(time.Minute)
			for _, symbol := range p.subs.BarSymbols() {
				if lastBar[symbol] == minute {
					continue
				}
				lastBar[symbol] = minute
				price := p.prices.last(symbol)
				p.subs.DispatchBar(&models.Bar{
					Symbol:    symbol,
					Open:      price.Mul(decimal.NewFromFloat(0.9995)).InexactFloat64(),
					High:      price.Mul(decimal.NewFromFloat(1.001)).InexactFloat64(),
					Low:       price.Mul(decimal.NewFromFloat(0.999)).InexactFloat64(),
					Close:     price.InexactFloat64(),
					Volume:    float64(100 + p.prices.intn(900)),
					Timestamp: minute,
				})
			}
		}
	}
}

// thirdFriday returns the month's standard options expiration
func thirdFriday(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != time.Friday {
		d = d.AddDate(0, 0, 1)
	}
	d = d.AddDate(0, 0, 14)
	if d.Before(t) {
		return thirdFriday(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0))
	}
	return d
}

// occSymbol renders the OCC contract symbol: root, yymmdd, C/P, strike*1000
func occSymbol(underlying string, expiry time.Time, contractType string, strike decimal.Decimal) string {
	cp := "C"
	if contractType == "put" {
		cp = "P"
	}
	milli := strike.Mul(decimal.NewFromInt(1000)).IntPart()
	return fmt.Sprintf("%s%s%s%08d", underlying, expiry.Format("060102"), cp, milli)
}

func upperAll(symbols []string) []string {
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = strings.ToUpper(s)
	}
	return out
}
