// Package paper implements an in-memory simulated brokerage. Orders fill
// against a synthetic price book, balances and positions live in process
// memory and reset on restart. It backs local development and acts as the
// safety venue when no real brokerage is configured.
package paper

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/internal/broker"
	"github.com/tradoverse/broker-gateway/pkg/config"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

var _ broker.Adapter = (*Adapter)(nil)

// slippage applied to market fills, half a basis point per side
var slippage = decimal.NewFromFloat(0.0005)

type position struct {
	qty      decimal.Decimal // signed, negative is short
	avgEntry decimal.Decimal
}

// Adapter is the paper trading venue
type Adapter struct {
	logger    *logrus.Entry
	cfg       config.PaperConfig
	classify  func(string) models.AssetClass
	connected atomic.Bool
	accountID string

	mu         sync.Mutex
	cash       decimal.Decimal
	orders     map[string]*models.OrderResponse
	byClientID map[string]string
	positions  map[string]*position
	prices     *priceBook

	subs     *broker.SubscriptionManager
	tickMu   sync.Mutex
	ticking  bool
	tickDone chan struct{}
}

// New creates a paper adapter funded with the configured starting cash.
// classify resolves symbols to asset classes for reference data; nil falls
// back to US_EQUITY.
func New(cfg config.PaperConfig, logger *logrus.Logger, classify func(string) models.AssetClass) *Adapter {
	if classify == nil {
		classify = func(string) models.AssetClass { return models.AssetClassUSEquity }
	}
	return &Adapter{
		logger:     logger.WithField("component", "paper_adapter"),
		cfg:        cfg,
		classify:   classify,
		accountID:  uuid.New().String(),
		cash:       decimal.NewFromFloat(cfg.StartingCash),
		orders:     make(map[string]*models.OrderResponse),
		byClientID: make(map[string]string),
		positions:  make(map[string]*position),
		prices:     newPriceBook(),
		subs:       broker.NewSubscriptionManager(models.BrokerPaper, logger),
	}
}

// ID returns the venue identity
func (p *Adapter) ID() models.BrokerID { return models.BrokerPaper }

// Capabilities returns the static capability record
func (p *Adapter) Capabilities() models.BrokerCapabilities {
	c, _ := models.DefaultCapabilities(models.BrokerPaper)
	return c
}

// Connect marks the venue ready. There is no remote endpoint to verify.
func (p *Adapter) Connect(ctx context.Context) error {
	p.connected.Store(true)
	p.logger.WithField("starting_cash", p.cfg.StartingCash).Info("Paper venue connected")
	return nil
}

// Disconnect stops streaming and clears all subscriptions
func (p *Adapter) Disconnect() error {
	p.stopTicker()
	p.subs.Clear()
	p.connected.Store(false)
	p.logger.Info("Paper venue disconnected")
	return nil
}

// IsConnected reports whether Connect has been called
func (p *Adapter) IsConnected() bool { return p.connected.Load() }

// GetAccount returns the simulated balance snapshot
func (p *Adapter) GetAccount(ctx context.Context) (*models.Account, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	equity := p.cash
	for symbol, pos := range p.positions {
		price := p.prices.last(symbol)
		equity = equity.Add(pos.qty.Mul(price))
	}
	return &models.Account{
		AccountID:      p.accountID,
		Broker:         models.BrokerPaper,
		Status:         "ACTIVE",
		Currency:       p.cfg.Currency,
		Cash:           p.cash.InexactFloat64(),
		BuyingPower:    p.cash.Mul(decimal.NewFromInt(2)).InexactFloat64(),
		Equity:         equity.InexactFloat64(),
		PortfolioValue: equity.InexactFloat64(),
	}, nil
}

// PlaceOrder executes or rests the order against the synthetic book. A
// repeated client order ID returns the original response instead of
// creating a duplicate.
func (p *Adapter) PlaceOrder(ctx context.Context, order *models.UnifiedOrder) (*models.OrderResponse, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if order.ClientOrderID != "" {
		if existing, ok := p.byClientID[order.ClientOrderID]; ok {
			resp := cloneResponse(p.orders[existing])
			p.mu.Unlock()
			return resp, nil
		}
	}

	resp, err := p.buildOrder(order)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}

	filled := false
	if p.marketable(order) {
		if err := p.fill(resp, order); err != nil {
			p.mu.Unlock()
			return nil, err
		}
		filled = true
	} else {
		resp.Status = models.OrderStatusAccepted
	}

	p.attachLegs(resp, order, filled)

	p.orders[resp.BrokerOrderID] = resp
	if resp.ClientOrderID != "" {
		p.byClientID[resp.ClientOrderID] = resp.BrokerOrderID
	}
	for i := range resp.Legs {
		leg := resp.Legs[i]
		p.orders[leg.BrokerOrderID] = &leg
	}
	out := cloneResponse(resp)
	p.mu.Unlock()

	p.emitOrderEvent(out, filled)
	p.logger.WithFields(logrus.Fields{
		"order_id": out.BrokerOrderID,
		"symbol":   out.Symbol,
		"side":     out.Side,
		"type":     out.Type,
		"status":   out.Status,
	}).Info("Paper order placed")
	return out, nil
}

// GetOrder fetches one order by the venue order ID
func (p *Adapter) GetOrder(ctx context.Context, orderID string) (*models.OrderResponse, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	resp, ok := p.orders[orderID]
	if !ok {
		return nil, models.NewBrokerError(models.BrokerPaper, models.ErrInvalidOrder,
			fmt.Sprintf("order %s not found", orderID), nil)
	}
	return cloneResponse(resp), nil
}

// GetOrders lists orders newest first
func (p *Adapter) GetOrders(ctx context.Context, filter models.OrderFilter) ([]models.OrderResponse, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	wantSymbols := make(map[string]bool, len(filter.Symbols))
	for _, s := range filter.Symbols {
		wantSymbols[strings.ToUpper(s)] = true
	}

	var out []models.OrderResponse
	for _, o := range p.orders {
		switch filter.Status {
		case "open":
			if o.Status.IsTerminal() {
				continue
			}
		case "closed":
			if !o.Status.IsTerminal() {
				continue
			}
		}
		if len(wantSymbols) > 0 && !wantSymbols[strings.ToUpper(o.Symbol)] {
			continue
		}
		if !filter.After.IsZero() && o.CreatedAt.Before(filter.After) {
			continue
		}
		if !filter.Until.IsZero() && o.CreatedAt.After(filter.Until) {
			continue
		}
		out = append(out, *cloneResponse(o))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// ModifyOrder replaces an open order: the original moves to REPLACED and a
// new order with the patched fields takes its place.
func (p *Adapter) ModifyOrder(ctx context.Context, orderID string, patch models.OrderPatch) (*models.OrderResponse, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	p.mu.Lock()

	old, ok := p.orders[orderID]
	if !ok {
		p.mu.Unlock()
		return nil, models.NewBrokerError(models.BrokerPaper, models.ErrInvalidOrder,
			fmt.Sprintf("order %s not found", orderID), nil)
	}
	if old.Status.IsTerminal() {
		p.mu.Unlock()
		return nil, models.NewBrokerError(models.BrokerPaper, models.ErrInvalidOrder,
			fmt.Sprintf("order %s is %s and cannot be modified", orderID, old.Status), nil)
	}

	replacement := cloneResponse(old)
	replacement.BrokerOrderID = newOrderID()
	replacement.Status = models.OrderStatusAccepted
	replacement.CreatedAt = time.Now().UTC()
	replacement.UpdatedAt = replacement.CreatedAt
	if patch.Qty > 0 {
		replacement.Qty = patch.Qty
	}
	if patch.LimitPrice > 0 {
		replacement.LimitPrice = patch.LimitPrice
	}
	if patch.StopPrice > 0 {
		replacement.StopPrice = patch.StopPrice
	}
	if patch.TrailPrice > 0 {
		replacement.TrailPrice = patch.TrailPrice
	}
	if patch.TimeInForce != "" {
		replacement.TimeInForce = patch.TimeInForce
	}
	if patch.ClientOrderID != "" {
		replacement.ClientOrderID = patch.ClientOrderID
	}

	now := time.Now().UTC()
	old.Status = models.OrderStatusReplaced
	old.ReplacedAt = &now
	old.ReplacedBy = replacement.BrokerOrderID
	old.UpdatedAt = now

	p.orders[replacement.BrokerOrderID] = replacement
	if replacement.ClientOrderID != "" {
		p.byClientID[replacement.ClientOrderID] = replacement.BrokerOrderID
	}
	out := cloneResponse(replacement)
	p.mu.Unlock()

	p.subs.DispatchOrderUpdate(&models.OrderUpdate{
		Event:     "replaced",
		Broker:    models.BrokerPaper,
		Order:     out,
		Timestamp: now,
	})
	return out, nil
}

// CancelOrder cancels one open order
func (p *Adapter) CancelOrder(ctx context.Context, orderID string) error {
	if err := p.ready(); err != nil {
		return err
	}
	p.mu.Lock()

	o, ok := p.orders[orderID]
	if !ok {
		p.mu.Unlock()
		return models.NewBrokerError(models.BrokerPaper, models.ErrInvalidOrder,
			fmt.Sprintf("order %s not found", orderID), nil)
	}
	if o.Status.IsTerminal() {
		p.mu.Unlock()
		return models.NewBrokerError(models.BrokerPaper, models.ErrInvalidOrder,
			fmt.Sprintf("order %s is %s and cannot be cancelled", orderID, o.Status), nil)
	}

	now := time.Now().UTC()
	o.Status = models.OrderStatusCancelled
	o.CanceledAt = &now
	o.UpdatedAt = now
	out := cloneResponse(o)
	p.mu.Unlock()

	p.subs.DispatchOrderUpdate(&models.OrderUpdate{
		Event:     "canceled",
		Broker:    models.BrokerPaper,
		Order:     out,
		Timestamp: now,
	})
	return nil
}

// CancelAllOrders cancels every open order
func (p *Adapter) CancelAllOrders(ctx context.Context) (int, error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	var open []string
	for id, o := range p.orders {
		if !o.Status.IsTerminal() {
			open = append(open, id)
		}
	}
	p.mu.Unlock()

	for _, id := range open {
		if err := p.CancelOrder(ctx, id); err != nil {
			return 0, err
		}
	}
	return len(open), nil
}

// GetPositions lists all open positions
func (p *Adapter) GetPositions(ctx context.Context) ([]models.Position, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.Position, 0, len(p.positions))
	for symbol, pos := range p.positions {
		out = append(out, p.snapshotPosition(symbol, pos))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// GetPosition returns one symbol's position, (nil, nil) when flat
func (p *Adapter) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[strings.ToUpper(symbol)]
	if !ok {
		return nil, nil
	}
	snap := p.snapshotPosition(strings.ToUpper(symbol), pos)
	return &snap, nil
}

// ClosePosition flattens all or part of one position with a market order
func (p *Adapter) ClosePosition(ctx context.Context, symbol string, req models.ClosePositionRequest) (*models.OrderResponse, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(symbol)

	p.mu.Lock()
	pos, ok := p.positions[symbol]
	if !ok {
		p.mu.Unlock()
		return nil, models.NewBrokerError(models.BrokerPaper, models.ErrInvalidOrder,
			fmt.Sprintf("no open position in %s", symbol), nil)
	}

	closeQty := pos.qty.Abs()
	if req.Qty > 0 {
		closeQty = decimal.Min(closeQty, decimal.NewFromFloat(req.Qty))
	} else if req.Percent > 0 {
		closeQty = pos.qty.Abs().Mul(decimal.NewFromFloat(req.Percent)).Div(decimal.NewFromInt(100))
	}
	side := models.OrderSideSell
	if pos.qty.Sign() < 0 {
		side = models.OrderSideBuy
	}
	p.mu.Unlock()

	return p.PlaceOrder(ctx, &models.UnifiedOrder{
		Symbol:      symbol,
		Side:        side,
		Type:        models.OrderTypeMarket,
		Qty:         closeQty.InexactFloat64(),
		TimeInForce: models.TimeInForceDay,
	})
}

// CloseAllPositions flattens every open position
func (p *Adapter) CloseAllPositions(ctx context.Context) ([]models.OrderResponse, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	symbols := make([]string, 0, len(p.positions))
	for symbol := range p.positions {
		symbols = append(symbols, symbol)
	}
	p.mu.Unlock()
	sort.Strings(symbols)

	var out []models.OrderResponse
	for _, symbol := range symbols {
		resp, err := p.ClosePosition(ctx, symbol, models.ClosePositionRequest{})
		if err != nil {
			return out, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

// buildOrder shapes the canonical response skeleton; caller holds p.mu
func (p *Adapter) buildOrder(order *models.UnifiedOrder) (*models.OrderResponse, error) {
	class := order.AssetClass
	if class == "" {
		class = p.classify(order.Symbol)
	}
	qty := order.Qty
	if order.Notional > 0 {
		price := p.prices.last(strings.ToUpper(order.Symbol))
		qty = decimal.NewFromFloat(order.Notional).Div(price).InexactFloat64()
	}
	if qty <= 0 {
		return nil, models.NewBrokerError(models.BrokerPaper, models.ErrInvalidOrder,
			"order quantity resolves to zero", nil)
	}

	now := time.Now().UTC()
	return &models.OrderResponse{
		BrokerOrderID: newOrderID(),
		ClientOrderID: order.ClientOrderID,
		Broker:        models.BrokerPaper,
		Symbol:        strings.ToUpper(order.Symbol),
		AssetClass:    class,
		Side:          order.Side,
		Type:          order.Type,
		Qty:           qty,
		Notional:      order.Notional,
		TimeInForce:   order.TimeInForce,
		LimitPrice:    order.LimitPrice,
		StopPrice:     order.StopPrice,
		TrailPrice:    order.TrailPrice,
		TrailPercent:  order.TrailPercent,
		ExtendedHours: order.ExtendedHours,
		OrderClass:    order.OrderClass,
		Status:        models.OrderStatusNew,
		CreatedAt:     now,
		UpdatedAt:     now,
		SubmittedAt:   now,
	}, nil
}

// marketable reports whether the order fills immediately; caller holds p.mu
func (p *Adapter) marketable(order *models.UnifiedOrder) bool {
	switch order.Type {
	case models.OrderTypeMarket:
		return true
	case models.OrderTypeLimit:
		price := p.prices.last(strings.ToUpper(order.Symbol))
		limit := decimal.NewFromFloat(order.LimitPrice)
		if order.Side == models.OrderSideBuy {
			return limit.GreaterThanOrEqual(price)
		}
		return limit.LessThanOrEqual(price)
	default:
		// Stop family rests until triggered; paper never triggers on its own
		return false
	}
}

// fill executes the order at the synthetic price; caller holds p.mu
func (p *Adapter) fill(resp *models.OrderResponse, order *models.UnifiedOrder) error {
	symbol := resp.Symbol
	market := p.prices.last(symbol)
	one := decimal.NewFromInt(1)

	var price decimal.Decimal
	switch {
	case order.Type == models.OrderTypeLimit && order.Side == models.OrderSideBuy:
		// Marketable limit fills at the better of limit and market
		price = decimal.Min(decimal.NewFromFloat(order.LimitPrice), market.Mul(one.Add(slippage)))
	case order.Type == models.OrderTypeLimit:
		price = decimal.Max(decimal.NewFromFloat(order.LimitPrice), market.Mul(one.Sub(slippage)))
	case order.Side == models.OrderSideBuy:
		price = market.Mul(one.Add(slippage))
	default:
		price = market.Mul(one.Sub(slippage))
	}

	qty := decimal.NewFromFloat(resp.Qty)
	cost := price.Mul(qty)

	if order.Side == models.OrderSideBuy {
		if cost.GreaterThan(p.cash) {
			return models.NewBrokerError(models.BrokerPaper, models.ErrInvalidOrder,
				fmt.Sprintf("insufficient buying power: need %s, have %s", cost.StringFixed(2), p.cash.StringFixed(2)), nil)
		}
		p.cash = p.cash.Sub(cost)
		p.applyFill(symbol, qty, price)
	} else {
		p.cash = p.cash.Add(cost)
		p.applyFill(symbol, qty.Neg(), price)
	}

	now := time.Now().UTC()
	resp.Status = models.OrderStatusFilled
	resp.FilledQty = qty.InexactFloat64()
	resp.FilledAvgPrice = price.InexactFloat64()
	resp.FilledAt = &now
	resp.UpdatedAt = now
	return nil
}

// applyFill merges a signed fill into the position book; caller holds p.mu
func (p *Adapter) applyFill(symbol string, signedQty, price decimal.Decimal) {
	pos, ok := p.positions[symbol]
	if !ok {
		pos = &position{}
		p.positions[symbol] = pos
	}

	oldQty := pos.qty
	newQty := oldQty.Add(signedQty)

	switch {
	case oldQty.IsZero():
		pos.avgEntry = price
	case oldQty.Sign() == signedQty.Sign():
		// Adding to the position: volume-weighted entry
		oldAbs := oldQty.Abs()
		addAbs := signedQty.Abs()
		pos.avgEntry = pos.avgEntry.Mul(oldAbs).Add(price.Mul(addAbs)).Div(oldAbs.Add(addAbs))
	case newQty.Sign() != 0 && newQty.Sign() != oldQty.Sign():
		// Flipped through zero: the residual opens at the fill price
		pos.avgEntry = price
	}

	pos.qty = newQty
	if pos.qty.IsZero() {
		delete(p.positions, symbol)
	}
	p.prices.set(symbol, price)
}

// attachLegs adds bracket/OCO child orders; caller holds p.mu
func (p *Adapter) attachLegs(resp *models.OrderResponse, order *models.UnifiedOrder, parentFilled bool) {
	if order.OrderClass != models.OrderClassBracket && order.OrderClass != models.OrderClassOCO {
		return
	}

	legStatus := models.OrderStatusNew
	if parentFilled {
		legStatus = models.OrderStatusAccepted
	}
	exitSide := models.OrderSideSell
	if order.Side == models.OrderSideSell {
		exitSide = models.OrderSideBuy
	}
	now := time.Now().UTC()

	leg := func(t models.OrderType, limit, stop float64) models.OrderResponse {
		return models.OrderResponse{
			BrokerOrderID: newOrderID(),
			Broker:        models.BrokerPaper,
			Symbol:        resp.Symbol,
			AssetClass:    resp.AssetClass,
			Side:          exitSide,
			Type:          t,
			Qty:           resp.Qty,
			TimeInForce:   resp.TimeInForce,
			LimitPrice:    limit,
			StopPrice:     stop,
			OrderClass:    order.OrderClass,
			Status:        legStatus,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}

	if order.TakeProfit != nil {
		resp.Legs = append(resp.Legs, leg(models.OrderTypeLimit, order.TakeProfit.LimitPrice, 0))
	}
	if order.StopLoss != nil {
		t := models.OrderTypeStop
		if order.StopLoss.LimitPrice > 0 {
			t = models.OrderTypeStopLimit
		}
		resp.Legs = append(resp.Legs, leg(t, order.StopLoss.LimitPrice, order.StopLoss.StopPrice))
	}
}

// snapshotPosition renders a canonical position; caller holds p.mu
func (p *Adapter) snapshotPosition(symbol string, pos *position) models.Position {
	current := p.prices.last(symbol)
	qty := pos.qty
	marketValue := qty.Mul(current)
	costBasis := qty.Mul(pos.avgEntry)
	unrealized := marketValue.Sub(costBasis)

	side := "long"
	if qty.Sign() < 0 {
		side = "short"
	}

	plPct := decimal.Zero
	if !costBasis.IsZero() {
		plPct = unrealized.Div(costBasis.Abs()).Mul(decimal.NewFromInt(100))
	}

	return models.Position{
		Symbol:          symbol,
		AssetClass:      p.classify(symbol),
		Broker:          models.BrokerPaper,
		Qty:             qty.InexactFloat64(),
		Side:            side,
		AvgEntryPrice:   pos.avgEntry.InexactFloat64(),
		MarketValue:     marketValue.InexactFloat64(),
		CostBasis:       costBasis.InexactFloat64(),
		UnrealizedPL:    unrealized.InexactFloat64(),
		UnrealizedPLPct: plPct.InexactFloat64(),
		CurrentPrice:    current.InexactFloat64(),
	}
}

func (p *Adapter) emitOrderEvent(resp *models.OrderResponse, filled bool) {
	event := "new"
	if filled {
		event = "fill"
	}
	p.subs.DispatchOrderUpdate(&models.OrderUpdate{
		Event:     event,
		Broker:    models.BrokerPaper,
		Order:     resp,
		FillPrice: resp.FilledAvgPrice,
		FillQty:   resp.FilledQty,
		Timestamp: time.Now().UTC(),
	})
	if !filled {
		return
	}

	p.mu.Lock()
	pos, ok := p.positions[resp.Symbol]
	var snap models.Position
	if ok {
		snap = p.snapshotPosition(resp.Symbol, pos)
	} else {
		snap = models.Position{Symbol: resp.Symbol, Broker: models.BrokerPaper, Side: "long"}
	}
	p.mu.Unlock()

	p.subs.DispatchPositionUpdate(&models.PositionUpdate{
		Broker:   models.BrokerPaper,
		Position: &snap,
	})
}

func (p *Adapter) ready() error {
	if !p.connected.Load() {
		return models.NewBrokerError(models.BrokerPaper, models.ErrConnection, "paper venue is not connected", nil)
	}
	return nil
}

func newOrderID() string {
	return uuid.New().String()
}

func cloneResponse(o *models.OrderResponse) *models.OrderResponse {
	out := *o
	if len(o.Legs) > 0 {
		out.Legs = make([]models.OrderResponse, len(o.Legs))
		copy(out.Legs, o.Legs)
	}
	return &out
}
