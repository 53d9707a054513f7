// Package binance adapts Binance spot trading to the uniform adapter
// contract. Trading and account access go through a hand-rolled signed REST
// client; market data streaming uses the official connector library and the
// user data stream runs over a raw WebSocket with a managed listen key.
//
// Spot has no position ledger, so positions are derived from non-stablecoin
// wallet balances priced against USDT. The venue addresses orders by
// (symbol, numeric id); the broker order ID encodes both as "SYMBOL:ID".
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/internal/broker"
	"github.com/tradoverse/broker-gateway/pkg/config"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

var _ broker.Adapter = (*Adapter)(nil)

// stablecoins are quote assets treated as cash, not positions.
var stablecoins = map[string]bool{
	"USDT":  true,
	"USDC":  true,
	"BUSD":  true,
	"FDUSD": true,
	"TUSD":  true,
}

// Adapter is the Binance spot venue adapter
type Adapter struct {
	logger    *logrus.Entry
	cfg       config.BinanceConfig
	strict    bool
	rest      *restClient
	subs      *broker.SubscriptionManager
	connected atomic.Bool

	marketStream *marketStream
	userStream   *userStream
}

// New creates a Binance adapter from the venue configuration. strict
// controls whether an unmapped vendor order status is a loud error instead
// of defaulting to NEW.
func New(cfg config.BinanceConfig, strict bool, logger *logrus.Logger) *Adapter {
	entry := logger.WithField("component", "binance_adapter")
	a := &Adapter{
		logger: entry,
		cfg:    cfg,
		strict: strict,
		rest:   newRESTClient(cfg.APIURL, cfg.APIKey, cfg.SecretKey, cfg.RecvWindow, entry),
		subs:   broker.NewSubscriptionManager(models.BrokerBinance, logger),
	}
	a.marketStream = newMarketStream(a)
	a.userStream = newUserStream(a)
	return a
}

// ID returns the venue identity
func (a *Adapter) ID() models.BrokerID { return models.BrokerBinance }

// Capabilities returns the static capability record
func (a *Adapter) Capabilities() models.BrokerCapabilities {
	c, _ := models.DefaultCapabilities(models.BrokerBinance)
	return c
}

// Connect verifies the credential pair with one signed account read
func (a *Adapter) Connect(ctx context.Context) error {
	var w wireAccount
	if err := a.rest.signed(ctx, "GET", "/api/v3/account", nil, &w); err != nil {
		if kind := models.ErrorKind(err); kind == models.ErrAuthenticationFailed {
			return err
		}
		return models.NewBrokerError(models.BrokerBinance, models.ErrConnection,
			"credential verification call failed", err)
	}
	a.connected.Store(true)
	a.logger.WithField("environment", a.cfg.Environment).Info("Binance connected")
	return nil
}

// Disconnect tears down both streams and clears all subscriptions
func (a *Adapter) Disconnect() error {
	a.marketStream.stop()
	a.userStream.stop()
	a.subs.Clear()
	a.connected.Store(false)
	a.logger.Info("Binance disconnected")
	return nil
}

// IsConnected reports whether Connect succeeded
func (a *Adapter) IsConnected() bool { return a.connected.Load() }

// GetAccount fetches the wallet and normalizes it into a balance snapshot.
// Cash is the free stablecoin total; equity adds every other balance priced
// against USDT. Spot has no margin, so buying power equals cash.
func (a *Adapter) GetAccount(ctx context.Context) (*models.Account, error) {
	var w wireAccount
	if err := a.rest.signed(ctx, "GET", "/api/v3/account", nil, &w); err != nil {
		return nil, err
	}
	prices, err := a.fetchPrices(ctx)
	if err != nil {
		return nil, err
	}

	var cash, equity float64
	for _, b := range w.Balances {
		total := parseFloat(b.Free) + parseFloat(b.Locked)
		if total == 0 {
			continue
		}
		if stablecoins[b.Asset] {
			cash += parseFloat(b.Free)
			equity += total
			continue
		}
		if price, ok := prices[b.Asset+"USDT"]; ok {
			equity += total * price
		}
	}

	status := "INACTIVE"
	if w.CanTrade {
		status = "ACTIVE"
	}
	return &models.Account{
		AccountID:      w.AccountType,
		Broker:         models.BrokerBinance,
		Status:         status,
		Currency:       "USDT",
		Cash:           cash,
		BuyingPower:    cash,
		Equity:         equity,
		PortfolioValue: equity,
	}, nil
}

// PlaceOrder submits a canonical order translated into the vendor schema.
// OCO groups go to the dedicated order-list endpoint; brackets and trailing
// stops are not expressible on spot and are rejected.
func (a *Adapter) PlaceOrder(ctx context.Context, order *models.UnifiedOrder) (*models.OrderResponse, error) {
	switch order.OrderClass {
	case "", models.OrderClassSimple:
		return a.placeSimple(ctx, order)
	case models.OrderClassOCO:
		return a.placeOCO(ctx, order)
	default:
		return nil, models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder,
			fmt.Sprintf("order class %q is not supported on spot", order.OrderClass), nil)
	}
}

func (a *Adapter) placeSimple(ctx context.Context, order *models.UnifiedOrder) (*models.OrderResponse, error) {
	params, err := a.buildOrderParams(order)
	if err != nil {
		return nil, err
	}
	params.Set("newOrderRespType", "FULL")

	var w wireOrder
	if err := a.rest.signed(ctx, "POST", "/api/v3/order", params, &w); err != nil {
		return nil, err
	}
	resp, err := a.translateOrder(&w)
	if err != nil {
		return nil, err
	}
	resp.AssetClass = models.AssetClassCrypto
	return resp, nil
}

// placeOCO submits a take-profit limit leg paired with a stop-loss leg.
func (a *Adapter) placeOCO(ctx context.Context, order *models.UnifiedOrder) (*models.OrderResponse, error) {
	if order.TakeProfit == nil || order.StopLoss == nil {
		return nil, models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder,
			"OCO orders need both take profit and stop loss legs", nil)
	}
	vendorSide, ok := sideToVendor[order.Side]
	if !ok {
		return nil, models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder,
			fmt.Sprintf("unsupported side %q", order.Side), nil)
	}
	if order.Qty <= 0 {
		return nil, models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder,
			"OCO orders need an explicit quantity", nil)
	}

	params := url.Values{}
	params.Set("symbol", vendorSymbol(order.Symbol))
	params.Set("side", vendorSide)
	params.Set("quantity", formatFloat(order.Qty))
	params.Set("price", formatFloat(order.TakeProfit.LimitPrice))
	params.Set("stopPrice", formatFloat(order.StopLoss.StopPrice))
	if order.StopLoss.LimitPrice > 0 {
		params.Set("stopLimitPrice", formatFloat(order.StopLoss.LimitPrice))
		params.Set("stopLimitTimeInForce", "GTC")
	}
	if order.ClientOrderID != "" {
		params.Set("listClientOrderId", order.ClientOrderID)
	}

	var w wireOCOOrder
	if err := a.rest.signed(ctx, "POST", "/api/v3/order/oco", params, &w); err != nil {
		return nil, err
	}

	resp := &models.OrderResponse{
		BrokerOrderID: listOrderID(w.Symbol, w.OrderListID),
		ClientOrderID: order.ClientOrderID,
		Broker:        models.BrokerBinance,
		Symbol:        canonicalSymbol(w.Symbol),
		AssetClass:    models.AssetClassCrypto,
		Side:          order.Side,
		Type:          order.Type,
		Qty:           order.Qty,
		TimeInForce:   models.TimeInForceGTC,
		OrderClass:    models.OrderClassOCO,
		Status:        models.OrderStatusAccepted,
		CreatedAt:     time.UnixMilli(w.TransactionTime),
	}
	for i := range w.OrderReports {
		leg, err := a.translateOrder(&w.OrderReports[i])
		if err != nil {
			return nil, err
		}
		resp.Legs = append(resp.Legs, *leg)
	}
	return resp, nil
}

// GetOrder fetches one order by its composite "SYMBOL:ID" identifier.
// "SYMBOL:list:ID" identifiers issued for OCO groups resolve through the
// order-list endpoint instead.
func (a *Adapter) GetOrder(ctx context.Context, orderID string) (*models.OrderResponse, error) {
	symbol, id, isList, err := splitOrderID(orderID)
	if err != nil {
		return nil, err
	}
	if isList {
		return a.getOrderList(ctx, id)
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(id, 10))

	var w wireOrder
	if err := a.rest.signed(ctx, "GET", "/api/v3/order", params, &w); err != nil {
		return nil, err
	}
	return a.translateOrder(&w)
}

// getOrderList reassembles an OCO group. The order-list query returns only
// thin leg references, so each leg is fetched individually to recover its
// status and fills.
func (a *Adapter) getOrderList(ctx context.Context, listID int64) (*models.OrderResponse, error) {
	params := url.Values{}
	params.Set("orderListId", strconv.FormatInt(listID, 10))

	var w wireOCOOrder
	if err := a.rest.signed(ctx, "GET", "/api/v3/orderList", params, &w); err != nil {
		return nil, err
	}

	resp := &models.OrderResponse{
		BrokerOrderID: listOrderID(w.Symbol, w.OrderListID),
		ClientOrderID: w.ListClientOrderID,
		Broker:        models.BrokerBinance,
		Symbol:        canonicalSymbol(w.Symbol),
		AssetClass:    models.AssetClassCrypto,
		TimeInForce:   models.TimeInForceGTC,
		OrderClass:    models.OrderClassOCO,
		CreatedAt:     time.UnixMilli(w.TransactionTime),
	}
	for _, ref := range w.Orders {
		leg, err := a.GetOrder(ctx, fmt.Sprintf("%s:%d", ref.Symbol, ref.OrderID))
		if err != nil {
			return nil, err
		}
		resp.Legs = append(resp.Legs, *leg)
	}
	if len(resp.Legs) > 0 {
		resp.Side = resp.Legs[0].Side
		resp.Type = resp.Legs[0].Type
		resp.Qty = resp.Legs[0].Qty
	}
	resp.Status = listStatus(w.ListOrderStatus, resp.Legs)
	return resp, nil
}

// GetOrders lists orders matching the filter. Open orders are listable
// account-wide; closed-order history is symbol-scoped on this venue, so a
// non-open query needs at least one symbol in the filter.
func (a *Adapter) GetOrders(ctx context.Context, filter models.OrderFilter) ([]models.OrderResponse, error) {
	if filter.Status == "" || filter.Status == "open" {
		return a.openOrders(ctx, filter)
	}
	if len(filter.Symbols) == 0 {
		return nil, models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder,
			"order history queries need at least one symbol on this venue", nil)
	}

	var out []models.OrderResponse
	for _, symbol := range filter.Symbols {
		params := url.Values{}
		params.Set("symbol", vendorSymbol(symbol))
		if !filter.After.IsZero() {
			params.Set("startTime", strconv.FormatInt(filter.After.UnixMilli(), 10))
		}
		if !filter.Until.IsZero() {
			params.Set("endTime", strconv.FormatInt(filter.Until.UnixMilli(), 10))
		}
		if filter.Limit > 0 {
			params.Set("limit", strconv.Itoa(filter.Limit))
		}

		var wires []wireOrder
		if err := a.rest.signed(ctx, "GET", "/api/v3/allOrders", params, &wires); err != nil {
			return nil, err
		}
		for i := range wires {
			if filter.Status == "closed" && !statusFromVendor[wires[i].Status].IsTerminal() {
				continue
			}
			resp, err := a.translateOrder(&wires[i])
			if err != nil {
				return nil, err
			}
			out = append(out, *resp)
		}
	}
	return out, nil
}

func (a *Adapter) openOrders(ctx context.Context, filter models.OrderFilter) ([]models.OrderResponse, error) {
	params := url.Values{}
	if len(filter.Symbols) == 1 {
		params.Set("symbol", vendorSymbol(filter.Symbols[0]))
	}
	var wires []wireOrder
	if err := a.rest.signed(ctx, "GET", "/api/v3/openOrders", params, &wires); err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(filter.Symbols))
	for _, s := range filter.Symbols {
		want[vendorSymbol(s)] = true
	}
	out := make([]models.OrderResponse, 0, len(wires))
	for i := range wires {
		if len(want) > 0 && !want[wires[i].Symbol] {
			continue
		}
		resp, err := a.translateOrder(&wires[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

// ModifyOrder emulates an in-place amendment: spot has no modify endpoint,
// so the open order is cancelled and resubmitted with the patched fields.
// The returned order is the replacement and carries a fresh venue id.
func (a *Adapter) ModifyOrder(ctx context.Context, orderID string, patch models.OrderPatch) (*models.OrderResponse, error) {
	existing, err := a.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if existing.OrderClass == models.OrderClassOCO {
		return nil, models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder,
			fmt.Sprintf("order list %s cannot be modified, cancel and resubmit the pair", orderID), nil)
	}
	if existing.Status.IsTerminal() {
		return nil, models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder,
			fmt.Sprintf("order %s is %s and cannot be modified", orderID, existing.Status), nil)
	}

	replacement := &models.UnifiedOrder{
		Symbol:      existing.Symbol,
		AssetClass:  models.AssetClassCrypto,
		Side:        existing.Side,
		Type:        existing.Type,
		Qty:         existing.Qty - existing.FilledQty,
		TimeInForce: existing.TimeInForce,
		LimitPrice:  existing.LimitPrice,
		StopPrice:   existing.StopPrice,
	}
	if patch.Qty > 0 {
		replacement.Qty = patch.Qty
	}
	if patch.LimitPrice > 0 {
		replacement.LimitPrice = patch.LimitPrice
	}
	if patch.StopPrice > 0 {
		replacement.StopPrice = patch.StopPrice
	}
	if patch.TimeInForce != "" {
		replacement.TimeInForce = patch.TimeInForce
	}
	if patch.ClientOrderID != "" {
		replacement.ClientOrderID = patch.ClientOrderID
	}

	if err := a.CancelOrder(ctx, orderID); err != nil {
		return nil, err
	}
	resp, err := a.placeSimple(ctx, replacement)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	resp.ReplacedAt = &now
	return resp, nil
}

// CancelOrder cancels one open order. An OCO identifier cancels the whole
// list, taking both legs down together.
func (a *Adapter) CancelOrder(ctx context.Context, orderID string) error {
	symbol, id, isList, err := splitOrderID(orderID)
	if err != nil {
		return err
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	if isList {
		params.Set("orderListId", strconv.FormatInt(id, 10))
		return a.rest.signed(ctx, "DELETE", "/api/v3/orderList", params, nil)
	}
	params.Set("orderId", strconv.FormatInt(id, 10))
	return a.rest.signed(ctx, "DELETE", "/api/v3/order", params, nil)
}

// CancelAllOrders cancels every open order across all symbols, returning
// how many the venue acknowledged. The venue only cancels per symbol, so
// open orders are grouped first.
func (a *Adapter) CancelAllOrders(ctx context.Context) (int, error) {
	var wires []wireOrder
	if err := a.rest.signed(ctx, "GET", "/api/v3/openOrders", nil, &wires); err != nil {
		return 0, err
	}
	bySymbol := make(map[string]int)
	for _, w := range wires {
		bySymbol[w.Symbol]++
	}

	n := 0
	for symbol, count := range bySymbol {
		params := url.Values{}
		params.Set("symbol", symbol)
		if err := a.rest.signed(ctx, "DELETE", "/api/v3/openOrders", params, nil); err != nil {
			a.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to cancel open orders for symbol")
			continue
		}
		n += count
	}
	return n, nil
}

// GetPositions derives positions from non-stablecoin wallet balances priced
// against USDT. Entry prices are not tracked by the venue, so cost basis and
// unrealized P&L stay zero.
func (a *Adapter) GetPositions(ctx context.Context) ([]models.Position, error) {
	var w wireAccount
	if err := a.rest.signed(ctx, "GET", "/api/v3/account", nil, &w); err != nil {
		return nil, err
	}
	prices, err := a.fetchPrices(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Position, 0, len(w.Balances))
	for _, b := range w.Balances {
		pos, ok := balancePosition(b, prices)
		if ok {
			out = append(out, pos)
		}
	}
	return out, nil
}

// GetPosition returns one symbol's balance-derived position, (nil, nil)
// when the wallet holds none of the base asset.
func (a *Adapter) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	base := baseAsset(symbol)
	var w wireAccount
	if err := a.rest.signed(ctx, "GET", "/api/v3/account", nil, &w); err != nil {
		return nil, err
	}
	for _, b := range w.Balances {
		if b.Asset != base {
			continue
		}
		prices, err := a.fetchPrices(ctx)
		if err != nil {
			return nil, err
		}
		pos, ok := balancePosition(b, prices)
		if !ok {
			return nil, nil
		}
		return &pos, nil
	}
	return nil, nil
}

// ClosePosition sells all or part of the base asset at market
func (a *Adapter) ClosePosition(ctx context.Context, symbol string, req models.ClosePositionRequest) (*models.OrderResponse, error) {
	pos, err := a.GetPosition(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder,
			fmt.Sprintf("no position in %s to close", symbol), nil)
	}

	qty := pos.Qty
	switch {
	case req.Qty > 0:
		qty = req.Qty
	case req.Percent > 0:
		qty = pos.Qty * req.Percent / 100
	}

	return a.placeSimple(ctx, &models.UnifiedOrder{
		Symbol:      symbol,
		AssetClass:  models.AssetClassCrypto,
		Side:        models.OrderSideSell,
		Type:        models.OrderTypeMarket,
		Qty:         qty,
		TimeInForce: models.TimeInForceGTC,
	})
}

// CloseAllPositions market-sells every balance-derived position
func (a *Adapter) CloseAllPositions(ctx context.Context) ([]models.OrderResponse, error) {
	positions, err := a.GetPositions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.OrderResponse, 0, len(positions))
	for _, pos := range positions {
		resp, err := a.placeSimple(ctx, &models.UnifiedOrder{
			Symbol:      pos.Symbol,
			AssetClass:  models.AssetClassCrypto,
			Side:        models.OrderSideSell,
			Type:        models.OrderTypeMarket,
			Qty:         pos.Qty,
			TimeInForce: models.TimeInForceGTC,
		})
		if err != nil {
			a.logger.WithError(err).WithField("symbol", pos.Symbol).Warn("Failed to close position")
			continue
		}
		out = append(out, *resp)
	}
	return out, nil
}

// GetAsset fetches exchange reference data for one pair
func (a *Adapter) GetAsset(ctx context.Context, symbol string) (*models.Asset, error) {
	params := url.Values{}
	params.Set("symbol", vendorSymbol(symbol))
	var w wireExchangeInfo
	if err := a.rest.public(ctx, "/api/v3/exchangeInfo", params, &w); err != nil {
		return nil, err
	}
	if len(w.Symbols) == 0 {
		return nil, models.NewBrokerError(models.BrokerBinance, models.ErrUnknown,
			fmt.Sprintf("symbol %s is not listed", symbol), nil)
	}
	asset := translateSymbolInfo(&w.Symbols[0])
	return &asset, nil
}

// GetAssets lists tradable spot pairs. Everything on this venue is crypto,
// so any other asset class yields an empty list.
func (a *Adapter) GetAssets(ctx context.Context, assetClass models.AssetClass) ([]models.Asset, error) {
	if assetClass != "" && assetClass != models.AssetClassCrypto {
		return nil, nil
	}
	var w wireExchangeInfo
	if err := a.rest.public(ctx, "/api/v3/exchangeInfo", nil, &w); err != nil {
		return nil, err
	}
	out := make([]models.Asset, 0, len(w.Symbols))
	for i := range w.Symbols {
		if w.Symbols[i].Status != "TRADING" {
			continue
		}
		out = append(out, translateSymbolInfo(&w.Symbols[i]))
	}
	return out, nil
}

// GetOptionChain is not available on the spot venue
func (a *Adapter) GetOptionChain(ctx context.Context, underlying string) ([]models.OptionContract, error) {
	return nil, models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder,
		"options are not traded on this venue", nil)
}

// GetNews is not offered by the venue; callers get an empty result
func (a *Adapter) GetNews(ctx context.Context, symbols []string, limit int) ([]models.NewsItem, error) {
	return []models.NewsItem{}, nil
}

// buildOrderParams translates the canonical order into signed query params
func (a *Adapter) buildOrderParams(order *models.UnifiedOrder) (url.Values, error) {
	vendorType, ok := orderTypeToVendor[order.Type]
	if !ok {
		return nil, models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder,
			fmt.Sprintf("unsupported order type %q", order.Type), nil)
	}
	vendorSide, ok := sideToVendor[order.Side]
	if !ok {
		return nil, models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder,
			fmt.Sprintf("unsupported side %q", order.Side), nil)
	}

	params := url.Values{}
	params.Set("symbol", vendorSymbol(order.Symbol))
	params.Set("side", vendorSide)
	params.Set("type", vendorType)

	switch {
	case order.Qty > 0:
		params.Set("quantity", formatFloat(order.Qty))
	case order.Notional > 0 && order.Type == models.OrderTypeMarket:
		params.Set("quoteOrderQty", formatFloat(order.Notional))
	default:
		return nil, models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder,
			"order needs a quantity, or a notional for market orders", nil)
	}

	// Market and plain stop orders reject an explicit timeInForce.
	if order.Type == models.OrderTypeLimit || order.Type == models.OrderTypeStopLimit {
		vendorTIF, ok := tifToVendor[order.TimeInForce]
		if !ok {
			return nil, models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder,
				fmt.Sprintf("unsupported time in force %q", order.TimeInForce), nil)
		}
		params.Set("timeInForce", vendorTIF)
	}
	if order.LimitPrice > 0 {
		params.Set("price", formatFloat(order.LimitPrice))
	}
	if order.StopPrice > 0 {
		params.Set("stopPrice", formatFloat(order.StopPrice))
	}
	if order.ClientOrderID != "" {
		params.Set("newClientOrderId", order.ClientOrderID)
	}
	return params, nil
}

// translateOrder maps a vendor order onto the canonical response
func (a *Adapter) translateOrder(w *wireOrder) (*models.OrderResponse, error) {
	status, ok := mapStatus(w.Status)
	if !ok {
		if a.strict {
			return nil, models.NewBrokerError(models.BrokerBinance, models.ErrUnknown,
				fmt.Sprintf("unmapped vendor order status %q", w.Status), nil)
		}
		a.logger.WithField("status", w.Status).Warn("Unmapped vendor order status, defaulting to NEW")
	}

	filledQty := parseFloat(w.ExecutedQty)
	var avgPrice float64
	if filledQty > 0 {
		avgPrice = parseFloat(w.CummulativeQuoteQty) / filledQty
	}

	created := w.TransactTime
	if created == 0 {
		created = w.Time
	}
	resp := &models.OrderResponse{
		BrokerOrderID:  fmt.Sprintf("%s:%d", w.Symbol, w.OrderID),
		ClientOrderID:  w.ClientOrderID,
		Broker:         models.BrokerBinance,
		Symbol:         canonicalSymbol(w.Symbol),
		AssetClass:     models.AssetClassCrypto,
		Side:           sideFromVendor[w.Side],
		Type:           orderTypeFromVendor[w.Type],
		Qty:            parseFloat(w.OrigQty),
		TimeInForce:    tifFromVendor[w.TimeInForce],
		LimitPrice:     parseFloat(w.Price),
		StopPrice:      parseFloat(w.StopPrice),
		OrderClass:     models.OrderClassSimple,
		Status:         status,
		FilledQty:      filledQty,
		FilledAvgPrice: avgPrice,
	}
	if w.OrderListID > 0 {
		resp.OrderClass = models.OrderClassOCO
	}
	if created > 0 {
		resp.CreatedAt = time.UnixMilli(created)
	}
	if w.UpdateTime > 0 {
		resp.UpdatedAt = time.UnixMilli(w.UpdateTime)
	}
	if status == models.OrderStatusFilled && resp.UpdatedAt != (time.Time{}) {
		filledAt := resp.UpdatedAt
		resp.FilledAt = &filledAt
	}
	return resp, nil
}

// fetchPrices loads the full spot price map in one unauthenticated call
func (a *Adapter) fetchPrices(ctx context.Context) (map[string]float64, error) {
	var wires []wirePrice
	if err := a.rest.public(ctx, "/api/v3/ticker/price", nil, &wires); err != nil {
		return nil, err
	}
	prices := make(map[string]float64, len(wires))
	for _, w := range wires {
		prices[w.Symbol] = parseFloat(w.Price)
	}
	return prices, nil
}

func balancePosition(b wireBalance, prices map[string]float64) (models.Position, bool) {
	if stablecoins[b.Asset] {
		return models.Position{}, false
	}
	qty := parseFloat(b.Free) + parseFloat(b.Locked)
	if qty == 0 {
		return models.Position{}, false
	}
	price := prices[b.Asset+"USDT"]
	return models.Position{
		Symbol:       b.Asset + "/USDT",
		AssetClass:   models.AssetClassCrypto,
		Broker:       models.BrokerBinance,
		Qty:          qty,
		Side:         "long",
		CurrentPrice: price,
		MarketValue:  qty * price,
	}, true
}

func translateSymbolInfo(w *wireSymbolInfo) models.Asset {
	return models.Asset{
		Symbol:       w.BaseAsset + "/" + w.QuoteAsset,
		Name:         w.Symbol,
		AssetClass:   models.AssetClassCrypto,
		Exchange:     "BINANCE",
		Tradable:     w.Status == "TRADING" && w.IsSpotTradingAllowed,
		Fractionable: true,
	}
}

// baseAsset extracts the base asset from a canonical or vendor symbol
func baseAsset(symbol string) string {
	vendor := vendorSymbol(symbol)
	pair := canonicalSymbol(vendor)
	if base, _, found := strings.Cut(pair, "/"); found {
		return base
	}
	return vendor
}

// listOrderID renders the composite identifier for an OCO order list
func listOrderID(vendorSymbol string, orderListID int64) string {
	return fmt.Sprintf("%s:list:%d", vendorSymbol, orderListID)
}

// splitOrderID decodes the composite broker order identifier. Plain orders
// use "SYMBOL:ID"; OCO groups use "SYMBOL:list:ID" and report isList true,
// with the returned id being the venue's orderListId.
func splitOrderID(orderID string) (symbol string, id int64, isList bool, err error) {
	symbol, rest, found := strings.Cut(orderID, ":")
	if found && symbol != "" {
		if tail, ok := strings.CutPrefix(rest, "list:"); ok {
			rest = tail
			isList = true
		}
		if id, err = strconv.ParseInt(rest, 10, 64); err == nil {
			return symbol, id, isList, nil
		}
	}
	return "", 0, false, models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder,
		fmt.Sprintf("malformed order id %q, want SYMBOL:ID or SYMBOL:list:ID", orderID), nil)
}

// listStatus derives the canonical status of an OCO group from the venue's
// list status and the live state of its legs. One filled leg fills the
// group; both legs terminal without a fill means the pair was taken down.
func listStatus(vendorListStatus string, legs []models.OrderResponse) models.OrderStatus {
	if vendorListStatus == "REJECT" {
		return models.OrderStatusRejected
	}
	terminal := len(legs) > 0
	for i := range legs {
		if legs[i].Status == models.OrderStatusFilled {
			return models.OrderStatusFilled
		}
		if !legs[i].Status.IsTerminal() {
			terminal = false
		}
	}
	if terminal {
		return models.OrderStatusCancelled
	}
	return models.OrderStatusAccepted
}

// symbolsParam renders a JSON array query parameter for batched tickers
func symbolsParam(vendorSymbols []string) string {
	raw, _ := json.Marshal(vendorSymbols)
	return string(raw)
}
