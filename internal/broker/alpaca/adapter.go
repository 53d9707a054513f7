// Package alpaca adapts the Alpaca brokerage to the uniform adapter
// contract. Trading goes through a hand-rolled REST client against the v2
// trading API, market data through the official marketdata client, and
// streaming through the v2 market-data and trade-updates WebSocket feeds.
package alpaca

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/internal/broker"
	"github.com/tradoverse/broker-gateway/pkg/config"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

var _ broker.Adapter = (*Adapter)(nil)

// Adapter is the Alpaca venue adapter
type Adapter struct {
	logger    *logrus.Entry
	cfg       config.AlpacaConfig
	strict    bool
	rest      *restClient
	md        *marketdata.Client
	subs      *broker.SubscriptionManager
	connected atomic.Bool

	marketStream *marketStream
	tradeStream  *tradeStream
}

// New creates an Alpaca adapter from the venue configuration. strict
// controls whether an unmapped vendor order status is a loud error instead
// of defaulting to NEW.
func New(cfg config.AlpacaConfig, strict bool, logger *logrus.Logger) *Adapter {
	entry := logger.WithField("component", "alpaca_adapter")
	a := &Adapter{
		logger: entry,
		cfg:    cfg,
		strict: strict,
		rest:   newRESTClient(cfg.APIURL, cfg.APIKey, cfg.APISecret, entry),
		md: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.DataURL,
		}),
		subs: broker.NewSubscriptionManager(models.BrokerAlpaca, logger),
	}
	a.marketStream = newMarketStream(a)
	a.tradeStream = newTradeStream(a)
	return a
}

// ID returns the venue identity
func (a *Adapter) ID() models.BrokerID { return models.BrokerAlpaca }

// Capabilities returns the static capability record
func (a *Adapter) Capabilities() models.BrokerCapabilities {
	c, _ := models.DefaultCapabilities(models.BrokerAlpaca)
	return c
}

// Connect verifies the credential pair with one authenticated account read
func (a *Adapter) Connect(ctx context.Context) error {
	if _, err := a.fetchAccount(ctx); err != nil {
		if errors.Is(err, models.ErrAuthenticationFailed) {
			return err
		}
		return models.NewBrokerError(models.BrokerAlpaca, models.ErrConnection,
			"credential verification call failed", err)
	}
	a.connected.Store(true)
	a.logger.WithField("environment", a.cfg.Environment).Info("Alpaca connected")
	return nil
}

// Disconnect tears down both streams and clears all subscriptions
func (a *Adapter) Disconnect() error {
	a.marketStream.stop()
	a.tradeStream.stop()
	a.subs.Clear()
	a.connected.Store(false)
	a.logger.Info("Alpaca disconnected")
	return nil
}

// IsConnected reports whether Connect succeeded
func (a *Adapter) IsConnected() bool { return a.connected.Load() }

// GetAccount fetches the normalized balance snapshot
func (a *Adapter) GetAccount(ctx context.Context) (*models.Account, error) {
	return a.fetchAccount(ctx)
}

func (a *Adapter) fetchAccount(ctx context.Context) (*models.Account, error) {
	var w wireAccount
	if err := a.rest.do(ctx, "GET", "/v2/account", nil, nil, &w); err != nil {
		return nil, err
	}
	return &models.Account{
		AccountID:         w.AccountNumber,
		Broker:            models.BrokerAlpaca,
		Status:            w.Status,
		Currency:          w.Currency,
		Cash:              parseFloat(w.Cash),
		BuyingPower:       parseFloat(w.BuyingPower),
		Equity:            parseFloat(w.Equity),
		PortfolioValue:    parseFloat(w.PortfolioValue),
		InitialMargin:     parseFloat(w.InitialMargin),
		MaintenanceMargin: parseFloat(w.MaintenanceMargin),
		DaytradeCount:     w.DaytradeCount,
		PatternDayTrader:  w.PatternDayTrader,
		CreatedAt:         w.CreatedAt,
	}, nil
}

// PlaceOrder submits a canonical order translated into the vendor schema
func (a *Adapter) PlaceOrder(ctx context.Context, order *models.UnifiedOrder) (*models.OrderResponse, error) {
	req, err := a.buildOrderRequest(order)
	if err != nil {
		return nil, err
	}
	var w wireOrder
	if err := a.rest.do(ctx, "POST", "/v2/orders", nil, req, &w); err != nil {
		return nil, err
	}
	resp, err := a.translateOrder(&w)
	if err != nil {
		return nil, err
	}
	resp.AssetClass = order.AssetClass
	return resp, nil
}

// GetOrder fetches one order by the venue order ID
func (a *Adapter) GetOrder(ctx context.Context, orderID string) (*models.OrderResponse, error) {
	var w wireOrder
	if err := a.rest.do(ctx, "GET", "/v2/orders/"+orderID, nil, nil, &w); err != nil {
		return nil, err
	}
	return a.translateOrder(&w)
}

// GetOrders lists orders matching the filter, newest first
func (a *Adapter) GetOrders(ctx context.Context, filter models.OrderFilter) ([]models.OrderResponse, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if len(filter.Symbols) > 0 {
		q.Set("symbols", strings.Join(filter.Symbols, ","))
	}
	if !filter.After.IsZero() {
		q.Set("after", filter.After.Format(time.RFC3339))
	}
	if !filter.Until.IsZero() {
		q.Set("until", filter.Until.Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	q.Set("direction", "desc")

	var wires []wireOrder
	if err := a.rest.do(ctx, "GET", "/v2/orders", q, nil, &wires); err != nil {
		return nil, err
	}
	out := make([]models.OrderResponse, 0, len(wires))
	for i := range wires {
		resp, err := a.translateOrder(&wires[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

// ModifyOrder patches an open order in place
func (a *Adapter) ModifyOrder(ctx context.Context, orderID string, patch models.OrderPatch) (*models.OrderResponse, error) {
	req := patchRequest{ClientOrderID: patch.ClientOrderID}
	if patch.Qty > 0 {
		req.Qty = formatFloat(patch.Qty)
	}
	if patch.LimitPrice > 0 {
		req.LimitPrice = formatFloat(patch.LimitPrice)
	}
	if patch.StopPrice > 0 {
		req.StopPrice = formatFloat(patch.StopPrice)
	}
	if patch.TrailPrice > 0 {
		req.Trail = formatFloat(patch.TrailPrice)
	}
	if patch.TimeInForce != "" {
		vendor, ok := tifToVendor[patch.TimeInForce]
		if !ok {
			return nil, models.NewBrokerError(models.BrokerAlpaca, models.ErrInvalidOrder,
				fmt.Sprintf("unsupported time in force %q", patch.TimeInForce), nil)
		}
		req.TimeInForce = vendor
	}

	var w wireOrder
	if err := a.rest.do(ctx, "PATCH", "/v2/orders/"+orderID, nil, req, &w); err != nil {
		return nil, err
	}
	return a.translateOrder(&w)
}

// CancelOrder cancels one open order
func (a *Adapter) CancelOrder(ctx context.Context, orderID string) error {
	return a.rest.do(ctx, "DELETE", "/v2/orders/"+orderID, nil, nil, nil)
}

// CancelAllOrders cancels every open order, returning how many the venue
// acknowledged.
func (a *Adapter) CancelAllOrders(ctx context.Context) (int, error) {
	var results []cancelAllResult
	if err := a.rest.do(ctx, "DELETE", "/v2/orders", nil, nil, &results); err != nil {
		return 0, err
	}
	n := 0
	for _, r := range results {
		if r.Status < 400 {
			n++
		}
	}
	return n, nil
}

// GetPositions lists all open positions
func (a *Adapter) GetPositions(ctx context.Context) ([]models.Position, error) {
	var wires []wirePosition
	if err := a.rest.do(ctx, "GET", "/v2/positions", nil, nil, &wires); err != nil {
		return nil, err
	}
	out := make([]models.Position, 0, len(wires))
	for i := range wires {
		out = append(out, translatePosition(&wires[i]))
	}
	return out, nil
}

// GetPosition returns one symbol's position, (nil, nil) when flat
func (a *Adapter) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	var w wirePosition
	err := a.rest.do(ctx, "GET", "/v2/positions/"+positionSymbol(symbol), nil, nil, &w)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	pos := translatePosition(&w)
	return &pos, nil
}

// ClosePosition flattens all or part of one position
func (a *Adapter) ClosePosition(ctx context.Context, symbol string, req models.ClosePositionRequest) (*models.OrderResponse, error) {
	q := url.Values{}
	if req.Qty > 0 {
		q.Set("qty", formatFloat(req.Qty))
	} else if req.Percent > 0 {
		q.Set("percentage", formatFloat(req.Percent))
	}
	var w wireOrder
	if err := a.rest.do(ctx, "DELETE", "/v2/positions/"+positionSymbol(symbol), q, nil, &w); err != nil {
		return nil, err
	}
	return a.translateOrder(&w)
}

// CloseAllPositions flattens every open position
func (a *Adapter) CloseAllPositions(ctx context.Context) ([]models.OrderResponse, error) {
	var results []closeAllResult
	if err := a.rest.do(ctx, "DELETE", "/v2/positions", nil, nil, &results); err != nil {
		return nil, err
	}
	out := make([]models.OrderResponse, 0, len(results))
	for i := range results {
		if results[i].Status >= 400 {
			continue
		}
		resp, err := a.translateOrder(&results[i].Body)
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

// GetAsset fetches reference data for one instrument
func (a *Adapter) GetAsset(ctx context.Context, symbol string) (*models.Asset, error) {
	var w wireAsset
	if err := a.rest.do(ctx, "GET", "/v2/assets/"+url.PathEscape(symbol), nil, nil, &w); err != nil {
		return nil, err
	}
	asset := translateAsset(&w)
	return &asset, nil
}

// GetAssets lists active instruments, optionally narrowed to one class
func (a *Adapter) GetAssets(ctx context.Context, assetClass models.AssetClass) ([]models.Asset, error) {
	q := url.Values{}
	q.Set("status", "active")
	if assetClass != "" {
		vendor, ok := assetClassToVendor[assetClass]
		if !ok {
			return nil, models.NewBrokerError(models.BrokerAlpaca, models.ErrInvalidOrder,
				fmt.Sprintf("asset class %s is not listable on this venue", assetClass), nil)
		}
		q.Set("asset_class", vendor)
	}
	var wires []wireAsset
	if err := a.rest.do(ctx, "GET", "/v2/assets", q, nil, &wires); err != nil {
		return nil, err
	}
	out := make([]models.Asset, 0, len(wires))
	for i := range wires {
		out = append(out, translateAsset(&wires[i]))
	}
	return out, nil
}

// GetOptionChain lists contracts for one underlying
func (a *Adapter) GetOptionChain(ctx context.Context, underlying string) ([]models.OptionContract, error) {
	q := url.Values{}
	q.Set("underlying_symbols", strings.ToUpper(underlying))
	q.Set("limit", "500")

	var out []models.OptionContract
	for {
		var page wireOptionContracts
		if err := a.rest.do(ctx, "GET", "/v2/options/contracts", q, nil, &page); err != nil {
			return nil, err
		}
		for _, w := range page.OptionContracts {
			expiry, _ := time.Parse("2006-01-02", w.ExpirationDate)
			out = append(out, models.OptionContract{
				Symbol:         w.Symbol,
				Underlying:     w.UnderlyingSymbol,
				ContractType:   w.Type,
				StrikePrice:    parseFloat(w.StrikePrice),
				ExpirationDate: expiry,
				OpenInterest:   parseFloat(w.OpenInterest),
				ClosePrice:     parseFloat(w.ClosePrice),
				Tradable:       w.Tradable,
			})
		}
		if page.NextPageToken == "" {
			break
		}
		q.Set("page_token", page.NextPageToken)
	}
	return out, nil
}

// buildOrderRequest translates the canonical order into the vendor schema
func (a *Adapter) buildOrderRequest(order *models.UnifiedOrder) (*orderRequest, error) {
	vendorType, ok := orderTypeToVendor[order.Type]
	if !ok {
		return nil, models.NewBrokerError(models.BrokerAlpaca, models.ErrInvalidOrder,
			fmt.Sprintf("unsupported order type %q", order.Type), nil)
	}
	vendorTIF, ok := tifToVendor[order.TimeInForce]
	if !ok {
		return nil, models.NewBrokerError(models.BrokerAlpaca, models.ErrInvalidOrder,
			fmt.Sprintf("unsupported time in force %q", order.TimeInForce), nil)
	}
	vendorSide, ok := sideToVendor[order.Side]
	if !ok {
		return nil, models.NewBrokerError(models.BrokerAlpaca, models.ErrInvalidOrder,
			fmt.Sprintf("unsupported side %q", order.Side), nil)
	}

	req := &orderRequest{
		Symbol:        orderSymbol(order),
		Side:          vendorSide,
		Type:          vendorType,
		TimeInForce:   vendorTIF,
		ExtendedHours: order.ExtendedHours,
		ClientOrderID: order.ClientOrderID,
	}
	if order.Qty > 0 {
		req.Qty = formatFloat(order.Qty)
	} else if order.Notional > 0 {
		req.Notional = formatFloat(order.Notional)
	}
	if order.LimitPrice > 0 {
		req.LimitPrice = formatFloat(order.LimitPrice)
	}
	if order.StopPrice > 0 {
		req.StopPrice = formatFloat(order.StopPrice)
	}
	if order.TrailPrice > 0 {
		req.TrailPrice = formatFloat(order.TrailPrice)
	}
	if order.TrailPercent > 0 {
		req.TrailPercent = formatFloat(order.TrailPercent)
	}

	switch order.OrderClass {
	case "", models.OrderClassSimple:
	case models.OrderClassBracket:
		req.OrderClass = "bracket"
	case models.OrderClassOCO:
		req.OrderClass = "oco"
	default:
		return nil, models.NewBrokerError(models.BrokerAlpaca, models.ErrInvalidOrder,
			fmt.Sprintf("unsupported order class %q", order.OrderClass), nil)
	}
	if order.TakeProfit != nil {
		req.TakeProfit = &takeProfitLeg{LimitPrice: formatFloat(order.TakeProfit.LimitPrice)}
	}
	if order.StopLoss != nil {
		leg := &stopLossLeg{StopPrice: formatFloat(order.StopLoss.StopPrice)}
		if order.StopLoss.LimitPrice > 0 {
			leg.LimitPrice = formatFloat(order.StopLoss.LimitPrice)
		}
		req.StopLoss = leg
	}
	return req, nil
}

// translateOrder maps a vendor order onto the canonical response
func (a *Adapter) translateOrder(w *wireOrder) (*models.OrderResponse, error) {
	status, ok := mapStatus(w.Status)
	if !ok {
		if a.strict {
			return nil, models.NewBrokerError(models.BrokerAlpaca, models.ErrUnknown,
				fmt.Sprintf("unmapped vendor order status %q", w.Status), nil)
		}
		a.logger.WithField("status", w.Status).Warn("Unmapped vendor order status, defaulting to NEW")
	}

	resp := &models.OrderResponse{
		BrokerOrderID:  w.ID,
		ClientOrderID:  w.ClientOrderID,
		Broker:         models.BrokerAlpaca,
		Symbol:         w.Symbol,
		Side:           sideFromVendor[w.Side],
		Type:           orderTypeFromVendor[w.Type],
		Qty:            parseFloat(w.Qty),
		Notional:       parseFloat(w.Notional),
		TimeInForce:    tifFromVendor[w.TimeInForce],
		LimitPrice:     parseFloat(w.LimitPrice),
		StopPrice:      parseFloat(w.StopPrice),
		TrailPrice:     parseFloat(w.TrailPrice),
		TrailPercent:   parseFloat(w.TrailPercent),
		ExtendedHours:  w.ExtendedHours,
		Status:         status,
		FilledQty:      parseFloat(w.FilledQty),
		FilledAvgPrice: parseFloat(w.FilledAvgPrice),
		CreatedAt:      w.CreatedAt,
		FilledAt:       w.FilledAt,
		CanceledAt:     w.CanceledAt,
		ExpiredAt:      w.ExpiredAt,
		FailedAt:       w.FailedAt,
		ReplacedAt:     w.ReplacedAt,
		ReplacedBy:     w.ReplacedBy,
	}
	if w.UpdatedAt != nil {
		resp.UpdatedAt = *w.UpdatedAt
	}
	if w.SubmittedAt != nil {
		resp.SubmittedAt = *w.SubmittedAt
	}
	switch w.OrderClass {
	case "bracket":
		resp.OrderClass = models.OrderClassBracket
	case "oco":
		resp.OrderClass = models.OrderClassOCO
	case "", "simple":
		resp.OrderClass = models.OrderClassSimple
	}
	for i := range w.Legs {
		leg, err := a.translateOrder(&w.Legs[i])
		if err != nil {
			return nil, err
		}
		resp.Legs = append(resp.Legs, *leg)
	}
	return resp, nil
}

func translatePosition(w *wirePosition) models.Position {
	return models.Position{
		Symbol:          w.Symbol,
		AssetClass:      assetClassFromVendor[w.AssetClass],
		Broker:          models.BrokerAlpaca,
		Qty:             parseFloat(w.Qty),
		Side:            w.Side,
		AvgEntryPrice:   parseFloat(w.AvgEntryPrice),
		MarketValue:     parseFloat(w.MarketValue),
		CostBasis:       parseFloat(w.CostBasis),
		UnrealizedPL:    parseFloat(w.UnrealizedPL),
		UnrealizedPLPct: parseFloat(w.UnrealizedPLPC) * 100,
		CurrentPrice:    parseFloat(w.CurrentPrice),
		LastdayPrice:    parseFloat(w.LastdayPrice),
		ChangeToday:     parseFloat(w.ChangeToday),
	}
}

func translateAsset(w *wireAsset) models.Asset {
	class, ok := assetClassFromVendor[w.Class]
	if !ok {
		class = models.AssetClassUSEquity
	}
	return models.Asset{
		Symbol:       w.Symbol,
		Name:         w.Name,
		AssetClass:   class,
		Exchange:     w.Exchange,
		Tradable:     w.Tradable,
		Marginable:   w.Marginable,
		Shortable:    w.Shortable,
		Fractionable: w.Fractionable,
	}
}

// orderSymbol renders the symbol the way the trading API expects: crypto
// pairs carry a slash, everything else is the plain uppercase symbol.
func orderSymbol(order *models.UnifiedOrder) string {
	symbol := strings.ToUpper(order.Symbol)
	if order.AssetClass != models.AssetClassCrypto || strings.Contains(symbol, "/") {
		return symbol
	}
	clean := strings.NewReplacer("-", "", "_", "").Replace(symbol)
	for _, quote := range []string{"USDT", "USD"} {
		if base, found := strings.CutSuffix(clean, quote); found && base != "" {
			return base + "/" + quote
		}
	}
	return symbol
}

// positionSymbol renders the symbol for position endpoints, which use the
// slashless form for crypto.
func positionSymbol(symbol string) string {
	return strings.NewReplacer("/", "", "-", "").Replace(strings.ToUpper(symbol))
}
