package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradoverse/broker-gateway/internal/broker"
	"github.com/tradoverse/broker-gateway/internal/broker/paper"
	"github.com/tradoverse/broker-gateway/pkg/config"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

// scriptedBroker is an Adapter fake with programmable order outcomes
type scriptedBroker struct {
	broker.Adapter
	id         models.BrokerID
	connected  bool
	placeErr   error
	quoteErr   error
	accountErr error

	mu         sync.Mutex
	placed     []models.UnifiedOrder
	quoteCalls int
}

func (s *scriptedBroker) ID() models.BrokerID { return s.id }
func (s *scriptedBroker) IsConnected() bool   { return s.connected }

func (s *scriptedBroker) PlaceOrder(_ context.Context, order *models.UnifiedOrder) (*models.OrderResponse, error) {
	s.mu.Lock()
	s.placed = append(s.placed, *order)
	s.mu.Unlock()
	if s.placeErr != nil {
		return nil, s.placeErr
	}
	return &models.OrderResponse{
		BrokerOrderID: fmt.Sprintf("%s-1", s.id),
		ClientOrderID: order.ClientOrderID,
		Broker:        s.id,
		Symbol:        order.Symbol,
		Side:          order.Side,
		Type:          order.Type,
		Qty:           order.Qty,
		Status:        models.OrderStatusAccepted,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (s *scriptedBroker) GetAccount(context.Context) (*models.Account, error) {
	if s.accountErr != nil {
		return nil, s.accountErr
	}
	return &models.Account{Broker: s.id}, nil
}

func (s *scriptedBroker) GetQuote(_ context.Context, symbol string) (*models.Quote, error) {
	s.mu.Lock()
	s.quoteCalls++
	s.mu.Unlock()
	if s.quoteErr != nil {
		return nil, s.quoteErr
	}
	return &models.Quote{Symbol: symbol, BidPrice: 99.5, AskPrice: 100.5, Timestamp: time.Now().UTC()}, nil
}

func (s *scriptedBroker) placedOrders() []models.UnifiedOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.UnifiedOrder, len(s.placed))
	copy(out, s.placed)
	return out
}

func testRouterConfig() *config.RouterConfig {
	return &config.RouterConfig{
		CallTimeout:         5 * time.Second,
		SmartRouting:        true,
		AllowFallback:       true,
		HealthCheckInterval: time.Minute,
		QuoteCacheTTL:       2 * time.Second,
	}
}

func newTestRouter(t *testing.T, brokers ...broker.Adapter) *Router {
	t.Helper()
	r := NewRouter(testRouterConfig(), quietLogger())
	for _, b := range brokers {
		require.NoError(t, r.RegisterBroker(b))
	}
	return r
}

func marketOrder(symbol string, qty float64) *models.UnifiedOrder {
	return &models.UnifiedOrder{
		Symbol: symbol,
		Side:   models.OrderSideBuy,
		Type:   models.OrderTypeMarket,
		Qty:    qty,
	}
}

func TestRouteOrderHappyPath(t *testing.T) {
	alpaca := &scriptedBroker{id: models.BrokerAlpaca, connected: true}
	r := newTestRouter(t, alpaca)

	result, err := r.RouteOrder(context.Background(), marketOrder("AAPL", 10), nil)
	require.NoError(t, err)

	assert.Equal(t, models.BrokerAlpaca, result.Decision.SelectedBroker)
	assert.Equal(t, models.AssetClassUSEquity, result.Decision.AssetClass)
	assert.Equal(t, models.ReasonPriorityRanking, result.Decision.Reason)
	assert.Equal(t, models.OrderStatusAccepted, result.Order.Status)
	assert.NotEmpty(t, result.Order.ClientOrderID)
	assert.GreaterOrEqual(t, result.ExecutionTimeMs, int64(0))

	h, ok := r.BrokerHealth(models.BrokerAlpaca)
	require.True(t, ok)
	assert.True(t, h.IsHealthy)
	assert.Equal(t, int64(1), h.TotalCalls)
}

func TestRouteOrderFallbackSingleHop(t *testing.T) {
	binance := &scriptedBroker{
		id: models.BrokerBinance, connected: true,
		placeErr: models.NewBrokerError(models.BrokerBinance, models.ErrConnection, "dial timeout", nil),
	}
	alpaca := &scriptedBroker{id: models.BrokerAlpaca, connected: true}
	r := newTestRouter(t, binance, alpaca)

	result, err := r.RouteOrder(context.Background(), marketOrder("BTC-USD", 0.5), nil)
	require.NoError(t, err)

	assert.Equal(t, models.BrokerAlpaca, result.Decision.SelectedBroker)
	assert.Equal(t, models.ReasonFallback, result.Decision.Reason)
	assert.Equal(t, models.ConfidenceFallback, result.Decision.Confidence)
	assert.Equal(t, models.BrokerAlpaca, result.Order.Broker)

	assert.Len(t, binance.placedOrders(), 1)
	assert.Len(t, alpaca.placedOrders(), 1)

	// Failed primary is immediately unhealthy, successful fallback is not
	h, _ := r.BrokerHealth(models.BrokerBinance)
	assert.False(t, h.IsHealthy)
	h, _ = r.BrokerHealth(models.BrokerAlpaca)
	assert.True(t, h.IsHealthy)
}

func TestRouteOrderFallbackStopsAfterOneHop(t *testing.T) {
	dialErr := models.NewBrokerError(models.BrokerBinance, models.ErrConnection, "dial timeout", nil)
	binance := &scriptedBroker{id: models.BrokerBinance, connected: true, placeErr: dialErr}
	alpaca := &scriptedBroker{
		id: models.BrokerAlpaca, connected: true,
		placeErr: models.NewBrokerError(models.BrokerAlpaca, models.ErrConnection, "dial timeout", nil),
	}
	ib := &scriptedBroker{id: models.BrokerInteractiveBrokers, connected: true}
	r := newTestRouter(t, binance, alpaca, ib)

	// Crypto priority is Binance then Alpaca; IB would only be a later
	// alternative and must never be tried.
	_, err := r.RouteOrder(context.Background(), marketOrder("ETH/USD", 1), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConnection))

	assert.Len(t, binance.placedOrders(), 1)
	assert.Len(t, alpaca.placedOrders(), 1)
	assert.Empty(t, ib.placedOrders())
}

func TestRouteOrderNoFallbackForInvalidOrder(t *testing.T) {
	binance := &scriptedBroker{
		id: models.BrokerBinance, connected: true,
		placeErr: models.NewBrokerError(models.BrokerBinance, models.ErrInvalidOrder, "min notional not met", nil),
	}
	alpaca := &scriptedBroker{id: models.BrokerAlpaca, connected: true}
	r := newTestRouter(t, binance, alpaca)

	_, err := r.RouteOrder(context.Background(), marketOrder("BTC-USD", 0.0001), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidOrder))

	assert.Len(t, binance.placedOrders(), 1)
	assert.Empty(t, alpaca.placedOrders(), "rejected orders must not be retried elsewhere")
}

func TestRouteOrderNoFallbackWhenDisabled(t *testing.T) {
	binance := &scriptedBroker{
		id: models.BrokerBinance, connected: true,
		placeErr: models.NewBrokerError(models.BrokerBinance, models.ErrConnection, "dial timeout", nil),
	}
	alpaca := &scriptedBroker{id: models.BrokerAlpaca, connected: true}
	r := newTestRouter(t, binance, alpaca)

	prefs := models.DefaultRoutingPreferences()
	prefs.AllowFallback = false

	_, err := r.RouteOrder(context.Background(), marketOrder("BTC-USD", 1), &prefs)
	require.Error(t, err)
	assert.Empty(t, alpaca.placedOrders())
}

func TestRouteOrderClientOrderIDStableAcrossFallback(t *testing.T) {
	binance := &scriptedBroker{
		id: models.BrokerBinance, connected: true,
		placeErr: models.NewBrokerError(models.BrokerBinance, models.ErrConnection, "dial timeout", nil),
	}
	alpaca := &scriptedBroker{id: models.BrokerAlpaca, connected: true}
	r := newTestRouter(t, binance, alpaca)

	result, err := r.RouteOrder(context.Background(), marketOrder("BTC-USD", 1), nil)
	require.NoError(t, err)

	first := binance.placedOrders()[0].ClientOrderID
	second := alpaca.placedOrders()[0].ClientOrderID
	require.NotEmpty(t, first)
	assert.Equal(t, first, second, "retry must reuse the idempotency token")
	assert.Equal(t, first, result.Order.ClientOrderID)
}

func TestRouteOrderValidation(t *testing.T) {
	r := newTestRouter(t, &scriptedBroker{id: models.BrokerAlpaca, connected: true})

	tests := []struct {
		name  string
		order *models.UnifiedOrder
	}{
		{"missing symbol", &models.UnifiedOrder{Side: models.OrderSideBuy, Type: models.OrderTypeMarket, Qty: 1}},
		{"bad side", &models.UnifiedOrder{Symbol: "AAPL", Side: "long", Type: models.OrderTypeMarket, Qty: 1}},
		{"bad type", &models.UnifiedOrder{Symbol: "AAPL", Side: models.OrderSideBuy, Type: "twap", Qty: 1}},
		{"no quantity", &models.UnifiedOrder{Symbol: "AAPL", Side: models.OrderSideBuy, Type: models.OrderTypeMarket}},
		{"qty and notional", &models.UnifiedOrder{Symbol: "AAPL", Side: models.OrderSideBuy, Type: models.OrderTypeMarket, Qty: 1, Notional: 100}},
		{"notional limit order", &models.UnifiedOrder{Symbol: "AAPL", Side: models.OrderSideBuy, Type: models.OrderTypeLimit, Notional: 100, LimitPrice: 10}},
		{"limit without price", &models.UnifiedOrder{Symbol: "AAPL", Side: models.OrderSideBuy, Type: models.OrderTypeLimit, Qty: 1}},
		{"stop without price", &models.UnifiedOrder{Symbol: "AAPL", Side: models.OrderSideBuy, Type: models.OrderTypeStop, Qty: 1}},
		{"trailing stop without trail", &models.UnifiedOrder{Symbol: "AAPL", Side: models.OrderSideBuy, Type: models.OrderTypeTrailingStop, Qty: 1}},
		{"bracket missing legs", &models.UnifiedOrder{Symbol: "AAPL", Side: models.OrderSideBuy, Type: models.OrderTypeMarket, Qty: 1, OrderClass: models.OrderClassBracket}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.RouteOrder(context.Background(), tt.order, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInvalidOrder), "want ErrInvalidOrder, got %v", err)
		})
	}
}

func TestRouteBracketOrderBuildsProtectiveLegs(t *testing.T) {
	log := quietLogger()
	r := NewRouter(testRouterConfig(), log)
	venue := paper.New(config.PaperConfig{StartingCash: 100000, Currency: "USD"}, log, r.Classifier().Classify)
	require.NoError(t, venue.Connect(context.Background()))
	require.NoError(t, r.RegisterBroker(venue))
	t.Cleanup(func() { _ = venue.Disconnect() })

	order := &models.UnifiedOrder{
		Symbol:     "AAPL",
		Side:       models.OrderSideBuy,
		Type:       models.OrderTypeMarket,
		Qty:        5,
		OrderClass: models.OrderClassBracket,
		TakeProfit: &models.TakeProfit{LimitPrice: 160},
		StopLoss:   &models.StopLoss{StopPrice: 140},
	}

	result, err := r.RouteOrder(context.Background(), order, nil)
	require.NoError(t, err)

	assert.Equal(t, models.BrokerPaper, result.Decision.SelectedBroker)
	assert.Equal(t, models.OrderClassBracket, result.Order.OrderClass)
	assert.Equal(t, models.OrderStatusFilled, result.Order.Status)

	// Both protective exits are live child orders on the opposite side
	require.Len(t, result.Order.Legs, 2)
	tp, sl := result.Order.Legs[0], result.Order.Legs[1]
	assert.Equal(t, models.OrderTypeLimit, tp.Type)
	assert.Equal(t, 160.0, tp.LimitPrice)
	assert.Equal(t, models.OrderTypeStop, sl.Type)
	assert.Equal(t, 140.0, sl.StopPrice)
	for _, leg := range result.Order.Legs {
		assert.Equal(t, models.OrderSideSell, leg.Side)
		assert.Equal(t, order.Qty, leg.Qty)
		assert.Equal(t, models.OrderStatusAccepted, leg.Status)
	}
}

func TestRouteOrderRateLimitNotCharged(t *testing.T) {
	alpaca := &scriptedBroker{id: models.BrokerAlpaca, connected: true}
	r := newTestRouter(t, alpaca)

	// Deplete the Alpaca bucket (200 orders per minute). A few extra
	// iterations absorb tokens refilled while the loop runs.
	var err error
	for i := 0; i < 250; i++ {
		_, err = r.RouteOrder(context.Background(), marketOrder("AAPL", 1), nil)
		if err != nil {
			break
		}
	}
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrRateLimited))

	h, _ := r.BrokerHealth(models.BrokerAlpaca)
	assert.True(t, h.IsHealthy, "rate limited orders never reach the venue")
	assert.Zero(t, h.TotalFailures)
}

func TestGetRoutingRecommendation(t *testing.T) {
	r := newTestRouter(t,
		&scriptedBroker{id: models.BrokerAlpaca, connected: true},
		&scriptedBroker{id: models.BrokerBinance, connected: true},
	)

	d, err := r.GetRoutingRecommendation("AAPL", models.OrderTypeMarket, nil)
	require.NoError(t, err)
	assert.Equal(t, models.BrokerAlpaca, d.SelectedBroker)

	d, err = r.GetRoutingRecommendation("eth-usd", models.OrderTypeMarket, nil)
	require.NoError(t, err)
	assert.Equal(t, models.BrokerBinance, d.SelectedBroker)
	assert.Equal(t, models.AssetClassCrypto, d.AssetClass)
}

func TestSupportedAssetClasses(t *testing.T) {
	r := newTestRouter(t,
		&scriptedBroker{id: models.BrokerBinance, connected: true},
		&scriptedBroker{id: models.BrokerSchwab, connected: false},
	)

	classes := r.SupportedAssetClasses()
	assert.Equal(t, []models.AssetClass{models.AssetClassCrypto}, classes)
}

func TestCheckAllBrokerHealth(t *testing.T) {
	healthy := &scriptedBroker{id: models.BrokerAlpaca, connected: true}
	failing := &scriptedBroker{
		id: models.BrokerBinance, connected: true,
		accountErr: models.NewBrokerError(models.BrokerBinance, models.ErrAuthenticationFailed, "bad key", nil),
	}
	r := newTestRouter(t, healthy, failing)

	records := r.CheckAllBrokerHealth(context.Background())
	require.Len(t, records, 2)

	h, _ := r.BrokerHealth(models.BrokerAlpaca)
	assert.True(t, h.IsHealthy)
	h, _ = r.BrokerHealth(models.BrokerBinance)
	assert.False(t, h.IsHealthy)
	assert.Equal(t, 1, h.ConsecutiveFailures)
}

type fakeQuoteCache struct {
	mu    sync.Mutex
	items map[string]*models.Quote
	sets  int
}

func (c *fakeQuoteCache) GetQuote(_ context.Context, symbol string) (*models.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.items[symbol]
	return q, ok
}

func (c *fakeQuoteCache) SetQuote(_ context.Context, quote *models.Quote, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]*models.Quote)
	}
	c.items[quote.Symbol] = quote
	c.sets++
}

func TestGetQuoteUsesCache(t *testing.T) {
	alpaca := &scriptedBroker{id: models.BrokerAlpaca, connected: true}
	r := newTestRouter(t, alpaca)
	cache := &fakeQuoteCache{}
	r.SetQuoteCache(cache)

	q1, err := r.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	q2, err := r.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, q1.BidPrice, q2.BidPrice)
	assert.Equal(t, 1, alpaca.quoteCalls, "second read must come from cache")
	assert.Equal(t, 1, cache.sets)
}

func TestUnregisterBroker(t *testing.T) {
	alpaca := &scriptedBroker{id: models.BrokerAlpaca, connected: true}
	r := newTestRouter(t, alpaca)

	require.NoError(t, r.UnregisterBroker(models.BrokerAlpaca))
	assert.Error(t, r.UnregisterBroker(models.BrokerAlpaca))

	_, err := r.RouteOrder(context.Background(), marketOrder("AAPL", 1), nil)
	assert.True(t, errors.Is(err, models.ErrNoBrokerAvailable))
}
