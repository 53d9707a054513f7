package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tradoverse/broker-gateway/internal/broker"
	"github.com/tradoverse/broker-gateway/pkg/config"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

// EventPublisher receives routing outcomes and health transitions for
// downstream consumers. Implementations must not block.
type EventPublisher interface {
	PublishOrderRouted(result *models.RouteResult) error
	PublishBrokerHealth(health models.BrokerHealth) error
}

// TelemetryRecorder sinks routing measurements into the metrics store
type TelemetryRecorder interface {
	RecordOrderRoute(broker models.BrokerID, class models.AssetClass, durationMs int64, err error)
	RecordBrokerHealth(health models.BrokerHealth)
}

// QuoteCache is a short-TTL cache in front of vendor quote endpoints
type QuoteCache interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, bool)
	SetQuote(ctx context.Context, quote *models.Quote, ttl time.Duration)
}

// Router owns broker selection and dispatch. It classifies the order's
// symbol, asks the decision engine for a venue, enforces the venue's order
// rate limit, places the order under the configured call timeout and feeds
// the outcome back into health tracking. A retryable dispatch failure is
// retried once, against the decision's first alternative only; there is
// never a second hop.
type Router struct {
	logger     *logrus.Entry
	cfg        *config.RouterConfig
	classifier *AssetClassifier
	caps       *CapabilityRegistry
	registry   *broker.Registry
	health     *broker.HealthTracker
	engine     *DecisionEngine

	mu           sync.RWMutex
	limiters     map[models.BrokerID]*broker.RateLimiter
	defaultPrefs models.RoutingPreferences

	events    EventPublisher
	telemetry TelemetryRecorder
	quotes    QuoteCache

	monitorOnce sync.Once
	done        chan struct{}
}

// NewRouter creates a router with the built-in capability tables
func NewRouter(cfg *config.RouterConfig, logger *logrus.Logger) *Router {
	caps := NewCapabilityRegistry()
	registry := broker.NewRegistry(logger)
	health := broker.NewHealthTracker(logger)

	r := &Router{
		logger:     logger.WithField("component", "router"),
		cfg:        cfg,
		classifier: NewAssetClassifier(),
		caps:       caps,
		registry:   registry,
		health:     health,
		engine:     NewDecisionEngine(logger, caps, registry, health),
		limiters:   make(map[models.BrokerID]*broker.RateLimiter),
		defaultPrefs: models.RoutingPreferences{
			SmartRouting:  cfg.SmartRouting,
			AllowFallback: cfg.AllowFallback,
		},
		done: make(chan struct{}),
	}

	health.SetTransitionHook(func(h models.BrokerHealth) {
		r.publishHealth(h)
	})
	return r
}

// ApplyOverrides installs the routing override file's priority tables and
// default preferences. Call before serving traffic.
func (r *Router) ApplyOverrides(overrides *config.RoutingOverrides) {
	if overrides == nil {
		return
	}
	r.caps.ApplyPriorities(overrides.Priorities)
	if overrides.Preferences != nil {
		r.mu.Lock()
		r.defaultPrefs = overrides.DefaultPreferences()
		r.mu.Unlock()
	}
	r.logger.WithField("classes", len(overrides.Priorities)).Info("Routing overrides applied")
}

// SetEventPublisher wires the event sink. Nil disables publishing.
func (r *Router) SetEventPublisher(p EventPublisher) { r.events = p }

// SetTelemetry wires the metrics sink. Nil disables recording.
func (r *Router) SetTelemetry(t TelemetryRecorder) { r.telemetry = t }

// SetQuoteCache wires the quote cache. Nil disables caching.
func (r *Router) SetQuoteCache(c QuoteCache) { r.quotes = c }

// Classifier exposes the symbol classifier
func (r *Router) Classifier() *AssetClassifier { return r.classifier }

// RegisterBroker adds an adapter to the routing pool and starts tracking
// its health and order rate limit.
func (r *Router) RegisterBroker(adapter broker.Adapter) error {
	if err := r.registry.Register(adapter); err != nil {
		return err
	}
	id := adapter.ID()
	r.health.Track(id)

	if caps, ok := r.caps.Capabilities(id); ok {
		r.mu.Lock()
		r.limiters[id] = broker.NewRateLimiter(caps.MaxOrdersPerMinute)
		r.mu.Unlock()
	}

	r.logger.WithField("broker", id).Info("Broker registered")
	return nil
}

// UnregisterBroker removes an adapter from the routing pool
func (r *Router) UnregisterBroker(id models.BrokerID) error {
	if _, ok := r.registry.Unregister(id); !ok {
		return fmt.Errorf("broker %s is not registered", id)
	}
	r.health.Untrack(id)

	r.mu.Lock()
	delete(r.limiters, id)
	r.mu.Unlock()

	r.logger.WithField("broker", id).Info("Broker unregistered")
	return nil
}

// RouteOrder validates the order, selects a broker and places the order
// there. Orders without a client order ID get one assigned before the first
// dispatch so a fallback retry reuses the same idempotency token.
func (r *Router) RouteOrder(ctx context.Context, order *models.UnifiedOrder, prefs *models.RoutingPreferences) (*models.RouteResult, error) {
	start := time.Now()

	if err := r.validateOrder(order); err != nil {
		return nil, err
	}
	p := r.resolvePrefs(prefs)

	class := order.AssetClass
	if class == "" {
		class = r.classifier.Classify(order.Symbol)
	} else if !class.Valid() {
		return nil, fmt.Errorf("unknown asset class %q: %w", class, models.ErrInvalidOrder)
	}
	order.AssetClass = class

	if order.ClientOrderID == "" {
		order.ClientOrderID = uuid.New().String()
	}
	if order.TimeInForce == "" {
		order.TimeInForce = models.TimeInForceDay
	}
	if order.OrderClass == "" {
		order.OrderClass = models.OrderClassSimple
	}

	decision, err := r.engine.SelectBroker(class, order.Type, p)
	if err != nil {
		r.recordRoute("", class, start, err)
		return nil, err
	}

	resp, err := r.dispatch(ctx, decision.SelectedBroker, order)
	if err != nil && p.AllowFallback && models.IsRetryable(err) && len(decision.Alternatives) > 0 {
		alt := decision.Alternatives[0]
		r.logger.WithFields(logrus.Fields{
			"broker":   decision.SelectedBroker,
			"fallback": alt,
			"symbol":   order.Symbol,
			"error":    err.Error(),
		}).Warn("Primary broker failed, retrying on first alternative")

		if altResp, altErr := r.dispatch(ctx, alt, order); altErr == nil {
			resp, err = altResp, nil
			decision = fallbackDecision(decision, alt)
		} else {
			err = altErr
		}
	}
	if err != nil {
		r.recordRoute(decision.SelectedBroker, class, start, err)
		return nil, err
	}

	result := &models.RouteResult{
		Order:           resp,
		Decision:        decision,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}
	r.recordRoute(decision.SelectedBroker, class, start, nil)
	if r.events != nil {
		if err := r.events.PublishOrderRouted(result); err != nil {
			r.logger.WithError(err).Warn("Failed to publish order routed event")
		}
	}

	r.logger.WithFields(logrus.Fields{
		"broker":       decision.SelectedBroker,
		"symbol":       order.Symbol,
		"asset_class":  class,
		"side":         order.Side,
		"type":         order.Type,
		"reason":       decision.Reason,
		"duration_ms":  result.ExecutionTimeMs,
		"broker_order": resp.BrokerOrderID,
	}).Info("Order routed")
	return result, nil
}

// GetRoutingRecommendation runs broker selection without placing anything
func (r *Router) GetRoutingRecommendation(symbol string, orderType models.OrderType, prefs *models.RoutingPreferences) (*models.RoutingDecision, error) {
	class := r.classifier.Classify(symbol)
	return r.engine.SelectBroker(class, orderType, r.resolvePrefs(prefs))
}

// CancelOrder cancels an order on the broker that holds it
func (r *Router) CancelOrder(ctx context.Context, id models.BrokerID, orderID string) error {
	if lim := r.limiter(id); !lim.TryAcquire() {
		return models.NewBrokerError(id, models.ErrRateLimited, "order rate limit exceeded", nil)
	}
	return r.call(ctx, id, func(cctx context.Context, a broker.Adapter) error {
		return a.CancelOrder(cctx, orderID)
	})
}

// CancelAllOrders cancels every open order on one broker, returning the
// number of cancellations requested.
func (r *Router) CancelAllOrders(ctx context.Context, id models.BrokerID) (int, error) {
	var n int
	err := r.call(ctx, id, func(cctx context.Context, a broker.Adapter) error {
		var err error
		n, err = a.CancelAllOrders(cctx)
		return err
	})
	return n, err
}

// GetOrder fetches one order from the broker that holds it
func (r *Router) GetOrder(ctx context.Context, id models.BrokerID, orderID string) (*models.OrderResponse, error) {
	var resp *models.OrderResponse
	err := r.call(ctx, id, func(cctx context.Context, a broker.Adapter) error {
		var err error
		resp, err = a.GetOrder(cctx, orderID)
		return err
	})
	return resp, err
}

// GetOrders lists orders on one broker
func (r *Router) GetOrders(ctx context.Context, id models.BrokerID, filter *models.OrderFilter) ([]models.OrderResponse, error) {
	f := models.OrderFilter{}
	if filter != nil {
		f = *filter
	}
	var orders []models.OrderResponse
	err := r.call(ctx, id, func(cctx context.Context, a broker.Adapter) error {
		var err error
		orders, err = a.GetOrders(cctx, f)
		return err
	})
	return orders, err
}

// ModifyOrder patches an open order in place
func (r *Router) ModifyOrder(ctx context.Context, id models.BrokerID, orderID string, patch *models.OrderPatch) (*models.OrderResponse, error) {
	if patch == nil {
		return nil, fmt.Errorf("patch is required: %w", models.ErrInvalidOrder)
	}
	if lim := r.limiter(id); !lim.TryAcquire() {
		return nil, models.NewBrokerError(id, models.ErrRateLimited, "order rate limit exceeded", nil)
	}
	var resp *models.OrderResponse
	err := r.call(ctx, id, func(cctx context.Context, a broker.Adapter) error {
		var err error
		resp, err = a.ModifyOrder(cctx, orderID, *patch)
		return err
	})
	return resp, err
}

// GetAccount fetches the account snapshot from one broker
func (r *Router) GetAccount(ctx context.Context, id models.BrokerID) (*models.Account, error) {
	var account *models.Account
	err := r.call(ctx, id, func(cctx context.Context, a broker.Adapter) error {
		var err error
		account, err = a.GetAccount(cctx)
		return err
	})
	return account, err
}

// GetBrokerPositions lists open positions on one broker
func (r *Router) GetBrokerPositions(ctx context.Context, id models.BrokerID) ([]models.Position, error) {
	var positions []models.Position
	err := r.call(ctx, id, func(cctx context.Context, a broker.Adapter) error {
		var err error
		positions, err = a.GetPositions(cctx)
		return err
	})
	return positions, err
}

// GetAllPositions aggregates open positions across every connected broker.
// Brokers that fail are skipped; their failure still counts against health.
func (r *Router) GetAllPositions(ctx context.Context) ([]models.Position, error) {
	var (
		mu  sync.Mutex
		all []models.Position
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range r.registry.List() {
		if !a.IsConnected() {
			continue
		}
		adapter := a
		g.Go(func() error {
			positions, err := r.GetBrokerPositions(gctx, adapter.ID())
			if err != nil {
				r.logger.WithError(err).WithField("broker", adapter.ID()).Warn("Failed to fetch positions")
				return nil
			}
			mu.Lock()
			all = append(all, positions...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

// GetPosition fetches one symbol's position; (nil, nil) when flat
func (r *Router) GetPosition(ctx context.Context, id models.BrokerID, symbol string) (*models.Position, error) {
	var position *models.Position
	err := r.call(ctx, id, func(cctx context.Context, a broker.Adapter) error {
		var err error
		position, err = a.GetPosition(cctx, symbol)
		return err
	})
	return position, err
}

// ClosePosition flattens one symbol on one broker. A nil request closes
// the full position.
func (r *Router) ClosePosition(ctx context.Context, id models.BrokerID, symbol string, req *models.ClosePositionRequest) (*models.OrderResponse, error) {
	cr := models.ClosePositionRequest{}
	if req != nil {
		cr = *req
	}
	var resp *models.OrderResponse
	err := r.call(ctx, id, func(cctx context.Context, a broker.Adapter) error {
		var err error
		resp, err = a.ClosePosition(cctx, symbol, cr)
		return err
	})
	return resp, err
}

// CloseAllPositions flattens everything on one broker
func (r *Router) CloseAllPositions(ctx context.Context, id models.BrokerID) ([]models.OrderResponse, error) {
	var orders []models.OrderResponse
	err := r.call(ctx, id, func(cctx context.Context, a broker.Adapter) error {
		var err error
		orders, err = a.CloseAllPositions(cctx)
		return err
	})
	return orders, err
}

// GetQuote fetches the latest quote for a symbol through the best data
// broker, consulting the short-TTL cache first.
func (r *Router) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if r.quotes != nil {
		if quote, ok := r.quotes.GetQuote(ctx, symbol); ok {
			return quote, nil
		}
	}

	id, err := r.dataBroker(symbol)
	if err != nil {
		return nil, err
	}
	var quote *models.Quote
	err = r.call(ctx, id, func(cctx context.Context, a broker.Adapter) error {
		var err error
		quote, err = a.GetQuote(cctx, symbol)
		return err
	})
	if err != nil {
		return nil, err
	}

	if r.quotes != nil && quote != nil {
		r.quotes.SetQuote(ctx, quote, r.cfg.QuoteCacheTTL)
	}
	return quote, nil
}

// GetBars fetches historical bars through the best data broker
func (r *Router) GetBars(ctx context.Context, req *models.BarsRequest) ([]models.Bar, error) {
	if req == nil || req.Symbol == "" {
		return nil, fmt.Errorf("bars request requires a symbol: %w", models.ErrInvalidOrder)
	}
	id, err := r.dataBroker(req.Symbol)
	if err != nil {
		return nil, err
	}
	var bars []models.Bar
	err = r.call(ctx, id, func(cctx context.Context, a broker.Adapter) error {
		var err error
		bars, err = a.GetBars(cctx, *req)
		return err
	})
	return bars, err
}

// GetSnapshot fetches a consolidated snapshot through the best data broker
func (r *Router) GetSnapshot(ctx context.Context, symbol string) (*models.Snapshot, error) {
	id, err := r.dataBroker(symbol)
	if err != nil {
		return nil, err
	}
	var snap *models.Snapshot
	err = r.call(ctx, id, func(cctx context.Context, a broker.Adapter) error {
		var err error
		snap, err = a.GetSnapshot(cctx, symbol)
		return err
	})
	return snap, err
}

// GetOptionChain fetches an option chain through the best data broker
func (r *Router) GetOptionChain(ctx context.Context, underlying string) ([]models.OptionContract, error) {
	id, err := r.dataBroker(underlying)
	if err != nil {
		return nil, err
	}
	var chain []models.OptionContract
	err = r.call(ctx, id, func(cctx context.Context, a broker.Adapter) error {
		var err error
		chain, err = a.GetOptionChain(cctx, underlying)
		return err
	})
	return chain, err
}

// GetNews fetches recent news through the best data broker
func (r *Router) GetNews(ctx context.Context, symbols []string, limit int) ([]models.NewsItem, error) {
	symbol := ""
	if len(symbols) > 0 {
		symbol = symbols[0]
	}
	id, err := r.dataBroker(symbol)
	if err != nil {
		return nil, err
	}
	var news []models.NewsItem
	err = r.call(ctx, id, func(cctx context.Context, a broker.Adapter) error {
		var err error
		news, err = a.GetNews(cctx, symbols, limit)
		return err
	})
	return news, err
}

// ConnectedBrokers lists brokers that currently hold a live session
func (r *Router) ConnectedBrokers() []models.BrokerID {
	var out []models.BrokerID
	for _, a := range r.registry.List() {
		if a.IsConnected() {
			out = append(out, a.ID())
		}
	}
	return out
}

// RegisteredBrokers lists every broker in the pool, connected or not
func (r *Router) RegisteredBrokers() []models.BrokerID {
	return r.registry.IDs()
}

// Adapter exposes a registered adapter for stream subscriptions
func (r *Router) Adapter(id models.BrokerID) (broker.Adapter, bool) {
	return r.registry.Get(id)
}

// SupportedAssetClasses returns the union of asset classes tradable through
// currently connected brokers.
func (r *Router) SupportedAssetClasses() []models.AssetClass {
	connected := r.ConnectedBrokers()
	var out []models.AssetClass
	for _, class := range models.AllAssetClasses() {
		for _, id := range connected {
			if r.caps.Supports(id, class) {
				out = append(out, class)
				break
			}
		}
	}
	return out
}

// BrokersForAssetClass lists connected brokers able to trade the class,
// priority order first.
func (r *Router) BrokersForAssetClass(class models.AssetClass) []models.BrokerID {
	return r.engine.Alternatives(class, "", "")
}

// BrokerCapabilities returns the static capability record for one broker
func (r *Router) BrokerCapabilities(id models.BrokerID) (models.BrokerCapabilities, bool) {
	return r.caps.Capabilities(id)
}

// BrokerHealth returns the live health record for one broker
func (r *Router) BrokerHealth(id models.BrokerID) (models.BrokerHealth, bool) {
	return r.health.Get(id)
}

// AllBrokerHealth returns health records for every tracked broker
func (r *Router) AllBrokerHealth() []models.BrokerHealth {
	return r.health.All()
}

// CheckAllBrokerHealth probes every registered broker concurrently with a
// lightweight account call and returns the refreshed records.
func (r *Router) CheckAllBrokerHealth(ctx context.Context) []models.BrokerHealth {
	g, gctx := errgroup.WithContext(ctx)
	for _, a := range r.registry.List() {
		adapter := a
		g.Go(func() error {
			r.probe(gctx, adapter)
			return nil
		})
	}
	_ = g.Wait()
	return r.health.All()
}

// StartHealthMonitor launches the background probe loop. Safe to call once;
// Stop shuts it down.
func (r *Router) StartHealthMonitor() {
	r.monitorOnce.Do(func() {
		go r.monitorLoop()
	})
}

// Stop terminates the background health monitor
func (r *Router) Stop() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

func (r *Router) monitorLoop() {
	interval := r.cfg.HealthCheckInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.WithField("interval", interval).Info("Health monitor started")
	for {
		select {
		case <-r.done:
			r.logger.Info("Health monitor stopped")
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.cfg.CallTimeout)
			r.CheckAllBrokerHealth(ctx)
			cancel()
		}
	}
}

// probe runs the health check call against one adapter
func (r *Router) probe(ctx context.Context, adapter broker.Adapter) {
	id := adapter.ID()
	r.health.SetConnected(id, adapter.IsConnected())
	if !adapter.IsConnected() {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	if _, err := adapter.GetAccount(cctx); err != nil {
		r.health.RecordFailure(id, err)
		return
	}
	r.health.RecordSuccess(id, time.Since(start))
}

// dispatch sends one order to one broker, spending a rate limit token and
// feeding the outcome into health tracking.
func (r *Router) dispatch(ctx context.Context, id models.BrokerID, order *models.UnifiedOrder) (*models.OrderResponse, error) {
	if lim := r.limiter(id); !lim.TryAcquire() {
		// The venue never saw this order, so health is not charged.
		return nil, models.NewBrokerError(id, models.ErrRateLimited, "order rate limit exceeded", nil)
	}

	var resp *models.OrderResponse
	err := r.call(ctx, id, func(cctx context.Context, a broker.Adapter) error {
		var err error
		resp, err = a.PlaceOrder(cctx, order)
		return err
	})
	return resp, err
}

// call looks up the adapter, runs fn under the call timeout and updates the
// broker's health from the outcome.
func (r *Router) call(ctx context.Context, id models.BrokerID, fn func(context.Context, broker.Adapter) error) error {
	adapter, ok := r.registry.Get(id)
	if !ok {
		return models.NewBrokerError(id, models.ErrConnection, fmt.Sprintf("broker %s is not registered", id), nil)
	}

	cctx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	if err := fn(cctx, adapter); err != nil {
		r.health.RecordFailure(id, err)
		return err
	}
	r.health.RecordSuccess(id, time.Since(start))
	return nil
}

// dataBroker picks the venue serving market data for a symbol: the first
// connected broker in the symbol's class priority order.
func (r *Router) dataBroker(symbol string) (models.BrokerID, error) {
	class := r.classifier.Classify(symbol)
	brokers := r.BrokersForAssetClass(class)
	if len(brokers) == 0 {
		if len(r.ConnectedBrokers()) == 0 {
			return "", fmt.Errorf("no brokers connected: %w", models.ErrNoBrokerAvailable)
		}
		return "", fmt.Errorf("no connected broker supports %s: %w", class, models.ErrNoCapableBroker)
	}
	return brokers[0], nil
}

func (r *Router) limiter(id models.BrokerID) *broker.RateLimiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[id]
}

func (r *Router) resolvePrefs(prefs *models.RoutingPreferences) models.RoutingPreferences {
	if prefs != nil {
		return *prefs
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultPrefs
}

func (r *Router) recordRoute(id models.BrokerID, class models.AssetClass, start time.Time, err error) {
	if r.telemetry == nil {
		return
	}
	r.telemetry.RecordOrderRoute(id, class, time.Since(start).Milliseconds(), err)
}

func (r *Router) publishHealth(h models.BrokerHealth) {
	if r.events != nil {
		if err := r.events.PublishBrokerHealth(h); err != nil {
			r.logger.WithError(err).Warn("Failed to publish broker health event")
		}
	}
	if r.telemetry != nil {
		r.telemetry.RecordBrokerHealth(h)
	}
}

// fallbackDecision rewrites a decision after a successful retry hop
func fallbackDecision(d *models.RoutingDecision, alt models.BrokerID) *models.RoutingDecision {
	out := *d
	out.SelectedBroker = alt
	out.Reason = models.ReasonFallback
	out.Confidence = models.ConfidenceFallback
	if len(d.Alternatives) > 0 {
		rest := make([]models.BrokerID, 0, len(d.Alternatives))
		for _, b := range d.Alternatives[1:] {
			rest = append(rest, b)
		}
		out.Alternatives = append(rest, d.SelectedBroker)
	}
	return &out
}

// validateOrder enforces the canonical order shape before any broker sees it
func (r *Router) validateOrder(order *models.UnifiedOrder) error {
	if order == nil {
		return fmt.Errorf("order is required: %w", models.ErrInvalidOrder)
	}
	if order.Symbol == "" {
		return fmt.Errorf("symbol is required: %w", models.ErrInvalidOrder)
	}
	if !order.Side.Valid() {
		return fmt.Errorf("invalid side %q: %w", order.Side, models.ErrInvalidOrder)
	}
	if !order.Type.Valid() {
		return fmt.Errorf("invalid order type %q: %w", order.Type, models.ErrInvalidOrder)
	}
	if order.TimeInForce != "" && !order.TimeInForce.Valid() {
		return fmt.Errorf("invalid time in force %q: %w", order.TimeInForce, models.ErrInvalidOrder)
	}

	hasQty := order.Qty > 0
	hasNotional := order.Notional > 0
	if hasQty == hasNotional {
		return fmt.Errorf("exactly one of qty or notional must be positive: %w", models.ErrInvalidOrder)
	}
	if hasNotional && order.Type != models.OrderTypeMarket {
		return fmt.Errorf("notional orders must be market orders: %w", models.ErrInvalidOrder)
	}

	switch order.Type {
	case models.OrderTypeLimit:
		if order.LimitPrice <= 0 {
			return fmt.Errorf("limit orders require a limit price: %w", models.ErrInvalidOrder)
		}
	case models.OrderTypeStop:
		if order.StopPrice <= 0 {
			return fmt.Errorf("stop orders require a stop price: %w", models.ErrInvalidOrder)
		}
	case models.OrderTypeStopLimit:
		if order.LimitPrice <= 0 || order.StopPrice <= 0 {
			return fmt.Errorf("stop limit orders require both stop and limit prices: %w", models.ErrInvalidOrder)
		}
	case models.OrderTypeTrailingStop:
		if order.TrailPrice <= 0 && order.TrailPercent <= 0 {
			return fmt.Errorf("trailing stop orders require a trail price or percent: %w", models.ErrInvalidOrder)
		}
	}

	if order.OrderClass == models.OrderClassBracket {
		if order.TakeProfit == nil || order.StopLoss == nil {
			return fmt.Errorf("bracket orders require take profit and stop loss legs: %w", models.ErrInvalidOrder)
		}
		if order.TakeProfit.LimitPrice <= 0 {
			return fmt.Errorf("bracket take profit requires a limit price: %w", models.ErrInvalidOrder)
		}
		if order.StopLoss.StopPrice <= 0 {
			return fmt.Errorf("bracket stop loss requires a stop price: %w", models.ErrInvalidOrder)
		}
	}
	if order.OrderClass == models.OrderClassOCO {
		if order.TakeProfit == nil || order.StopLoss == nil {
			return fmt.Errorf("oco orders require take profit and stop loss legs: %w", models.ErrInvalidOrder)
		}
	}
	return nil
}
