package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/internal/routing"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

// gatewayHandlers holds the /api/v1 handler set
type gatewayHandlers struct {
	gateway  *routing.Router
	validate *validator.Validate
	logger   *logrus.Entry
}

func newGatewayHandlers(gateway *routing.Router, logger *logrus.Logger) *gatewayHandlers {
	return &gatewayHandlers{
		gateway:  gateway,
		validate: validator.New(),
		logger:   logger.WithField("component", "api"),
	}
}

// orderRequest is the inbound order payload. Routing preferences ride along
// so a single request can pin a broker or disable fallback.
type orderRequest struct {
	Symbol        string             `json:"symbol" validate:"required"`
	AssetClass    string             `json:"asset_class,omitempty"`
	Side          string             `json:"side" validate:"required,oneof=buy sell"`
	Type          string             `json:"type" validate:"required,oneof=market limit stop stop_limit trailing_stop"`
	Qty           float64            `json:"qty,omitempty" validate:"gte=0"`
	Notional      float64            `json:"notional,omitempty" validate:"gte=0"`
	TimeInForce   string             `json:"time_in_force,omitempty" validate:"omitempty,oneof=day gtc opg cls ioc fok"`
	LimitPrice    float64            `json:"limit_price,omitempty" validate:"gte=0"`
	StopPrice     float64            `json:"stop_price,omitempty" validate:"gte=0"`
	TrailPrice    float64            `json:"trail_price,omitempty" validate:"gte=0"`
	TrailPercent  float64            `json:"trail_percent,omitempty" validate:"gte=0"`
	ExtendedHours bool               `json:"extended_hours,omitempty"`
	ClientOrderID string             `json:"client_order_id,omitempty"`
	OrderClass    string             `json:"order_class,omitempty" validate:"omitempty,oneof=simple bracket oco"`
	TakeProfit    *models.TakeProfit `json:"take_profit,omitempty"`
	StopLoss      *models.StopLoss   `json:"stop_loss,omitempty"`

	PreferredBroker string `json:"preferred_broker,omitempty"`
	SmartRouting    *bool  `json:"smart_routing,omitempty"`
	AllowFallback   *bool  `json:"allow_fallback,omitempty"`
}

// placeOrder validates the payload and routes the order
func (h *gatewayHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	order := &models.UnifiedOrder{
		Symbol:        req.Symbol,
		AssetClass:    models.AssetClass(strings.ToUpper(req.AssetClass)),
		Side:          models.OrderSide(req.Side),
		Type:          models.OrderType(req.Type),
		Qty:           req.Qty,
		Notional:      req.Notional,
		TimeInForce:   models.TimeInForce(req.TimeInForce),
		LimitPrice:    req.LimitPrice,
		StopPrice:     req.StopPrice,
		TrailPrice:    req.TrailPrice,
		TrailPercent:  req.TrailPercent,
		ExtendedHours: req.ExtendedHours,
		ClientOrderID: req.ClientOrderID,
		OrderClass:    models.OrderClass(req.OrderClass),
		TakeProfit:    req.TakeProfit,
		StopLoss:      req.StopLoss,
	}

	prefs := models.DefaultRoutingPreferences()
	if req.SmartRouting != nil {
		prefs.SmartRouting = *req.SmartRouting
	}
	if req.AllowFallback != nil {
		prefs.AllowFallback = *req.AllowFallback
	}
	if req.PreferredBroker != "" {
		class := order.AssetClass
		if class == "" {
			class = h.gateway.Classifier().Classify(order.Symbol)
		}
		prefs.PreferredBrokers = map[models.AssetClass]models.BrokerID{
			class: models.BrokerID(strings.ToUpper(req.PreferredBroker)),
		}
	}

	result, err := h.gateway.RouteOrder(r.Context(), order, &prefs)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// listOrders lists orders on one broker
func (h *gatewayHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	broker, ok := requireBroker(w, r)
	if !ok {
		return
	}
	filter := models.OrderFilter{
		Status: r.URL.Query().Get("status"),
	}
	if symbols := r.URL.Query().Get("symbols"); symbols != "" {
		filter.Symbols = strings.Split(symbols, ",")
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		filter.Limit, _ = strconv.Atoi(limit)
	}

	orders, err := h.gateway.GetOrders(r.Context(), broker, &filter)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"count":  len(orders),
	})
}

func (h *gatewayHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	broker, ok := requireBroker(w, r)
	if !ok {
		return
	}
	order, err := h.gateway.GetOrder(r.Context(), broker, mux.Vars(r)["id"])
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *gatewayHandlers) modifyOrder(w http.ResponseWriter, r *http.Request) {
	broker, ok := requireBroker(w, r)
	if !ok {
		return
	}
	var patch models.OrderPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	order, err := h.gateway.ModifyOrder(r.Context(), broker, mux.Vars(r)["id"], &patch)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *gatewayHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	broker, ok := requireBroker(w, r)
	if !ok {
		return
	}
	if err := h.gateway.CancelOrder(r.Context(), broker, mux.Vars(r)["id"]); err != nil {
		writeGatewayError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *gatewayHandlers) cancelAllOrders(w http.ResponseWriter, r *http.Request) {
	broker, ok := requireBroker(w, r)
	if !ok {
		return
	}
	n, err := h.gateway.CancelAllOrders(r.Context(), broker)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": n})
}

// listPositions aggregates positions across connected brokers, or one
// broker when ?broker= is given.
func (h *gatewayHandlers) listPositions(w http.ResponseWriter, r *http.Request) {
	var (
		positions []models.Position
		err       error
	)
	if broker := r.URL.Query().Get("broker"); broker != "" {
		positions, err = h.gateway.GetBrokerPositions(r.Context(), models.BrokerID(strings.ToUpper(broker)))
	} else {
		positions, err = h.gateway.GetAllPositions(r.Context())
	}
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"positions": positions,
		"count":     len(positions),
	})
}

func (h *gatewayHandlers) getPosition(w http.ResponseWriter, r *http.Request) {
	broker, ok := requireBroker(w, r)
	if !ok {
		return
	}
	position, err := h.gateway.GetPosition(r.Context(), broker, mux.Vars(r)["symbol"])
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	if position == nil {
		writeError(w, http.StatusNotFound, "no open position for symbol")
		return
	}
	writeJSON(w, http.StatusOK, position)
}

func (h *gatewayHandlers) closePosition(w http.ResponseWriter, r *http.Request) {
	broker, ok := requireBroker(w, r)
	if !ok {
		return
	}
	var req models.ClosePositionRequest
	if qty := r.URL.Query().Get("qty"); qty != "" {
		req.Qty, _ = strconv.ParseFloat(qty, 64)
	}
	if pct := r.URL.Query().Get("percent"); pct != "" {
		req.Percent, _ = strconv.ParseFloat(pct, 64)
	}
	order, err := h.gateway.ClosePosition(r.Context(), broker, mux.Vars(r)["symbol"], &req)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *gatewayHandlers) getAccount(w http.ResponseWriter, r *http.Request) {
	broker, ok := requireBroker(w, r)
	if !ok {
		return
	}
	account, err := h.gateway.GetAccount(r.Context(), broker)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *gatewayHandlers) getQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.gateway.GetQuote(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *gatewayHandlers) getSnapshots(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "symbols query parameter is required")
		return
	}
	symbols := strings.Split(raw, ",")

	snapshots := make(map[string]*models.Snapshot, len(symbols))
	for _, symbol := range symbols {
		snap, err := h.gateway.GetSnapshot(r.Context(), symbol)
		if err != nil {
			h.logger.WithError(err).WithField("symbol", symbol).Warn("Snapshot fetch failed")
			continue
		}
		snapshots[snap.Symbol] = snap
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

func (h *gatewayHandlers) getBars(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := models.BarsRequest{
		Symbol:     mux.Vars(r)["symbol"],
		Timeframe:  models.Timeframe(q.Get("timeframe")),
		Adjustment: q.Get("adjustment"),
	}
	if start := q.Get("start"); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be RFC3339")
			return
		}
		req.Start = t
	}
	if end := q.Get("end"); end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be RFC3339")
			return
		}
		req.End = t
	}
	if limit := q.Get("limit"); limit != "" {
		req.Limit, _ = strconv.Atoi(limit)
	}

	bars, err := h.gateway.GetBars(r.Context(), &req)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bars":  bars,
		"count": len(bars),
	})
}

func (h *gatewayHandlers) getOptionChain(w http.ResponseWriter, r *http.Request) {
	contracts, err := h.gateway.GetOptionChain(r.Context(), mux.Vars(r)["underlying"])
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contracts": contracts,
		"count":     len(contracts),
	})
}

func (h *gatewayHandlers) getNews(w http.ResponseWriter, r *http.Request) {
	var symbols []string
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		symbols = strings.Split(raw, ",")
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	news, err := h.gateway.GetNews(r.Context(), symbols, limit)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"news":  news,
		"count": len(news),
	})
}

// brokerStatus is one row of GET /brokers
type brokerStatus struct {
	Broker       models.BrokerID           `json:"broker"`
	Connected    bool                      `json:"connected"`
	Capabilities models.BrokerCapabilities `json:"capabilities"`
	Health       *models.BrokerHealth      `json:"health,omitempty"`
}

func (h *gatewayHandlers) listBrokers(w http.ResponseWriter, r *http.Request) {
	ids := h.gateway.RegisteredBrokers()
	out := make([]brokerStatus, 0, len(ids))
	for _, id := range ids {
		status := brokerStatus{Broker: id}
		if adapter, ok := h.gateway.Adapter(id); ok {
			status.Connected = adapter.IsConnected()
			status.Capabilities = adapter.Capabilities()
		}
		if health, ok := h.gateway.BrokerHealth(id); ok {
			status.Health = &health
		}
		out = append(out, status)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"brokers": out,
		"count":   len(out),
	})
}

// probeBrokerHealth actively probes every registered broker
func (h *gatewayHandlers) probeBrokerHealth(w http.ResponseWriter, r *http.Request) {
	health := h.gateway.CheckAllBrokerHealth(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"health": health,
		"count":  len(health),
	})
}

func (h *gatewayHandlers) unregisterBroker(w http.ResponseWriter, r *http.Request) {
	id := models.BrokerID(strings.ToUpper(mux.Vars(r)["id"]))
	if err := h.gateway.UnregisterBroker(id); err != nil {
		writeGatewayError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// routingRecommendation runs broker selection without placing an order
func (h *gatewayHandlers) routingRecommendation(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol query parameter is required")
		return
	}
	orderType := models.OrderType(r.URL.Query().Get("type"))
	if orderType == "" {
		orderType = models.OrderTypeMarket
	}

	decision, err := h.gateway.GetRoutingRecommendation(symbol, orderType, nil)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (h *gatewayHandlers) classifySymbol(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol query parameter is required")
		return
	}
	class := h.gateway.Classifier().Classify(symbol)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":      symbol,
		"asset_class": class,
		"brokers":     h.gateway.BrokersForAssetClass(class),
	})
}

// requireBroker extracts the mandatory ?broker= parameter
func requireBroker(w http.ResponseWriter, r *http.Request) (models.BrokerID, bool) {
	broker := r.URL.Query().Get("broker")
	if broker == "" {
		writeError(w, http.StatusBadRequest, "broker query parameter is required")
		return "", false
	}
	return models.BrokerID(strings.ToUpper(broker)), true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeGatewayError maps the error taxonomy onto HTTP statuses. The broker
// identity rides along when the error carries one.
func writeGatewayError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidOrder), errors.Is(err, models.ErrNoCapableBroker):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrNoBrokerAvailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, models.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, models.ErrAuthenticationFailed), errors.Is(err, models.ErrConnection):
		status = http.StatusBadGateway
	}

	body := map[string]string{"error": err.Error()}
	if broker, ok := models.ErrorBroker(err); ok {
		body["broker"] = string(broker)
	}
	writeJSON(w, status, body)
}
