package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradoverse/broker-gateway/internal/broker/paper"
	"github.com/tradoverse/broker-gateway/internal/routing"
	"github.com/tradoverse/broker-gateway/pkg/config"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

// newTestServer wires a server over a router backed by the paper venue
func newTestServer(t *testing.T) *Server {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Router: config.RouterConfig{
			CallTimeout:   5 * time.Second,
			SmartRouting:  true,
			AllowFallback: true,
		},
		Security: config.SecurityConfig{CORSEnabled: false},
	}

	gateway := routing.NewRouter(&cfg.Router, log)
	venue := paper.New(config.PaperConfig{StartingCash: 100000, Currency: "USD"}, log, gateway.Classifier().Classify)
	require.NoError(t, venue.Connect(context.Background()))
	require.NoError(t, gateway.RegisterBroker(venue))
	t.Cleanup(func() { _ = venue.Disconnect() })

	return NewServer(cfg, log, gateway, nil, nil, nil)
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestPlaceOrderRoutesToPaperVenue(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/v1/orders",
		`{"symbol":"AAPL","side":"buy","type":"market","qty":1,"time_in_force":"day"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result models.RouteResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotNil(t, result.Order)
	require.NotNil(t, result.Decision)
	assert.Equal(t, models.BrokerPaper, result.Decision.SelectedBroker)
	assert.Equal(t, models.BrokerPaper, result.Order.Broker)
	assert.Equal(t, models.OrderStatusFilled, result.Order.Status)
	assert.Equal(t, "AAPL", result.Order.Symbol)
}

func TestPlaceOrderRejectsInvalidPayload(t *testing.T) {
	s := newTestServer(t)

	// Missing side fails validation before any routing happens
	rec := doRequest(s, http.MethodPost, "/api/v1/orders",
		`{"symbol":"AAPL","type":"market","qty":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/v1/orders", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderEndpointsRequireBrokerParam(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/orders", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "broker")
}

func TestGetQuoteReturnsTwoSidedMarket(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/quotes/AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var quote models.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Greater(t, quote.AskPrice, quote.BidPrice)
}

func TestClassifyEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/assets/classify?symbol=BTC/USD", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Symbol     string            `json:"symbol"`
		AssetClass models.AssetClass `json:"asset_class"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.AssetClassCrypto, body.AssetClass)

	rec = doRequest(s, http.MethodGet, "/api/v1/assets/classify", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutingRecommendationDryRun(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/routing/recommendation?symbol=AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var decision models.RoutingDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, models.BrokerPaper, decision.SelectedBroker)
	assert.Equal(t, models.AssetClassUSEquity, decision.AssetClass)
}

func TestGetPositionReturns404WhenFlat(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/positions/TSLA?broker=PAPER", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	// A limit far below market rests instead of filling
	rec := doRequest(s, http.MethodPost, "/api/v1/orders",
		`{"symbol":"MSFT","side":"buy","type":"limit","qty":2,"limit_price":0.01,"time_in_force":"gtc"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result models.RouteResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, models.OrderStatusAccepted, result.Order.Status)
	orderID := result.Order.BrokerOrderID

	rec = doRequest(s, http.MethodGet, "/api/v1/orders/"+orderID+"?broker=PAPER", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodDelete, "/api/v1/orders/"+orderID+"?broker=PAPER", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/v1/orders/"+orderID+"?broker=PAPER", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var order models.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
}

func TestListBrokers(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/brokers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Brokers []brokerStatus `json:"brokers"`
		Count   int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, models.BrokerPaper, body.Brokers[0].Broker)
	assert.True(t, body.Brokers[0].Connected)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestUnknownOrderMapsToUnprocessable(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/orders/no-such-id?broker=PAPER", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
