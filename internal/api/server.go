// Package api exposes the gateway over HTTP: order routing, broker
// management, positions, account and market data. The server is a thin
// translation layer; all decisions live in the routing package.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/internal/cache"
	"github.com/tradoverse/broker-gateway/internal/messaging"
	"github.com/tradoverse/broker-gateway/internal/routing"
	"github.com/tradoverse/broker-gateway/internal/telemetry"
	"github.com/tradoverse/broker-gateway/pkg/config"
)

// Server is the HTTP API server
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	gateway    *routing.Router
	router     *mux.Router
	httpServer *http.Server

	// Optional infrastructure, surfaced in /health when present
	publisher  *messaging.Publisher
	quoteCache *cache.RedisCache
	recorder   *telemetry.InfluxRecorder

	handlers *gatewayHandlers
}

// NewServer wires the API server. publisher, quoteCache and recorder may be
// nil when the corresponding infrastructure is disabled.
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	gateway *routing.Router,
	publisher *messaging.Publisher,
	quoteCache *cache.RedisCache,
	recorder *telemetry.InfluxRecorder,
) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		gateway:    gateway,
		publisher:  publisher,
		quoteCache: quoteCache,
		recorder:   recorder,
		handlers:   newGatewayHandlers(gateway, logger),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.loggingMiddleware)
	if s.cfg.Security.CORSEnabled {
		s.router.Use(s.corsMiddleware)
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	apiV1 := s.router.PathPrefix("/api/v1").Subrouter()
	h := s.handlers

	apiV1.HandleFunc("/orders", h.placeOrder).Methods("POST")
	apiV1.HandleFunc("/orders", h.listOrders).Methods("GET")
	apiV1.HandleFunc("/orders", h.cancelAllOrders).Methods("DELETE")
	apiV1.HandleFunc("/orders/{id}", h.getOrder).Methods("GET")
	apiV1.HandleFunc("/orders/{id}", h.modifyOrder).Methods("PATCH")
	apiV1.HandleFunc("/orders/{id}", h.cancelOrder).Methods("DELETE")

	apiV1.HandleFunc("/positions", h.listPositions).Methods("GET")
	apiV1.HandleFunc("/positions/{symbol}", h.getPosition).Methods("GET")
	apiV1.HandleFunc("/positions/{symbol}", h.closePosition).Methods("DELETE")

	apiV1.HandleFunc("/account", h.getAccount).Methods("GET")

	apiV1.HandleFunc("/quotes/{symbol}", h.getQuote).Methods("GET")
	apiV1.HandleFunc("/snapshots", h.getSnapshots).Methods("GET")
	apiV1.HandleFunc("/bars/{symbol}", h.getBars).Methods("GET")
	apiV1.HandleFunc("/options/{underlying}", h.getOptionChain).Methods("GET")
	apiV1.HandleFunc("/news", h.getNews).Methods("GET")

	apiV1.HandleFunc("/brokers", h.listBrokers).Methods("GET")
	apiV1.HandleFunc("/brokers/health", h.probeBrokerHealth).Methods("GET")
	apiV1.HandleFunc("/brokers/{id}", h.unregisterBroker).Methods("DELETE")

	apiV1.HandleFunc("/routing/recommendation", h.routingRecommendation).Methods("GET")
	apiV1.HandleFunc("/assets/classify", h.classifySymbol).Methods("GET")
}

// Start blocks serving HTTP until the listener fails or Stop is called
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth reports process liveness plus the state of each wired
// component. Broker states come from the health tracker, not live probes;
// GET /api/v1/brokers/health forces a probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := map[string]bool{
		"nats":   s.publisher != nil && s.publisher.IsConnected(),
		"redis":  s.quoteCache != nil && s.quoteCache.Health(r.Context()) == nil,
		"influx": s.recorder != nil && s.recorder.Health(r.Context()) == nil,
	}

	brokers := map[string]bool{}
	for _, h := range s.gateway.AllBrokerHealth() {
		brokers[string(h.Broker)] = h.IsHealthy
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"services":  services,
		"brokers":   brokers,
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   wrapped.statusCode,
			"duration": time.Since(start),
			"remote":   r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Error("Panic recovered")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(s.cfg.Security.CORSOrigins),
		handlers.AllowedMethods(s.cfg.Security.CORSMethods),
		handlers.AllowedHeaders(s.cfg.Security.CORSHeaders),
		handlers.AllowCredentials(),
	)(next)
}

// responseWriter captures the status code for request logging
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
