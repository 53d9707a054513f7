// Package app assembles the gateway: configuration, optional
// infrastructure (NATS, Redis, InfluxDB), broker adapters, the routing
// core and the HTTP API, with ordered startup and graceful shutdown.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/internal/api"
	"github.com/tradoverse/broker-gateway/internal/broker"
	"github.com/tradoverse/broker-gateway/internal/broker/alpaca"
	"github.com/tradoverse/broker-gateway/internal/broker/binance"
	"github.com/tradoverse/broker-gateway/internal/broker/paper"
	"github.com/tradoverse/broker-gateway/internal/cache"
	"github.com/tradoverse/broker-gateway/internal/messaging"
	"github.com/tradoverse/broker-gateway/internal/routing"
	"github.com/tradoverse/broker-gateway/internal/telemetry"
	"github.com/tradoverse/broker-gateway/pkg/config"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

// App is the assembled gateway process
type App struct {
	cfg    *config.Config
	logger *logrus.Logger

	gateway    *routing.Router
	publisher  *messaging.Publisher
	quoteCache *cache.RedisCache
	recorder   *telemetry.InfluxRecorder
	apiServer  *api.Server
}

// New creates an application instance
func New(cfg *config.Config, logger *logrus.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Initialize wires infrastructure, registers broker adapters and builds
// the API server. Optional infrastructure failing to come up is logged
// and skipped; a gateway with no broker at all is an error.
func (a *App) Initialize() error {
	a.initializeInfrastructure()

	a.gateway = routing.NewRouter(&a.cfg.Router, a.logger)
	if a.cfg.Router.PrioritiesFile != "" {
		overrides, err := config.LoadRoutingOverrides(a.cfg.Router.PrioritiesFile)
		if err != nil {
			return fmt.Errorf("failed to load routing overrides: %w", err)
		}
		a.gateway.ApplyOverrides(overrides)
		a.logger.WithField("file", a.cfg.Router.PrioritiesFile).Info("Routing priority overrides applied")
	}

	if a.publisher != nil {
		a.gateway.SetEventPublisher(a.publisher)
	}
	if a.quoteCache != nil {
		a.gateway.SetQuoteCache(a.quoteCache)
	}
	if a.recorder != nil {
		a.gateway.SetTelemetry(a.recorder)
	}

	if err := a.registerBrokers(); err != nil {
		return err
	}

	a.apiServer = api.NewServer(a.cfg, a.logger, a.gateway, a.publisher, a.quoteCache, a.recorder)
	return nil
}

// initializeInfrastructure brings up the optional NATS, Redis and
// InfluxDB clients. Each is independent; a failure disables that
// component only.
func (a *App) initializeInfrastructure() {
	if a.cfg.NATS.Enabled {
		publisher, err := messaging.NewPublisher(&a.cfg.NATS, a.logger)
		if err != nil {
			a.logger.WithError(err).Warn("NATS unavailable, event publishing disabled")
		} else {
			a.publisher = publisher
		}
	}

	if a.cfg.Redis.Enabled {
		quoteCache, err := cache.NewRedisCache(&a.cfg.Redis, a.logger)
		if err != nil {
			a.logger.WithError(err).Warn("Redis unavailable, quote caching disabled")
		} else {
			a.quoteCache = quoteCache
		}
	}

	if a.cfg.InfluxDB.Enabled {
		a.recorder = telemetry.NewInfluxRecorder(&a.cfg.InfluxDB, a.logger)
	}
}

// registerBrokers builds an adapter per configured venue, connects it and
// registers it with the router. A venue that fails to connect is still
// registered; the health monitor retries it.
func (a *App) registerBrokers() error {
	strict := a.cfg.Router.StrictStatusMapping
	var adapters []broker.Adapter

	if a.cfg.Brokers.Alpaca.Configured() {
		adapters = append(adapters, alpaca.New(a.cfg.Brokers.Alpaca, strict, a.logger))
	}
	if a.cfg.Brokers.Binance.Configured() {
		adapters = append(adapters, binance.New(a.cfg.Brokers.Binance, strict, a.logger))
	}
	if a.cfg.Brokers.Paper.Enabled {
		adapters = append(adapters, paper.New(a.cfg.Brokers.Paper, a.logger, a.gateway.Classifier().Classify))
	}

	if len(adapters) == 0 {
		return fmt.Errorf("no broker configured: set credentials for at least one venue or enable the paper broker")
	}

	for _, adapter := range adapters {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := adapter.Connect(ctx)
		cancel()
		if err != nil {
			a.logger.WithError(err).WithField("broker", adapter.ID()).
				Warn("Broker connect failed, registering disconnected")
		}
		if err := a.gateway.RegisterBroker(adapter); err != nil {
			return fmt.Errorf("failed to register broker %s: %w", adapter.ID(), err)
		}
	}
	return nil
}

// Start launches the health monitor, order-update republishing and the
// HTTP server. The HTTP listener runs in a goroutine; listener errors
// are fatal for the process.
func (a *App) Start() error {
	a.gateway.StartHealthMonitor()
	a.startUpdateRepublishing()

	go func() {
		if err := a.apiServer.Start(); err != nil {
			a.logger.WithError(err).Fatal("HTTP server failed")
		}
	}()
	return nil
}

// startUpdateRepublishing forwards streamed order updates from every
// connected broker onto the event bus.
func (a *App) startUpdateRepublishing() {
	if a.publisher == nil {
		return
	}
	for _, id := range a.gateway.ConnectedBrokers() {
		adapter, ok := a.gateway.Adapter(id)
		if !ok {
			continue
		}
		if _, err := adapter.SubscribeOrderUpdates(func(update *models.OrderUpdate) {
			if err := a.publisher.PublishOrderUpdate(update); err != nil {
				a.logger.WithError(err).WithField("broker", update.Broker).
					Warn("Failed to publish order update")
			}
		}); err != nil {
			a.logger.WithError(err).WithField("broker", id).
				Warn("Order update stream unavailable for broker")
		}
	}
}

// Stop shuts down in reverse dependency order: HTTP first so no new work
// arrives, then the routing core and adapters, then infrastructure.
func (a *App) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.apiServer != nil {
		if err := a.apiServer.Stop(ctx); err != nil {
			a.logger.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	a.gateway.Stop()
	for _, id := range a.gateway.RegisteredBrokers() {
		if adapter, ok := a.gateway.Adapter(id); ok {
			if err := adapter.Disconnect(); err != nil {
				a.logger.WithError(err).WithField("broker", id).Warn("Broker disconnect error")
			}
		}
	}

	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.quoteCache != nil {
		if err := a.quoteCache.Close(); err != nil {
			a.logger.WithError(err).Warn("Redis close error")
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.WithError(err).Warn("NATS close error")
		}
	}

	a.logger.Info("Application stopped")
	return nil
}
