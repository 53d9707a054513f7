// Package messaging publishes gateway events onto NATS so downstream
// consumers (fill recorders, dashboards, alerting) can react without
// polling the HTTP API. Publishing is fire-and-forget: a broken bus never
// blocks or fails an order.
package messaging

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/pkg/config"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

// Subject layout. The broker id is lowercased into the last token so
// consumers can subscribe per venue or wildcard across all of them.
const (
	subjectOrderRouted  = "orders.routed.%s"
	subjectOrderUpdate  = "orders.updates.%s"
	subjectBrokerHealth = "brokers.health.%s"
)

// Publisher is the NATS event publisher
type Publisher struct {
	conn   *nats.Conn
	logger *logrus.Entry
	cfg    *config.NATSConfig
}

// NewPublisher connects to NATS with reconnect handling
func NewPublisher(cfg *config.NATSConfig, logger *logrus.Logger) (*Publisher, error) {
	entry := logger.WithField("component", "nats")
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			entry.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			entry.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			entry.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	entry.WithField("url", cfg.URL).Info("NATS connected")
	return &Publisher{
		conn:   conn,
		logger: entry,
		cfg:    cfg,
	}, nil
}

// Close drains in-flight publishes and closes the connection
func (p *Publisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}

	deadline := time.After(p.cfg.DrainTimeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			p.conn.Close()
			return nil
		case <-ticker.C:
			if p.conn.IsClosed() {
				return nil
			}
		}
	}
}

// IsConnected reports whether the bus connection is up
func (p *Publisher) IsConnected() bool {
	return p.conn.IsConnected()
}

// PublishOrderRouted announces a routed order under the selected broker's
// subject.
func (p *Publisher) PublishOrderRouted(result *models.RouteResult) error {
	broker := models.BrokerID("unknown")
	if result.Decision != nil {
		broker = result.Decision.SelectedBroker
	}
	return p.publish(fmt.Sprintf(subjectOrderRouted, subjectToken(broker)), result)
}

// PublishOrderUpdate republishes a streamed order status change
func (p *Publisher) PublishOrderUpdate(update *models.OrderUpdate) error {
	return p.publish(fmt.Sprintf(subjectOrderUpdate, subjectToken(update.Broker)), update)
}

// PublishBrokerHealth announces a broker health transition
func (p *Publisher) PublishBrokerHealth(health models.BrokerHealth) error {
	return p.publish(fmt.Sprintf(subjectBrokerHealth, subjectToken(health.Broker)), health)
}

func (p *Publisher) publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

func subjectToken(broker models.BrokerID) string {
	return strings.ToLower(string(broker))
}
