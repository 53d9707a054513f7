// Package telemetry sinks routing measurements into InfluxDB. Writes go
// through the async write API so a slow or unavailable metrics store never
// adds latency to the order path.
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"github.com/tradoverse/broker-gateway/pkg/config"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

// InfluxRecorder writes order-route and broker-health measurements
type InfluxRecorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   *logrus.Entry
}

// NewInfluxRecorder creates the recorder and drains the client's async
// error channel into the log.
func NewInfluxRecorder(cfg *config.InfluxConfig, logger *logrus.Logger) *InfluxRecorder {
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetHTTPRequestTimeout(uint(cfg.Timeout.Seconds())).
			SetLogLevel(0),
	)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	r := &InfluxRecorder{
		client:   client,
		writeAPI: writeAPI,
		logger:   logger.WithField("component", "influxdb"),
	}
	go func() {
		for err := range writeAPI.Errors() {
			r.logger.WithError(err).Warn("Telemetry write failed")
		}
	}()
	return r
}

// Close flushes buffered points and closes the client
func (r *InfluxRecorder) Close() {
	r.writeAPI.Flush()
	r.client.Close()
}

// Health checks InfluxDB health
func (r *InfluxRecorder) Health(ctx context.Context) error {
	health, err := r.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}
	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("influxdb health check failed: %s", msg)
	}
	return nil
}

// RecordOrderRoute writes one order_route point: which venue handled which
// asset class, how long dispatch took and how it ended.
func (r *InfluxRecorder) RecordOrderRoute(broker models.BrokerID, class models.AssetClass, durationMs int64, err error) {
	status := "ok"
	if err != nil {
		status = errorTag(err)
	}
	point := influxdb2.NewPoint(
		"order_route",
		map[string]string{
			"broker":      string(broker),
			"asset_class": string(class),
			"status":      status,
		},
		map[string]interface{}{
			"latency_ms": durationMs,
		},
		time.Now(),
	)
	r.writeAPI.WritePoint(point)
}

// RecordBrokerHealth writes one broker_health point from a health record
func (r *InfluxRecorder) RecordBrokerHealth(health models.BrokerHealth) {
	point := influxdb2.NewPoint(
		"broker_health",
		map[string]string{
			"broker": string(health.Broker),
		},
		map[string]interface{}{
			"healthy":              health.IsHealthy,
			"connected":            health.IsConnected,
			"error_rate":           health.ErrorRate,
			"consecutive_failures": health.ConsecutiveFailures,
			"response_time_ms":     health.LastResponseTime.Milliseconds(),
			"total_calls":          health.TotalCalls,
			"total_failures":       health.TotalFailures,
		},
		health.LastChecked,
	)
	r.writeAPI.WritePoint(point)
}

// errorTag renders the taxonomy kind as a low-cardinality tag value
func errorTag(err error) string {
	kind := models.ErrorKind(err)
	return strings.ReplaceAll(kind.Error(), " ", "_")
}
