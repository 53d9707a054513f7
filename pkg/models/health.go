package models

import "time"

// BrokerHealth is the live connectivity/error record for one registered
// broker. It is the single piece of cross-request mutable shared state in
// the core; the health tracker updates it atomically per broker.
type BrokerHealth struct {
	Broker              BrokerID      `json:"broker"`
	IsConnected         bool          `json:"is_connected"`
	IsHealthy           bool          `json:"is_healthy"`
	LastResponseTime    time.Duration `json:"last_response_time_ns"`
	ErrorRate           float64       `json:"error_rate"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	TotalCalls          int64         `json:"total_calls"`
	TotalFailures       int64         `json:"total_failures"`
	LastError           string        `json:"last_error,omitempty"`
	LastChecked         time.Time     `json:"last_checked"`
	LastSuccess         time.Time     `json:"last_success,omitempty"`
}
