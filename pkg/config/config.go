package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `env:", prefix=SERVER_"`
	Router   RouterConfig   `env:", prefix=ROUTER_"`
	Redis    RedisConfig    `env:", prefix=REDIS_"`
	NATS     NATSConfig     `env:", prefix=NATS_"`
	InfluxDB InfluxConfig   `env:", prefix=INFLUXDB_"`
	Security SecurityConfig `env:", prefix=SECURITY_"`
	Logging  LoggingConfig  `env:", prefix=LOG_"`

	// Broker credentials, loaded separately due to nesting
	Brokers BrokersConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
}

// RouterConfig holds order-routing behaviour configuration
type RouterConfig struct {
	CallTimeout         time.Duration `env:"CALL_TIMEOUT, default=30s"`
	SmartRouting        bool          `env:"SMART_ROUTING, default=true"`
	AllowFallback       bool          `env:"ALLOW_FALLBACK, default=true"`
	StrictStatusMapping bool          `env:"STRICT_STATUS_MAPPING, default=false"`
	HealthCheckInterval time.Duration `env:"HEALTH_CHECK_INTERVAL, default=1m"`
	PrioritiesFile      string        `env:"PRIORITIES_FILE"`
	QuoteCacheTTL       time.Duration `env:"QUOTE_CACHE_TTL, default=2s"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled      bool          `env:"ENABLED, default=true"`
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	PoolSize     int           `env:"POOL_SIZE, default=10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS, default=5"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	Enabled       bool          `env:"ENABLED, default=true"`
	URL           string        `env:"URL, default=nats://localhost:4222"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
	DrainTimeout  time.Duration `env:"DRAIN_TIMEOUT, default=30s"`
}

// InfluxConfig holds InfluxDB telemetry configuration
type InfluxConfig struct {
	Enabled bool          `env:"ENABLED, default=false"`
	URL     string        `env:"URL, default=http://localhost:8086"`
	Token   string        `env:"TOKEN"`
	Org     string        `env:"ORG, default=tradoverse"`
	Bucket  string        `env:"BUCKET, default=broker-gateway"`
	Timeout time.Duration `env:"TIMEOUT, default=10s"`
}

// SecurityConfig holds CORS and API hardening configuration
type SecurityConfig struct {
	CORSEnabled bool     `env:"CORS_ENABLED, default=true"`
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`
	CORSMethods []string `env:"CORS_METHODS, default=GET,POST,PATCH,DELETE,OPTIONS"`
	CORSHeaders []string `env:"CORS_HEADERS, default=*"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL, default=info"`
	Format string `env:"FORMAT, default=json"`
	Output string `env:"OUTPUT, default=stdout"`
}

// BrokersConfig groups per-venue credentials and endpoints
type BrokersConfig struct {
	Alpaca  AlpacaConfig
	Binance BinanceConfig
	Paper   PaperConfig
}

// AlpacaConfig holds Alpaca-specific configuration
type AlpacaConfig struct {
	APIKey      string `env:"ALPACA_API_KEY"`
	APISecret   string `env:"ALPACA_API_SECRET"`
	Environment string `env:"ALPACA_ENVIRONMENT, default=paper"` // paper or live
	APIURL      string `env:"ALPACA_API_URL"`                    // Auto-set based on environment
	DataURL     string `env:"ALPACA_DATA_URL"`                   // Auto-set based on environment
	StreamURL   string `env:"ALPACA_STREAM_URL"`                 // Auto-set based on environment
	DataFeed    string `env:"ALPACA_DATA_FEED, default=iex"`     // iex or sip
}

// Configured reports whether credentials are present
func (c AlpacaConfig) Configured() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// BinanceConfig holds Binance-specific configuration
type BinanceConfig struct {
	APIKey      string        `env:"BINANCE_API_KEY"`
	SecretKey   string        `env:"BINANCE_SECRET_KEY"`
	Environment string        `env:"BINANCE_ENVIRONMENT, default=live"` // live or testnet
	APIURL      string        `env:"BINANCE_API_URL"`                   // Auto-set based on environment
	StreamURL   string        `env:"BINANCE_STREAM_URL"`                // Auto-set based on environment
	RecvWindow  time.Duration `env:"BINANCE_RECV_WINDOW, default=5s"`
}

// Configured reports whether credentials are present
func (c BinanceConfig) Configured() bool {
	return c.APIKey != "" && c.SecretKey != ""
}

// PaperConfig holds the in-process simulator venue configuration
type PaperConfig struct {
	Enabled      bool    `env:"PAPER_ENABLED, default=false"`
	StartingCash float64 `env:"PAPER_STARTING_CASH, default=100000"`
	Currency     string  `env:"PAPER_CURRENCY, default=USD"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	ctx := context.Background()
	var cfg Config

	// Load main config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	// Load broker configs separately due to nested structure
	var alpacaCfg AlpacaConfig
	if err := envconfig.Process(ctx, &alpacaCfg); err != nil {
		return nil, fmt.Errorf("failed to process alpaca config: %w", err)
	}

	// Auto-set Alpaca URLs based on environment
	if alpacaCfg.Environment == "live" {
		if alpacaCfg.APIURL == "" {
			alpacaCfg.APIURL = "https://api.alpaca.markets"
		}
	} else {
		// Default to paper
		if alpacaCfg.APIURL == "" {
			alpacaCfg.APIURL = "https://paper-api.alpaca.markets"
		}
	}
	if alpacaCfg.DataURL == "" {
		alpacaCfg.DataURL = "https://data.alpaca.markets"
	}
	if alpacaCfg.StreamURL == "" {
		alpacaCfg.StreamURL = "wss://stream.data.alpaca.markets/v2/" + alpacaCfg.DataFeed
	}
	cfg.Brokers.Alpaca = alpacaCfg

	// Load Binance config
	var binanceCfg BinanceConfig
	if err := envconfig.Process(ctx, &binanceCfg); err != nil {
		return nil, fmt.Errorf("failed to process binance config: %w", err)
	}

	// Auto-set Binance URLs based on environment
	if binanceCfg.Environment == "testnet" {
		if binanceCfg.APIURL == "" {
			binanceCfg.APIURL = "https://testnet.binance.vision"
		}
		if binanceCfg.StreamURL == "" {
			binanceCfg.StreamURL = "wss://testnet.binance.vision"
		}
	} else {
		if binanceCfg.APIURL == "" {
			binanceCfg.APIURL = "https://api.binance.com"
		}
		if binanceCfg.StreamURL == "" {
			binanceCfg.StreamURL = "wss://stream.binance.com:9443"
		}
	}
	cfg.Brokers.Binance = binanceCfg

	// Load paper venue config
	var paperCfg PaperConfig
	if err := envconfig.Process(ctx, &paperCfg); err != nil {
		return nil, fmt.Errorf("failed to process paper config: %w", err)
	}
	cfg.Brokers.Paper = paperCfg

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Router.CallTimeout <= 0 {
		return fmt.Errorf("router call timeout must be positive")
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("Redis host is required when Redis is enabled")
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("NATS URL is required when NATS is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		return fmt.Errorf("InfluxDB URL is required when telemetry is enabled")
	}

	if c.Brokers.Alpaca.APIKey != "" && c.Brokers.Alpaca.APISecret == "" {
		return fmt.Errorf("ALPACA_API_SECRET is required when ALPACA_API_KEY is set")
	}

	if c.Brokers.Binance.APIKey != "" && c.Brokers.Binance.SecretKey == "" {
		return fmt.Errorf("BINANCE_SECRET_KEY is required when BINANCE_API_KEY is set")
	}

	return nil
}

// GetRedisAddr returns Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GetServerAddr returns server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
