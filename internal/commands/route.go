package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tradoverse/broker-gateway/internal/broker"
	"github.com/tradoverse/broker-gateway/internal/broker/alpaca"
	"github.com/tradoverse/broker-gateway/internal/broker/binance"
	"github.com/tradoverse/broker-gateway/internal/broker/paper"
	"github.com/tradoverse/broker-gateway/internal/routing"
	"github.com/tradoverse/broker-gateway/pkg/config"
	"github.com/tradoverse/broker-gateway/pkg/logger"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

var (
	routeOrderType string
	routeBroker    string
)

// routeCmd asks the decision engine where an order would go without
// placing anything.
var routeCmd = &cobra.Command{
	Use:   "route SYMBOL",
	Short: "Dry-run a routing decision for a symbol",
	Long: `Connect the configured brokers, run the routing decision engine for
the given symbol and print the decision as JSON. No order is placed.

Examples:
  broker-gateway route AAPL
  broker-gateway route BTC/USD --type limit
  broker-gateway route AAPL --prefer ALPACA`,
	Args: cobra.ExactArgs(1),
	RunE: runRoute,
}

func init() {
	rootCmd.AddCommand(routeCmd)

	routeCmd.Flags().StringVarP(&routeOrderType, "type", "t", "market", "Order type to route (market, limit, stop, stop_limit)")
	routeCmd.Flags().StringVar(&routeBroker, "prefer", "", "Preferred broker for the symbol's asset class")
}

func runRoute(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.Logging.Level = "error"
	if verbose {
		cfg.Logging.Level = "debug"
	}
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	gateway := routing.NewRouter(&cfg.Router, log)
	if cfg.Router.PrioritiesFile != "" {
		overrides, err := config.LoadRoutingOverrides(cfg.Router.PrioritiesFile)
		if err != nil {
			return fmt.Errorf("failed to load routing overrides: %w", err)
		}
		gateway.ApplyOverrides(overrides)
	}

	var adapters []broker.Adapter
	strict := cfg.Router.StrictStatusMapping
	if cfg.Brokers.Alpaca.Configured() {
		adapters = append(adapters, alpaca.New(cfg.Brokers.Alpaca, strict, log))
	}
	if cfg.Brokers.Binance.Configured() {
		adapters = append(adapters, binance.New(cfg.Brokers.Binance, strict, log))
	}
	if cfg.Brokers.Paper.Enabled {
		adapters = append(adapters, paper.New(cfg.Brokers.Paper, log, gateway.Classifier().Classify))
	}
	if len(adapters) == 0 {
		return fmt.Errorf("no broker configured")
	}

	for _, adapter := range adapters {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := adapter.Connect(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Note: %s not connected: %v\n", adapter.ID(), err)
		}
		cancel()
		if err := gateway.RegisterBroker(adapter); err != nil {
			return err
		}
	}
	defer func() {
		for _, adapter := range adapters {
			adapter.Disconnect()
		}
	}()

	symbol := args[0]
	prefs := models.DefaultRoutingPreferences()
	if routeBroker != "" {
		class := gateway.Classifier().Classify(symbol)
		prefs.PreferredBrokers = map[models.AssetClass]models.BrokerID{
			class: models.BrokerID(routeBroker),
		}
	}

	decision, err := gateway.GetRoutingRecommendation(symbol, models.OrderType(routeOrderType), &prefs)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
