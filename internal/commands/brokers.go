package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tradoverse/broker-gateway/pkg/config"
	"github.com/tradoverse/broker-gateway/pkg/models"
)

// brokersCmd shows venue configuration and static capabilities
var brokersCmd = &cobra.Command{
	Use:   "brokers",
	Short: "Show configured brokers and their capabilities",
	Long: `Read the environment configuration and print, for every supported
venue, whether credentials are present and what the capability registry
says it can do. Nothing is contacted; this is a static view.`,
	RunE: runBrokers,
}

func init() {
	rootCmd.AddCommand(brokersCmd)
}

func runBrokers(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	configured := map[models.BrokerID]bool{
		models.BrokerAlpaca:  cfg.Brokers.Alpaca.Configured(),
		models.BrokerBinance: cfg.Brokers.Binance.Configured(),
		models.BrokerPaper:   cfg.Brokers.Paper.Enabled,
	}

	for _, caps := range models.AllDefaultCapabilities() {
		state := "not configured"
		if configured[caps.Broker] {
			state = "configured"
		}
		classes := make([]string, 0, len(caps.AssetClasses))
		for _, class := range caps.AssetClasses {
			classes = append(classes, string(class))
		}
		fmt.Printf("%-20s %-15s classes=%s oco=%t bracket=%t streaming=%t\n",
			caps.Broker, state, strings.Join(classes, ","),
			caps.SupportsOCOOrders, caps.SupportsBracketOrders, caps.StreamsQuotes)
	}
	return nil
}
