package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "broker-gateway",
	Short: "Multi-Broker Order Routing Gateway",
	Long: `A gateway that presents one order and market-data API across multiple
brokerage venues.

Incoming orders are classified by asset class, routed to the healthiest
capable broker and translated into each venue's wire format. Broker health
is tracked continuously so a degraded venue is routed around, with a
single-hop fallback when the selected broker rejects the dispatch.`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
