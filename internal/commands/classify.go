package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tradoverse/broker-gateway/internal/routing"
)

// classifyCmd resolves symbols to asset classes without starting the server
var classifyCmd = &cobra.Command{
	Use:   "classify SYMBOL [SYMBOL...]",
	Short: "Classify symbols into asset classes",
	Long: `Run the gateway's symbol classifier against one or more symbols and
print the resolved asset class for each.

Examples:
  broker-gateway classify AAPL
  broker-gateway classify BTC/USD EUR/USD ESZ25`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	classifier := routing.NewAssetClassifier()
	for _, symbol := range args {
		fmt.Printf("%-16s %s\n", symbol, classifier.Classify(symbol))
	}
	return nil
}
