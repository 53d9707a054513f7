package main

import (
	"os"

	"github.com/tradoverse/broker-gateway/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}