package main

import (
	"os"

	"github.com/web3-frozen/market-snapshot/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
