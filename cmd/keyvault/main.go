package main

import (
	"os"

	"github.com/dashpay/dash-evo-tool-sub003/cmd/keyvault/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
