package main

import (
	"os"

	"github.com/marmos91/dittosftp/cmd/dittosftp/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
