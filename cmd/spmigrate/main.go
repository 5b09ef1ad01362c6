package main

import (
	"os"

	"spmigrate/cmd/spmigrate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
