package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vitalog/vitalog-api/cmd/configure/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "vitalog-configure",
		Short: "Configuration tool for the Vitalog API",
		Long:  "CLI tool for inspecting and updating runtime configuration",
	}

	rootCmd.AddCommand(commands.NewRatelimitCmd())
	rootCmd.AddCommand(commands.NewQuotasCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
