package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "card_shop",
		Short:   "Card shop: instant card delivery with asynchronous payment settlement",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (env CARDSHOP_* overrides)")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
