package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "dev"

	// CLI flags
	cfgPath  string
	menuPath string
	debug    bool
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "menurag",
		Short:         "Semantic search over a restaurant menu",
		Long:          "menurag finds the menu items most relevant to a free-text request and renders them as context for a language model",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTUI,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to YAML config file (default ./config.yaml or ~/.config/menurag/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&menuPath, "menu", "m", "", "Menu file (.json or --- separated text); overrides config")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	rootCmd.AddCommand(
		newTUICmd(),
		newSearchCmd(),
		newContextCmd(),
		newAddCmd(),
		newStatsCmd(),
	)
	return rootCmd
}
