package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "libreminder",
	Short: "libreminder reads your loans off the library portal and reminds you before they are due.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "libreminder.json5", "Path to the config file.")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "v", false, "Enable debug logging.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
