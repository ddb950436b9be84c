package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"libreminder/internal/components/chrono"
	"libreminder/internal/components/serviceutil"
	"libreminder/internal/runner"

	"github.com/spf13/cobra"
)

var (
	dryRun  bool
	runDate string
)

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the message instead of delivering it.")
	runCmd.Flags().StringVar(&runDate, "date", "", "Pretend today is the given date (YYYY-MM-DD).")
	rootCmd.AddCommand(runCmd)
}

// runOnce builds a fresh runner, secrets and notifiers are fetched every run so
// rotated values are picked up by the daemon.
func runOnce(ctx context.Context, a app, clock chrono.TimeAPI, dryRun bool) (runner.Result, error) {
	store, err := runner.NewSecretStore(a.cfg, a.tel)
	if err != nil {
		return runner.Result{}, fmt.Errorf("secret store: %w", err)
	}
	notifier, err := runner.NewNotifier(ctx, a.cfg, store, os.Stdout, dryRun, a.tel)
	if err != nil {
		return runner.Result{}, fmt.Errorf("notifier: %w", err)
	}
	r, err := runner.New(a.cfg, store, notifier, clock, a.tel)
	if err != nil {
		return runner.Result{}, err
	}
	return r.Run(ctx)
}

var runCmd = &cobra.Command{
	Use:   "run [--dry-run] [--date YYYY-MM-DD]",
	Short: "Performs a single reminder run.",
	Run: func(cmd *cobra.Command, args []string) {
		a := setup(cmd.Context())
		defer a.shutdown(context.Background())

		var clock chrono.TimeAPI = a.clock
		if runDate != "" {
			date, err := time.ParseInLocation(time.DateOnly, runDate, a.clock.Location())
			if err != nil {
				serviceutil.Fatal("invalid --date", err)
			}
			clock = chrono.FixedImpl{Time: date}
		}

		result, err := runOnce(cmd.Context(), a, clock, dryRun)
		if err != nil {
			a.shutdown(context.Background())
			serviceutil.Fatal("run failed", err)
		}
		if !result.Sent {
			slog.Info("nothing to report", "loans", len(result.Records))
			return
		}
		slog.Info("reminder sent", "loans", len(result.Records), "waste", result.Waste)
	},
}
