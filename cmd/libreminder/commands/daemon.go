package commands

import (
	"context"
	"log/slog"
	"time"

	"libreminder/internal/components/chrono"
	"libreminder/internal/components/serviceutil"
	"libreminder/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var runImmediately bool

func init() {
	daemonCmd.Flags().BoolVar(&runImmediately, "now", false, "Also perform a run right away.")
	rootCmd.AddCommand(daemonCmd)
}

const runTimeout = time.Minute * 3

var daemonCmd = &cobra.Command{
	Use:   "daemon [--now]",
	Short: "Performs a reminder run on the configured cron schedule.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := setup(ctx)
		defer a.shutdown(context.Background())

		telemetry.InstrumentPerfStats(ctx, a.tel)

		job := func() {
			ctx, cancel := context.WithTimeout(ctx, runTimeout)
			defer cancel()

			result, err := runOnce(ctx, a, a.clock, false)
			if err != nil {
				slog.Error("run failed", "err", err)
				return
			}
			slog.Info("run finished", "sent", result.Sent, "loans", len(result.Records))
		}

		cron := chrono.NewStandardCron(a.clock.Location(), a.tel)
		defer cron.Stop()
		err := cron.Cron(a.cfg.Schedule, job)
		if err != nil {
			serviceutil.Fatal("invalid schedule", err)
		}
		slog.Info("scheduled", "cron", a.cfg.Schedule, "timezone", a.cfg.Timezone)

		if runImmediately {
			job()
		}
		<-ctx.Done()
	},
}
