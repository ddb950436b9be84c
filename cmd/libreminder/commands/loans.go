package commands

import (
	"context"
	"os"
	"time"

	"libreminder/internal/components/chrono"
	"libreminder/internal/components/serviceutil"
	"libreminder/internal/loans"
	"libreminder/internal/notify"
	"libreminder/internal/portal/extract"
	"libreminder/internal/reminder"
	"libreminder/internal/runner"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var dumpDir string

func init() {
	loansCmd.Flags().StringVar(&dumpDir, "dump", "", "Write every fetched page to this directory.")
	rootCmd.AddCommand(loansCmd)
	rootCmd.AddCommand(extractCmd)
}

func renderLoans(a app, records []loans.Record) {
	today := a.clock.Now()
	classifier := reminder.NewClassifier(a.cfg.Policy(), a.clock.Location())

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Title", "Due", "Days left", "Bucket"})
	for _, r := range records {
		days := chrono.DaysBetween(chrono.Midnight(today, a.clock.Location()), r.Due)
		kind, _ := classifier.Kind(days)
		t.AppendRow(table.Row{r.Title, r.Due.Format(time.DateOnly), days, kind})
	}
	t.AppendFooter(table.Row{"", "", "Total", len(records)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

var loansCmd = &cobra.Command{
	Use:   "loans",
	Short: "Logs into the portal and prints the current loans.",
	Run: func(cmd *cobra.Command, args []string) {
		a := setup(cmd.Context())
		defer a.shutdown(context.Background())
		if dumpDir != "" {
			a.cfg.Portal.DumpDir = dumpDir
		}

		store, err := runner.NewSecretStore(a.cfg, a.tel)
		if err != nil {
			serviceutil.Fatal("failed to create secret store", err)
		}
		r, err := runner.New(a.cfg, store, notify.NewWriterNotifier(os.Stdout), a.clock, a.tel)
		if err != nil {
			serviceutil.Fatal("failed to create runner", err)
		}
		records, err := r.Loans(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to read loans", err)
		}
		renderLoans(a, records)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <listing.html>",
	Short: "Runs loan extraction on a saved listing page.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := offlineApp()

		contents, err := os.ReadFile(args[0])
		if err != nil {
			serviceutil.Fatal("failed to read listing", err)
		}
		records := extract.New(a.clock.Location(), a.tel).Extract(string(contents))
		renderLoans(a, records)
	},
}
