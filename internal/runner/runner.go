// Package runner performs one reminder run: read the loans off the portal,
// classify them, look up the waste calendar and deliver the combined message.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"libreminder/internal/components/assert"
	"libreminder/internal/components/chrono"
	"libreminder/internal/components/telemetry"
	"libreminder/internal/config"
	"libreminder/internal/loans"
	"libreminder/internal/notify"
	"libreminder/internal/portal"
	"libreminder/internal/portal/extract"
	"libreminder/internal/reminder"
	"libreminder/internal/secrets"
	"libreminder/internal/wastecal"
)

const (
	report_runner_loans  = "runner.loans"
	report_runner_notify = "runner.notify"
	report_runner_count  = "runner.loan-count"
)

type Runner struct {
	cfg        config.Config
	secrets    secrets.Store
	notifier   notify.Notifier
	time       chrono.TimeAPI
	tel        telemetry.API
	extractor  *extract.Extractor
	classifier reminder.Classifier
	calendar   wastecal.Calendar
}

func New(
	cfg config.Config,
	store secrets.Store,
	notifier notify.Notifier,
	clock chrono.TimeAPI,
	tel telemetry.API,
) (*Runner, error) {
	assert.NotNil(store)
	assert.NotNil(notifier)
	assert.NotNil(clock)
	assert.NotNil(tel)

	calendar, err := wastecal.New(cfg.Waste.Rules)
	if err != nil {
		return nil, err
	}
	patterns, err := extract.CompilePatterns(cfg.Extract.TitlePattern, cfg.Extract.DuePattern)
	if err != nil {
		return nil, err
	}

	loc := clock.Location()
	extractTel := telemetry.NewScopedAPI("extract", tel)
	return &Runner{
		cfg:      cfg,
		secrets:  store,
		notifier: notifier,
		time:     clock,
		tel:      telemetry.NewScopedAPI("runner", tel),
		extractor: extract.NewWithStrategies(
			extractTel,
			extract.NewPatternStrategy(patterns, loc),
			extract.NewTableStrategy(loc, extractTel),
		),
		classifier: reminder.NewClassifier(cfg.Policy(), loc),
		calendar:   calendar,
	}, nil
}

// Credentials fetches and validates the patron's credentials, nothing is sent
// to the portal before this succeeds.
func (r *Runner) Credentials(ctx context.Context) (portal.Credentials, error) {
	identifier, err := r.secrets.Secret(ctx, r.cfg.Secrets.IdentifierName)
	if err != nil {
		return portal.Credentials{}, err
	}
	secret, err := r.secrets.Secret(ctx, r.cfg.Secrets.SecretName)
	if err != nil {
		return portal.Credentials{}, err
	}
	return portal.ValidateCredentials(identifier, secret, r.cfg.SecretBounds())
}

// Loans logs into the portal with a fresh session and extracts the current loans.
func (r *Runner) Loans(ctx context.Context) ([]loans.Record, error) {
	creds, err := r.Credentials(ctx)
	if err != nil {
		return nil, err
	}

	client, err := portal.NewClient(r.cfg.PortalOptions(), r.tel)
	if err != nil {
		return nil, err
	}
	auth, err := client.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	listing, err := client.FetchListing(ctx, auth)
	if err != nil {
		return nil, err
	}

	records := r.extractor.Extract(listing.Html)
	r.tel.ReportCount(report_runner_count, int64(len(records)))
	return records, nil
}

type Result struct {
	Records []loans.Record
	Buckets []reminder.Bucket
	Waste   []string
	// Message is empty when there was nothing to send.
	Message string
	Sent    bool
	// LoanErr is why the loan section was replaced by the unavailable message.
	LoanErr error
}

func (r *Runner) wasteSection(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return fmt.Sprintf("【%s】 %s", r.cfg.Waste.Label, strings.Join(labels, ", "))
}

// Run performs one full run. A loan pipeline failure does not stop the run, the
// loan section is replaced by a placeholder and the error is returned with the
// result after the message was delivered.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	now := r.time.Now()
	result := Result{}

	var sections []string

	records, err := r.Loans(ctx)
	if err != nil {
		r.tel.ReportBroken(report_runner_loans, err)
		result.LoanErr = err
		sections = append(sections, r.cfg.Reminder.UnavailableMessage)
	} else {
		result.Records = records
		result.Buckets = r.classifier.Classify(now, records)
		section, ok := reminder.Compose(result.Buckets)
		if ok {
			sections = append(sections, section)
		}
	}

	result.Waste = r.calendar.Lookup(now.AddDate(0, 0, r.cfg.Waste.DayOffset))
	if section := r.wasteSection(result.Waste); section != "" {
		sections = append(sections, section)
	}

	if len(sections) == 0 {
		r.tel.ReportDebug("nothing to report")
		return result, nil
	}
	result.Message = strings.Join(sections, "\n\n")

	err = r.notifier.Notify(ctx, result.Message)
	if err != nil {
		r.tel.ReportBroken(report_runner_notify, err)
		return result, errors.Join(result.LoanErr, err)
	}
	result.Sent = true
	return result, result.LoanErr
}
