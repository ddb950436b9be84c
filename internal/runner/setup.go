package runner

import (
	"context"
	"fmt"
	"io"

	"libreminder/internal/components/telemetry"
	"libreminder/internal/config"
	"libreminder/internal/notify"
	"libreminder/internal/secrets"
)

// NewSecretStore builds the configured secret backend. The env backend is
// always consulted first so a single value can be overridden locally.
func NewSecretStore(cfg config.Config, tel telemetry.API) (secrets.Store, error) {
	envStore, err := secrets.NewEnvStore(config.EnvPrefix, cfg.Secrets.DotenvFiles...)
	if err != nil {
		return nil, fmt.Errorf("load dotenv: %w", err)
	}

	switch cfg.Secrets.Backend {
	case "env":
		return envStore, nil
	case "file":
		fileStore, err := secrets.NewFileStore(cfg.Secrets.File)
		if err != nil {
			return nil, err
		}
		return secrets.Chain{envStore, fileStore}, nil
	case "http":
		return secrets.Chain{
			envStore,
			secrets.NewHTTPStore(cfg.Secrets.HttpUrl, cfg.Secrets.HttpToken, tel),
		}, nil
	}
	return nil, fmt.Errorf("unknown secrets backend %q", cfg.Secrets.Backend)
}

// NewNotifier builds every enabled delivery channel. Delivery addresses and
// passwords are fetched from the secret store. With nothing enabled, or when
// dryRun is set, the message is written to stdout.
func NewNotifier(ctx context.Context, cfg config.Config, store secrets.Store, stdout io.Writer, dryRun bool, tel telemetry.API) (notify.Notifier, error) {
	if dryRun {
		return notify.NewWriterNotifier(stdout), nil
	}

	var notifiers notify.Multi
	if cfg.Notify.Webhook.Enabled {
		webhookUrl, err := store.Secret(ctx, cfg.Secrets.WebhookUrlName)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, notify.NewWebhookNotifier(webhookUrl, cfg.Notify.Webhook.PayloadKey, tel))
	}
	if cfg.Notify.Email.Enabled {
		password, err := store.Secret(ctx, cfg.Secrets.SmtpPasswordName)
		if err != nil {
			return nil, err
		}
		email := cfg.Notify.Email
		notifiers = append(notifiers, notify.NewEmailNotifier(notify.SmtpConfig{
			Server:       email.Server,
			Port:         email.Port,
			EmailAddress: email.EmailAddress,
			Password:     password,
		}, email.To, email.Subject))
	}
	if cfg.Notify.Stdout || len(notifiers) == 0 {
		notifiers = append(notifiers, notify.NewWriterNotifier(stdout))
	}
	return notifiers, nil
}
