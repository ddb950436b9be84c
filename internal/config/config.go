// Package config loads libreminder.json5, merged with libreminder.local.json5 and
// LIBREMINDER_* environment variables on top of the defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"libreminder/internal/components/telemetry"
	"libreminder/internal/portal"
	"libreminder/internal/reminder"
	"libreminder/internal/wastecal"
	"libreminder/pkg/configutil"

	"github.com/robfig/cron/v3"
)

const EnvPrefix = "LIBREMINDER_"

// TimeoutsConfig holds per step request timeouts in seconds.
type TimeoutsConfig struct {
	Entry   float64 `json:"entry" env:"ENTRY"`
	Form    float64 `json:"form" env:"FORM"`
	Submit  float64 `json:"submit" env:"SUBMIT"`
	Landing float64 `json:"landing" env:"LANDING"`
	Listing float64 `json:"listing" env:"LISTING"`
}

type PortalConfig struct {
	BaseUrl     string `json:"base_url" env:"BASE_URL"`
	EntryPath   string `json:"entry_path" env:"ENTRY_PATH"`
	LoginPath   string `json:"login_path" env:"LOGIN_PATH"`
	LandingPath string `json:"landing_path" env:"LANDING_PATH"`
	ListingPath string `json:"listing_path" env:"LISTING_PATH"`

	IdentifierField string `json:"identifier_field"`
	SecretField     string `json:"secret_field"`

	AuthenticatedSelectors []string `json:"authenticated_selectors"`
	AuthenticatedTexts     []string `json:"authenticated_texts"`
	ListingLinkKeywords    []string `json:"listing_link_keywords"`
	ListingLinkSimilarity  float64  `json:"listing_link_similarity"`
	TimeoutMarkers         []string `json:"timeout_markers"`
	TimeoutTitleMarkers    []string `json:"timeout_title_markers"`
	ErrorTitleMarkers      []string `json:"error_title_markers"`

	RequireLoginCookie bool `json:"require_login_cookie" env:"REQUIRE_LOGIN_COOKIE"`

	MaxAttempts       int            `json:"max_attempts" env:"MAX_ATTEMPTS"`
	RetryDelaySeconds float64        `json:"retry_delay_seconds" env:"RETRY_DELAY_SECONDS"`
	Timeouts          TimeoutsConfig `json:"timeouts" envPrefix:"TIMEOUT_"`

	RequestsPerSecond float64 `json:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	MaxRedirects      int     `json:"max_redirects"`
	UserAgent         string  `json:"user_agent" env:"USER_AGENT"`
	BrowserTransport  bool    `json:"browser_transport" env:"BROWSER_TRANSPORT"`

	SecretMinLength int `json:"secret_min_length"`
	SecretMaxLength int `json:"secret_max_length"`

	DumpDir string `json:"dump_dir" env:"DUMP_DIR"`
}

type ExtractConfig struct {
	// TitlePattern and DuePattern replace the default pattern extraction
	// regexes, each must have a capture group.
	TitlePattern string `json:"title_pattern"`
	DuePattern   string `json:"due_pattern"`
}

type ReminderConfig struct {
	DueSoonIncludesToday bool   `json:"due_soon_includes_today" env:"DUE_SOON_INCLUDES_TODAY"`
	DueInThreeDaysLabel  string `json:"due_in_three_days_label"`
	DueSoonLabel         string `json:"due_soon_label"`
	// UnavailableMessage replaces the loan section when the portal could not be read.
	UnavailableMessage string `json:"unavailable_message"`
}

type SecretsConfig struct {
	// Backend is one of "env", "file" or "http".
	Backend     string   `json:"backend" env:"BACKEND"`
	DotenvFiles []string `json:"dotenv_files"`
	File        string   `json:"file" env:"FILE"`
	HttpUrl     string   `json:"http_url" env:"HTTP_URL"`
	HttpToken   string   `json:"-" env:"HTTP_TOKEN"`

	IdentifierName   string `json:"identifier_name"`
	SecretName       string `json:"secret_name"`
	WebhookUrlName   string `json:"webhook_url_name"`
	SmtpPasswordName string `json:"smtp_password_name"`
}

type WebhookConfig struct {
	Enabled    bool   `json:"enabled" env:"ENABLED"`
	PayloadKey string `json:"payload_key" env:"PAYLOAD_KEY"`
}

type EmailConfig struct {
	Enabled      bool     `json:"enabled" env:"ENABLED"`
	Server       string   `json:"server" env:"SERVER"`
	Port         int      `json:"port" env:"PORT"`
	EmailAddress string   `json:"email_address" env:"ADDRESS"`
	To           []string `json:"to"`
	Subject      string   `json:"subject"`
}

type NotifyConfig struct {
	Webhook WebhookConfig `json:"webhook" envPrefix:"WEBHOOK_"`
	Email   EmailConfig   `json:"email" envPrefix:"EMAIL_"`
	Stdout  bool          `json:"stdout" env:"STDOUT"`
}

type WasteConfig struct {
	Label string `json:"label"`
	// DayOffset is which day relative to the run is looked up, 1 announces
	// tomorrow's collection.
	DayOffset int             `json:"day_offset"`
	Rules     []wastecal.Rule `json:"rules"`
}

type Config struct {
	Timezone string `json:"timezone" env:"TIMEZONE"`
	// Schedule is a standard 5 field cron expression for the daemon.
	Schedule string `json:"schedule" env:"SCHEDULE"`
	Debug    bool   `json:"debug" env:"DEBUG"`

	Portal   PortalConfig         `json:"portal" envPrefix:"PORTAL_"`
	Extract  ExtractConfig        `json:"extract"`
	Reminder ReminderConfig       `json:"reminder" envPrefix:"REMINDER_"`
	Secrets  SecretsConfig        `json:"secrets" envPrefix:"SECRETS_"`
	Notify   NotifyConfig         `json:"notify" envPrefix:"NOTIFY_"`
	Waste    WasteConfig          `json:"waste"`
	Otlp     telemetry.OtlpConfig `json:"otlp" envPrefix:"OTLP_"`
}

func seconds(d time.Duration) float64 {
	return d.Seconds()
}

func duration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func Default() Config {
	opts := portal.DefaultOptions("")
	bounds := portal.DefaultSecretBounds()
	policy := reminder.DefaultPolicy()

	return Config{
		Timezone: "Asia/Tokyo",
		Schedule: "0 7 * * *",
		Portal: PortalConfig{
			EntryPath:              opts.EntryPath,
			LoginPath:              opts.LoginPath,
			LandingPath:            opts.LandingPath,
			ListingPath:            opts.ListingPath,
			IdentifierField:        opts.IdentifierField,
			SecretField:            opts.SecretField,
			AuthenticatedSelectors: opts.AuthenticatedSelectors,
			AuthenticatedTexts:     opts.AuthenticatedTexts,
			ListingLinkKeywords:    opts.ListingLinkKeywords,
			ListingLinkSimilarity:  opts.ListingLinkSimilarity,
			TimeoutMarkers:         opts.TimeoutMarkers,
			TimeoutTitleMarkers:    opts.TimeoutTitleMarkers,
			ErrorTitleMarkers:      opts.ErrorTitleMarkers,
			MaxAttempts:            opts.MaxAttempts,
			RetryDelaySeconds:      seconds(opts.RetryDelay),
			Timeouts: TimeoutsConfig{
				Entry:   seconds(opts.Timeouts.Entry),
				Form:    seconds(opts.Timeouts.Form),
				Submit:  seconds(opts.Timeouts.Submit),
				Landing: seconds(opts.Timeouts.Landing),
				Listing: seconds(opts.Timeouts.Listing),
			},
			RequestsPerSecond: opts.RequestsPerSecond,
			MaxRedirects:      opts.MaxRedirects,
			UserAgent:         opts.UserAgent,
			BrowserTransport:  opts.BrowserTransport,
			SecretMinLength:   bounds.Min,
			SecretMaxLength:   bounds.Max,
		},
		Reminder: ReminderConfig{
			DueSoonIncludesToday: policy.DueSoonIncludesToday,
			DueInThreeDaysLabel:  policy.DueInThreeDaysLabel,
			UnavailableMessage:   "loan info unavailable",
		},
		Secrets: SecretsConfig{
			Backend:          "env",
			DotenvFiles:      []string{".env"},
			IdentifierName:   "patron-id",
			SecretName:       "patron-secret",
			WebhookUrlName:   "webhook-url",
			SmtpPasswordName: "smtp-password",
		},
		Notify: NotifyConfig{
			Webhook: WebhookConfig{PayloadKey: "text"},
			Email:   EmailConfig{Port: 587},
		},
		Waste: WasteConfig{
			Label:     "waste collection",
			DayOffset: 1,
		},
	}
}

// Load reads the config file at path on top of Default() and applies environment
// overrides. A missing file is not an error, the defaults and the environment
// may be all that is needed.
func Load(path string) (Config, error) {
	cfg := Default()

	err := configutil.ReadConfigInto(path, &cfg)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("config file not found, using defaults", "path", path)
	} else if err != nil {
		return Config{}, err
	}

	err = configutil.ApplyEnv(&cfg, EnvPrefix)
	if err != nil {
		return Config{}, fmt.Errorf("apply env: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Portal.BaseUrl == "" {
		return fmt.Errorf("portal.base_url is required")
	}
	baseUrl, err := url.Parse(c.Portal.BaseUrl)
	if err != nil || baseUrl.Scheme == "" || baseUrl.Host == "" {
		return fmt.Errorf("portal.base_url must be an absolute url: %q", c.Portal.BaseUrl)
	}
	if c.Portal.MaxAttempts < 1 {
		return fmt.Errorf("portal.max_attempts must be at least 1")
	}
	if c.Portal.SecretMinLength < 1 || c.Portal.SecretMinLength > c.Portal.SecretMaxLength {
		return fmt.Errorf("invalid secret length bounds [%d, %d]", c.Portal.SecretMinLength, c.Portal.SecretMaxLength)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	switch c.Secrets.Backend {
	case "env":
	case "file":
		if c.Secrets.File == "" {
			return fmt.Errorf("secrets.file is required for the file backend")
		}
	case "http":
		if c.Secrets.HttpUrl == "" {
			return fmt.Errorf("secrets.http_url is required for the http backend")
		}
	default:
		return fmt.Errorf("unknown secrets backend %q", c.Secrets.Backend)
	}
	if c.Notify.Email.Enabled && (c.Notify.Email.Server == "" || len(c.Notify.Email.To) == 0) {
		return fmt.Errorf("notify.email needs a server and at least one recipient")
	}
	if _, err := wastecal.New(c.Waste.Rules); err != nil {
		return fmt.Errorf("waste: %w", err)
	}
	return nil
}

// PortalOptions converts the portal section into client options.
func (c Config) PortalOptions() portal.Options {
	p := c.Portal
	return portal.Options{
		BaseUrl:                p.BaseUrl,
		EntryPath:              p.EntryPath,
		LoginPath:              p.LoginPath,
		LandingPath:            p.LandingPath,
		ListingPath:            p.ListingPath,
		IdentifierField:        p.IdentifierField,
		SecretField:            p.SecretField,
		AuthenticatedSelectors: p.AuthenticatedSelectors,
		AuthenticatedTexts:     p.AuthenticatedTexts,
		ListingLinkKeywords:    p.ListingLinkKeywords,
		ListingLinkSimilarity:  p.ListingLinkSimilarity,
		TimeoutMarkers:         p.TimeoutMarkers,
		TimeoutTitleMarkers:    p.TimeoutTitleMarkers,
		ErrorTitleMarkers:      p.ErrorTitleMarkers,
		RequireLoginCookie:     p.RequireLoginCookie,
		MaxAttempts:            p.MaxAttempts,
		RetryDelay:             duration(p.RetryDelaySeconds),
		Timeouts: portal.StepTimeouts{
			Entry:   duration(p.Timeouts.Entry),
			Form:    duration(p.Timeouts.Form),
			Submit:  duration(p.Timeouts.Submit),
			Landing: duration(p.Timeouts.Landing),
			Listing: duration(p.Timeouts.Listing),
		},
		RequestsPerSecond: p.RequestsPerSecond,
		MaxRedirects:      p.MaxRedirects,
		UserAgent:         p.UserAgent,
		BrowserTransport:  p.BrowserTransport,
		DumpDir:           p.DumpDir,
	}
}

func (c Config) SecretBounds() portal.SecretBounds {
	return portal.SecretBounds{Min: c.Portal.SecretMinLength, Max: c.Portal.SecretMaxLength}
}

func (c Config) Policy() reminder.Policy {
	return reminder.Policy{
		DueSoonIncludesToday: c.Reminder.DueSoonIncludesToday,
		DueInThreeDaysLabel:  c.Reminder.DueInThreeDaysLabel,
		DueSoonLabel:         c.Reminder.DueSoonLabel,
	}
}
