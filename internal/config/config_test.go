package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"libreminder/internal/portal"
	"libreminder/internal/wastecal"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "libreminder.json5")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		portal: {
			base_url: "https://library.example.jp",
			listing_path: "/opac/lend",
			timeouts: { submit: 40 },
		},
		reminder: { due_soon_label: "明日まで" },
		waste: {
			rules: [{ label: "燃えるごみ", weekdays: ["月", "木"] }],
		},
	}`)
	require.NoError(t, os.WriteFile(
		filepath.Join(filepath.Dir(path), "libreminder.local.json5"),
		[]byte(`{ portal: { max_attempts: 3 } }`),
		0600,
	))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://library.example.jp", cfg.Portal.BaseUrl)
	require.Equal(t, "/opac/lend", cfg.Portal.ListingPath)
	require.Equal(t, 3, cfg.Portal.MaxAttempts)
	// untouched defaults survive
	require.True(t, cfg.Reminder.DueSoonIncludesToday)
	require.True(t, cfg.Portal.BrowserTransport)
	require.Equal(t, "/login", cfg.Portal.LoginPath)
	require.Equal(t, "Asia/Tokyo", cfg.Timezone)

	opts := cfg.PortalOptions()
	require.Equal(t, time.Second*40, opts.Timeouts.Submit)
	require.Equal(t, time.Second*15, opts.Timeouts.Entry)
	require.Equal(t, time.Second*3, opts.RetryDelay)
	require.Equal(t, portal.DefaultSecretBounds(), cfg.SecretBounds())
	require.Equal(t, "明日まで", cfg.Policy().DueSoonLabel)
	require.Len(t, cfg.Waste.Rules, 1)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `{ portal: { base_url: "https://library.example.jp" } }`)

	t.Setenv("LIBREMINDER_PORTAL_BASE_URL", "https://other.example.jp")
	t.Setenv("LIBREMINDER_PORTAL_TIMEOUT_LISTING", "60")
	t.Setenv("LIBREMINDER_REMINDER_DUE_SOON_INCLUDES_TODAY", "false")
	t.Setenv("LIBREMINDER_SECRETS_HTTP_TOKEN", "tok")
	t.Setenv("LIBREMINDER_NOTIFY_WEBHOOK_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://other.example.jp", cfg.Portal.BaseUrl)
	require.Equal(t, time.Minute, cfg.PortalOptions().Timeouts.Listing)
	require.False(t, cfg.Policy().DueSoonIncludesToday)
	require.Equal(t, "tok", cfg.Secrets.HttpToken)
	require.True(t, cfg.Notify.Webhook.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("LIBREMINDER_PORTAL_BASE_URL", "https://library.example.jp")

	cfg, err := Load(filepath.Join(t.TempDir(), "libreminder.json5"))
	require.NoError(t, err)
	require.Equal(t, Default().Portal.ListingPath, cfg.Portal.ListingPath)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Portal.BaseUrl = "https://library.example.jp"
	require.NoError(t, valid.Validate())

	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "missing base url", mutate: func(c *Config) { c.Portal.BaseUrl = "" }},
		{name: "relative base url", mutate: func(c *Config) { c.Portal.BaseUrl = "/opac" }},
		{name: "no attempts", mutate: func(c *Config) { c.Portal.MaxAttempts = 0 }},
		{name: "inverted bounds", mutate: func(c *Config) { c.Portal.SecretMinLength = 30 }},
		{name: "bad timezone", mutate: func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{name: "bad schedule", mutate: func(c *Config) { c.Schedule = "every day" }},
		{name: "file backend without file", mutate: func(c *Config) { c.Secrets.Backend = "file" }},
		{name: "unknown backend", mutate: func(c *Config) { c.Secrets.Backend = "vault" }},
		{name: "email without recipients", mutate: func(c *Config) {
			c.Notify.Email.Enabled = true
			c.Notify.Email.Server = "smtp.example.jp"
		}},
		{name: "bad waste rule", mutate: func(c *Config) {
			c.Waste.Rules = append(c.Waste.Rules, wasteRule("x", "someday"))
		}},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			cfg := valid
			cfg.Waste.Rules = nil
			test.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func wasteRule(label string, weekdays ...string) wastecal.Rule {
	return wastecal.Rule{Label: label, Weekdays: weekdays}
}
