package commands

import (
	"context"
	"log/slog"

	"libreminder/internal/components/chrono"
	"libreminder/internal/components/serviceutil"
	"libreminder/internal/components/telemetry"
	"libreminder/internal/config"

	"go.opentelemetry.io/otel"
)

type app struct {
	cfg   config.Config
	clock chrono.TimeAPI
	tel   telemetry.API
	// shutdown flushes telemetry, it is always safe to call.
	shutdown func(ctx context.Context) error
}

func setup(ctx context.Context) app {
	telemetry.InitSlog(debug)

	cfg, err := config.Load(configPath)
	if err != nil {
		serviceutil.Fatal("failed to load config", err)
	}
	if cfg.Debug && !debug {
		telemetry.InitSlog(true)
	}

	clock, err := chrono.NewStandardImpl(cfg.Timezone)
	if err != nil {
		serviceutil.Fatal("failed to load timezone", err)
	}

	out := app{
		cfg:      cfg,
		clock:    clock,
		tel:      telemetry.SlogAPI{},
		shutdown: func(context.Context) error { return nil },
	}

	if cfg.Otlp.HttpEndpoint != "" {
		shutdown, err := telemetry.SetupMetrics(ctx, "libreminder", cfg.Otlp)
		if err != nil {
			slog.Warn("failed to setup metrics, continuing without them", "err", err)
			return out
		}
		otelTel, err := telemetry.NewOtelAPI(out.tel, otel.Meter("libreminder"))
		if err != nil {
			slog.Warn("failed to create instruments, continuing without them", "err", err)
			return out
		}
		out.tel = otelTel
		out.shutdown = shutdown
	}

	return out
}

// offlineApp is used by commands that never talk to the portal, they work
// without a config file.
func offlineApp() app {
	telemetry.InitSlog(debug)

	cfg := config.Default()
	clock, err := chrono.NewStandardImpl(cfg.Timezone)
	if err != nil {
		serviceutil.Fatal("failed to load timezone", err)
	}
	return app{
		cfg:      cfg,
		clock:    clock,
		tel:      telemetry.SlogAPI{},
		shutdown: func(context.Context) error { return nil },
	}
}
