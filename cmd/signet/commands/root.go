package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/signet/internal/app"
	"github.com/florianilch/signet/internal/observability"
	"github.com/florianilch/signet/internal/tokensource"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return rootCommand().Run(ctx, args)
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:  "signet",
		Usage: "OAuth sign-in and token cache for Microsoft Graph",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "auth--method",
				Usage: "credential backend (oauth|mock)",
				Value: string(app.DefaultConfigAuthMethod),
			},
			&cli.StringFlag{
				Name:  "auth--client-id",
				Usage: "OAuth application (client) ID",
			},
			&cli.StringFlag{
				Name:  "auth--tenant",
				Usage: "Microsoft identity platform tenant",
				Value: tokensource.DefaultTenant,
			},
			&cli.StringSliceFlag{
				Name:  "auth--scopes",
				Usage: "scopes to request",
			},
			&cli.StringFlag{
				Name:  "cache--storage",
				Usage: "token cache storage (file|keyring|env)",
				Value: string(app.DefaultConfigCacheStorage),
			},
		},
		Commands: []*cli.Command{
			proxyCommand(),
			loginCommand(),
			logoutCommand(),
			statusCommand(),
			tokenCommand(),
			importCommand(),
		},
	}
}

func proxyCommand() *cli.Command {
	return &cli.Command{
		Name:    "proxy",
		Aliases: []string{"start"},
		Usage:   "run the authenticating reverse proxy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
				Value: int(app.DefaultConfigServerPort),
			},
			&cli.StringFlag{
				Name:  "upstream--base-url",
				Usage: "upstream API base URL",
				Value: app.DefaultConfigUpstreamBaseURL,
			},
			&cli.StringFlag{
				Name:  "upstream--client-info",
				Usage: "SDK identification sent upstream",
			},
			&cli.StringFlag{
				Name:  "telemetry--exporter",
				Usage: "OpenTelemetry log exporter (none|stdout|otlphttp|otlpgrpc)",
				Value: string(app.DefaultConfigTelemetryExporter),
			},
		},
		Action: proxyAction,
	}
}

func proxyAction(ctx context.Context, cmd *cli.Command) error {
	cfg, shutdown, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer shutdown()

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}

// setup loads the configuration and installs the logging pipeline. The
// returned function flushes pending log records.
func setup(ctx context.Context, cmd *cli.Command) (*app.Config, func(), error) {
	cfg, err := loadConfig(cmd.String(configFlag), cmd, os.Environ)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating anything that logs
	shutdown, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat), cfg.Telemetry.Exporter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	return cfg, func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			fmt.Fprintln(os.Stderr, "flushing telemetry:", err)
		}
	}, nil
}
