package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/guildwarden/warden/engine"
	"github.com/guildwarden/warden/internal/logging"
	"github.com/guildwarden/warden/pkg/metrics"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "guild moderation and audit log daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"WARDEN_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format: json or text",
			Value:   "json",
			EnvVars: []string{"WARDEN_LOG_FMT"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "connect to the gateway and run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "discord-token",
			Usage:    "bot token for the Discord gateway and REST API",
			Required: true,
			EnvVars:  []string{"DISCORD_TOKEN", "WARDEN_DISCORD_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "sqlite:// or postgresql:// URL for settings and audit bindings",
			Value:   "sqlite://data/warden/warden.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   20,
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "emit trace spans for database queries",
			EnvVars: []string{"WARDEN_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis server for counters and the settings cache; in-process stores are used if not set",
			EnvVars: []string{"REDIS_URL", "WARDEN_REDIS_URL"},
		},
		&cli.IntFlag{
			Name:    "message-cache-size",
			Usage:   "number of recent messages remembered per guild",
			Value:   engine.DefaultConfig().MessageCacheSize,
			EnvVars: []string{"WARDEN_MESSAGE_CACHE_SIZE"},
		},
		&cli.DurationFlag{
			Name:    "notify-ttl",
			Usage:   "how long filter notices stay in the channel",
			Value:   engine.DefaultConfig().NotifyTTL,
			EnvVars: []string{"WARDEN_NOTIFY_TTL"},
		},
		&cli.DurationFlag{
			Name:    "greeting-window",
			Usage:   "debounce window for greeting and farewell messages",
			Value:   engine.DefaultConfig().GreetingWindow,
			EnvVars: []string{"WARDEN_GREETING_WINDOW"},
		},
		&cli.DurationFlag{
			Name:    "voice-debounce",
			Usage:   "debounce window for voice channel audit records",
			Value:   engine.DefaultConfig().VoiceDebounce,
			EnvVars: []string{"WARDEN_VOICE_DEBOUNCE"},
		},
		&cli.StringSliceFlag{
			Name:    "command-prefix",
			Usage:   "message prefixes treated as bot commands, which are exempt from word filters",
			Value:   cli.NewStringSlice(engine.DefaultConfig().CommandPrefixes...),
			EnvVars: []string{"WARDEN_COMMAND_PREFIXES"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":2510",
			EnvVars: []string{"WARDEN_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":2511",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Usage:   "bearer token for the admin HTTP API; the admin API is disabled if not set",
			EnvVars: []string{"WARDEN_ADMIN_TOKEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		logger, err := logging.Setup(logging.Options{
			Level:  cctx.String("log-level"),
			Format: cctx.String("log-format"),
		})
		if err != nil {
			return err
		}

		shutdownTracing, err := setupTracing(ctx, logger)
		if err != nil {
			return err
		}
		defer shutdownTracing()

		engineConfig := engine.DefaultConfig()
		engineConfig.MessageCacheSize = cctx.Int("message-cache-size")
		engineConfig.NotifyTTL = cctx.Duration("notify-ttl")
		engineConfig.GreetingWindow = cctx.Duration("greeting-window")
		engineConfig.VoiceDebounce = cctx.Duration("voice-debounce")
		engineConfig.CommandPrefixes = cctx.StringSlice("command-prefix")

		srv, err := NewServer(Config{
			Logger:           logger,
			DiscordToken:     cctx.String("discord-token"),
			DatabaseURL:      cctx.String("database-url"),
			MaxDBConnections: cctx.Int("max-db-connections"),
			DBTracing:        cctx.Bool("db-tracing"),
			RedisURL:         cctx.String("redis-url"),
			Bind:             cctx.String("bind"),
			AdminToken:       cctx.String("admin-token"),
			Engine:           engineConfig,
		})
		if err != nil {
			return err
		}

		go func() {
			if err := metrics.RunServer(ctx, cctx.String("metrics-listen"), logger); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run warden service: %w", err)
		}
		return nil
	},
}
