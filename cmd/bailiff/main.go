package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hearthmod/bailiff/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "bailiff",
		Usage:   "community moderation daemon (keeps the peace)",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "discord-token",
			Usage:   "bot token for the Discord gateway and REST API",
			EnvVars: []string{"BAILIFF_DISCORD_TOKEN", "TOKEN"},
		},
		&cli.StringFlag{
			Name:    "guild-id",
			Usage:   "ID of the single Discord guild (community) to moderate",
			EnvVars: []string{"BAILIFF_GUILD_ID"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"BAILIFF_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "tracked-role",
			Usage:   "role ID which persists across leave and rejoin (repeatable)",
			EnvVars: []string{"BAILIFF_TRACKED_ROLES"},
		},
		&cli.StringFlag{
			Name:    "log-channel",
			Usage:   "channel ID for moderation audit entries; empty disables the audit channel",
			EnvVars: []string{"BAILIFF_LOG_CHANNEL"},
		},
		&cli.StringFlag{
			Name:    "greeting-channel",
			Usage:   "channel ID for welcome messages; empty disables greetings",
			EnvVars: []string{"BAILIFF_GREETING_CHANNEL"},
		},
		&cli.StringFlag{
			Name:    "command-prefix",
			Value:   ";",
			EnvVars: []string{"BAILIFF_COMMAND_PREFIX"},
		},
		&cli.DurationFlag{
			Name:    "greeting-ttl",
			Usage:   "how long welcome messages stay up",
			Value:   10 * time.Second,
			EnvVars: []string{"BAILIFF_GREETING_TTL"},
		},
		&cli.DurationFlag{
			Name:    "purge-notice-ttl",
			Usage:   "how long purge confirmations stay up",
			Value:   3 * time.Second,
			EnvVars: []string{"BAILIFF_PURGE_NOTICE_TTL"},
		},
		&cli.BoolFlag{
			Name:    "log-channel-actions",
			Usage:   "write audit entries for lock/unlock/hide/unhide",
			Value:   true,
			EnvVars: []string{"BAILIFF_LOG_CHANNEL_ACTIONS"},
		},
		&cli.StringFlag{
			Name:    "store",
			Usage:   "tracked role storage backend: sql, redis, or memory",
			Value:   "sql",
			EnvVars: []string{"BAILIFF_STORE"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/bailiff/bailiff.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-metadb-connections",
			EnvVars: []string{"MAX_METADB_CONNECTIONS"},
			Value:   40,
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "emit OpenTelemetry spans for database queries",
			EnvVars: []string{"BAILIFF_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL (redis store only)",
			EnvVars: []string{"BAILIFF_REDIS_URL"},
		},
		&cli.DurationFlag{
			Name:    "lookup-cache-ttl",
			Usage:   "in-process cache lifetime for tracked role lookups; zero disables the cache",
			Value:   5 * time.Minute,
			EnvVars: []string{"BAILIFF_LOOKUP_CACHE_TTL"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "also send audit entries to this slack incoming webhook",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.Float64Flag{
			Name:    "discord-rate-limit",
			Usage:   "max single message deletions per second when purging old messages",
			Value:   2,
			EnvVars: []string{"BAILIFF_DISCORD_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3989",
			EnvVars: []string{"BAILIFF_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3988",
			EnvVars: []string{"BAILIFF_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Usage:   "bearer token for the admin HTTP API; admin routes are disabled when unset",
			EnvVars: []string{"BAILIFF_ADMIN_TOKEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger, err := cliutil.SetupSlog(cliutil.LogOptions{
			LogLevel: cctx.String("log-level"),
		})
		if err != nil {
			return err
		}

		if cctx.String("discord-token") == "" {
			return fmt.Errorf("a discord bot token is required (--discord-token or BAILIFF_DISCORD_TOKEN)")
		}

		shutdownTracing := configOTEL("bailiff")
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				slog.Error("failed to shutdown trace exporter", "error", err)
			}
		}()

		srv, err := NewServer(Config{
			Logger:            logger,
			DiscordToken:      cctx.String("discord-token"),
			GuildID:           cctx.String("guild-id"),
			CommandPrefix:     cctx.String("command-prefix"),
			TrackedRoles:      cctx.StringSlice("tracked-role"),
			LogChannelID:      cctx.String("log-channel"),
			GreetingChannelID: cctx.String("greeting-channel"),
			GreetingTTL:       cctx.Duration("greeting-ttl"),
			PurgeNoticeTTL:    cctx.Duration("purge-notice-ttl"),
			LogChannelActions: cctx.Bool("log-channel-actions"),
			StoreKind:         cctx.String("store"),
			DatabaseURL:       cctx.String("database-url"),
			MaxDBConnections:  cctx.Int("max-metadb-connections"),
			DBTracing:         cctx.Bool("db-tracing"),
			RedisURL:          cctx.String("redis-url"),
			LookupCacheTTL:    cctx.Duration("lookup-cache-ttl"),
			SlackWebhookURL:   cctx.String("slack-webhook-url"),
			DiscordRateLimit:  cctx.Float64("discord-rate-limit"),
			Bind:              cctx.String("bind"),
			AdminToken:        cctx.String("admin-token"),
		})
		if err != nil {
			return fmt.Errorf("failed to construct server: %w", err)
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		logger.Info("graceful shutdown complete")
		return nil
	},
}
