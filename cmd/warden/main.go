package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wardenchat/warden/automod/config"
	"github.com/wardenchat/warden/util/cliutil"

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
		Usage:   "multi-tenant chat moderation daemon",
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
			Usage:   "log output format (text or json)",
			EnvVars: []string{"WARDEN_LOG_FMT", "LOG_FMT"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		checkConfigCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the moderation service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "gateway-host",
			Usage:   "websocket URL of the chat gateway to consume messages from",
			Value:   "ws://localhost:8400/gateway",
			EnvVars: []string{"WARDEN_GATEWAY_HOST"},
		},
		&cli.StringFlag{
			Name:    "bridge-host",
			Usage:   "base URL of the bot bridge REST API; if empty, runs in dry-run mode (actions are logged, not performed)",
			EnvVars: []string{"WARDEN_BRIDGE_HOST"},
		},
		&cli.StringFlag{
			Name:    "bridge-token",
			Usage:   "bearer token for the bot bridge",
			EnvVars: []string{"WARDEN_BRIDGE_TOKEN"},
		},
		&cli.IntFlag{
			Name:    "bridge-rate-limit",
			Usage:   "max requests per second to the bot bridge",
			Value:   50,
			EnvVars: []string{"WARDEN_BRIDGE_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for tenant configs, counters, caches, and gateway cursor",
			EnvVars: []string{"WARDEN_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database for the audit log (sqlite or postgres); if empty, audit records are only logged",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   20,
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook for punishment notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "sets-json-path",
			Usage:   "file path of JSON file containing static sets (eg, globally exempt users)",
			EnvVars: []string{"WARDEN_SETS_JSON_PATH"},
		},
		&cli.StringFlag{
			Name:    "admin-bind",
			Usage:   "IP or address, and port, to listen on for the admin API",
			Value:   ":3999",
			EnvVars: []string{"WARDEN_ADMIN_BIND"},
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Usage:   "bearer token required for admin API requests; admin routes are disabled if empty",
			EnvVars: []string{"WARDEN_ADMIN_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3998",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
		&cli.IntFlag{
			Name:    "max-concurrent",
			Usage:   "max messages processed concurrently (one at a time per author)",
			Value:   64,
			EnvVars: []string{"WARDEN_MAX_CONCURRENT"},
		},
		&cli.IntFlag{
			Name:    "max-queue",
			Usage:   "max gateway messages read ahead of processing",
			Value:   1024,
			EnvVars: []string{"WARDEN_MAX_QUEUE"},
		},
		&cli.DurationFlag{
			Name:    "sweep-interval",
			Usage:   "how often old message history and stale violation counts are removed",
			Value:   time.Hour,
			EnvVars: []string{"WARDEN_SWEEP_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "enforce-timeout",
			Usage:   "deadline for each platform enforcement call",
			Value:   5 * time.Second,
			EnvVars: []string{"WARDEN_ENFORCE_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:    "audit-timeout",
			Usage:   "deadline for delivering each audit record",
			Value:   5 * time.Second,
			EnvVars: []string{"WARDEN_AUDIT_TIMEOUT"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger, err := cliutil.SetupSlog(cliutil.LogOptions{
			LogLevel:  cctx.String("log-level"),
			LogFormat: cctx.String("log-format"),
		})
		if err != nil {
			return err
		}

		shutdownTracing := configOTEL("warden")
		defer shutdownTracing()

		srv, err := NewServer(Config{
			Logger:           logger,
			GatewayHost:      cctx.String("gateway-host"),
			BridgeHost:       cctx.String("bridge-host"),
			BridgeToken:      cctx.String("bridge-token"),
			BridgeRateLimit:  cctx.Int("bridge-rate-limit"),
			RedisURL:         cctx.String("redis-url"),
			DatabaseURL:      cctx.String("database-url"),
			MaxDBConnections: cctx.Int("max-db-connections"),
			SlackWebhookURL:  cctx.String("slack-webhook-url"),
			SetsFileJSON:     cctx.String("sets-json-path"),
			AdminBind:        cctx.String("admin-bind"),
			AdminToken:       cctx.String("admin-token"),
			MaxConcurrent:    cctx.Int("max-concurrent"),
			MaxQueue:         cctx.Int("max-queue"),
			SweepInterval:    cctx.Duration("sweep-interval"),
			EnforceTimeout:   cctx.Duration("enforce-timeout"),
			AuditTimeout:     cctx.Duration("audit-timeout"),
		})
		if err != nil {
			return fmt.Errorf("failed to construct server: %w", err)
		}

		go func() {
			if err := RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "err", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return srv.Run(ctx)
	},
}

var checkConfigCmd = &cli.Command{
	Name:      "check-config",
	Usage:     "validate a tenant config JSON file, printing the effective config and any rejected fields",
	ArgsUsage: "<file>",
	Action: func(cctx *cli.Context) error {
		path := cctx.Args().First()
		if path == "" {
			return fmt.Errorf("need to provide config file path as an argument")
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tc, warnings, err := config.FromJSON(raw)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "WARNING: %s\n", w)
		}
		out, err := json.MarshalIndent(tc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}
