package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "sentinel",
		Usage:   "multi-source chat moderation decision daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity: debug, info, warn, error",
			Value:   "info",
			EnvVars: []string{"SENTINEL_LOG_LEVEL", "LOG_LEVEL"},
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
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the admin HTTP API",
			Value:   ":2210",
			EnvVars: []string{"SENTINEL_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":2211",
			EnvVars: []string{"SENTINEL_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection for counters and decision cache, eg redis://localhost:6379/0",
			EnvVars: []string{"SENTINEL_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "sets-json-path",
			Usage:   "file path of JSON file containing vocabulary sets (overrides built-ins)",
			EnvVars: []string{"SENTINEL_SETS_JSON_PATH"},
		},
		&cli.DurationFlag{
			Name:    "cache-ttl",
			Usage:   "how long identical messages reuse a cached decision",
			Value:   30 * time.Minute,
			EnvVars: []string{"SENTINEL_CACHE_TTL"},
		},
		&cli.StringFlag{
			Name:    "perspective-host",
			Usage:   "method, hostname, and port of the Perspective scoring API",
			Value:   "https://commentanalyzer.googleapis.com",
			EnvVars: []string{"SENTINEL_PERSPECTIVE_HOST"},
		},
		&cli.StringFlag{
			Name:    "perspective-api-key",
			Usage:   "API key for the Perspective scoring API; source disabled when empty",
			EnvVars: []string{"SENTINEL_PERSPECTIVE_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "modapi-host",
			Usage:   "method, hostname, and port of the external moderation API",
			EnvVars: []string{"SENTINEL_MODAPI_HOST"},
		},
		&cli.StringFlag{
			Name:    "modapi-token",
			Usage:   "bearer token for the external moderation API; source disabled when empty",
			EnvVars: []string{"SENTINEL_MODAPI_TOKEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := configLogger(cctx, os.Stdout)

		srv, err := NewServer(Config{
			Logger:          logger,
			MetricsListen:   cctx.String("metrics-listen"),
			RedisURL:        cctx.String("redis-url"),
			SetsFileJSON:    cctx.String("sets-json-path"),
			CacheTTL:        cctx.Duration("cache-ttl"),
			PerspectiveHost: cctx.String("perspective-host"),
			PerspectiveKey:  cctx.String("perspective-api-key"),
			ModAPIHost:      cctx.String("modapi-host"),
			ModAPIToken:     cctx.String("modapi-token"),
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			return srv.RunAPI(cctx.String("bind"))
		})
		eg.Go(func() error {
			return srv.RunMetrics()
		})
		eg.Go(func() error {
			<-ctx.Done()
			logger.Info("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})

		if err := eg.Wait(); err != nil {
			return fmt.Errorf("service failed: %w", err)
		}
		return nil
	},
}

func configLogger(cctx *cli.Context, writer *os.File) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}
