package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"

	"github.com/ElDoritoMasPutas/legendsbot-sub000/cachestore"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/classify"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/consensus"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/countstore"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/engine"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/escalation"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/perftrack"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/setstore"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/sources"
)

type Server struct {
	logger     *slog.Logger
	engine     *engine.Engine
	echo       *echo.Echo
	metricsSrv *http.Server
}

type Config struct {
	Logger          *slog.Logger
	MetricsListen   string
	RedisURL        string
	SetsFileJSON    string
	CacheTTL        time.Duration
	PerspectiveHost string
	PerspectiveKey  string
	ModAPIHost      string
	ModAPIToken     string
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	sets := setstore.NewMemSetStore()
	for name, vals := range classify.DefaultSets() {
		sets.AddSet(name, vals)
	}
	if config.SetsFileJSON != "" {
		if err := sets.LoadFromFileJSON(config.SetsFileJSON); err != nil {
			return nil, fmt.Errorf("initializing in-process setstore: %v", err)
		}
		logger.Info("loaded set config from JSON", "path", config.SetsFileJSON)
	}

	var counters countstore.CountStore
	var cache cachestore.CacheStore
	if config.RedisURL != "" {
		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		counters = cnt

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, config.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %v", err)
		}
		cache = csh
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, config.CacheTTL)
	}

	registry := sources.NewRegistry(
		sources.NewRuleBasedSource(),
		sources.NewSentimentSource(),
	)
	if config.PerspectiveKey != "" {
		logger.Info("configuring Perspective scoring source")
		registry.Add(sources.NewPerspectiveSource(config.PerspectiveHost, config.PerspectiveKey))
	}
	if config.ModAPIHost != "" && config.ModAPIToken != "" {
		logger.Info("configuring external moderation API source")
		registry.Add(sources.NewModerationAPISource(config.ModAPIHost, config.ModAPIToken))
	}

	perf := perftrack.NewTracker()
	scorer, err := consensus.NewScorer(consensus.DefaultWeightProfiles(), perf)
	if err != nil {
		return nil, fmt.Errorf("initializing consensus scorer: %v", err)
	}

	eng := &engine.Engine{
		Logger:     logger,
		Registry:   registry,
		Classifier: classify.NewClassifier(sets),
		Scorer:     scorer,
		Perf:       perf,
		Ladder:     escalation.DefaultLadder(),
		Counters:   counters,
		Cache:      cache,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s := &Server{
		logger: logger,
		engine: eng,
		echo:   e,
		// built here, not in RunMetrics, so Shutdown never races the
		// listener goroutine on the field
		metricsSrv: &http.Server{Addr: config.MetricsListen, Handler: mux},
	}

	e.POST("/assess", s.handleAssess)
	e.POST("/escalate", s.handleEscalate)
	e.GET("/sources", s.handleListSources)
	e.POST("/sources/:name/enable", s.handleEnableSource)
	e.POST("/sources/:name/disable", s.handleDisableSource)
	e.GET("/healthz", s.handleHealthCheck)

	return s, nil
}

func (s *Server) RunAPI(listen string) error {
	s.logger.Info("starting admin API", "bind", listen)
	if err := s.echo.Start(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) RunMetrics() error {
	s.logger.Info("starting metrics listener", "bind", s.metricsSrv.Addr)
	if err := s.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.echo.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.metricsSrv.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
