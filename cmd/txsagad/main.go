// Command txsagad wires the storage, event bus, HTTP surface, and
// archiver into a runnable service, grounded on the teacher's
// cmd/argyll/main.go wiring (struct holding every long-lived dependency,
// signal-driven graceful shutdown).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kode4food/txsaga/internal/archiver"
	"github.com/kode4food/txsaga/internal/config"
	"github.com/kode4food/txsaga/internal/eventbus"
	"github.com/kode4food/txsaga/internal/httpapi"
	"github.com/kode4food/txsaga/internal/orchestrator"
	"github.com/kode4food/txsaga/internal/ordersaga"
	"github.com/kode4food/txsaga/internal/registry"
	"github.com/kode4food/txsaga/internal/storage"
	"github.com/kode4food/txsaga/pkg/slogx"
)

const (
	serviceName    = "txsaga"
	serviceVersion = "0.1.0"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

type service struct {
	cfg      *config.Config
	redis    *redis.Client
	store    *storage.RedisStorage
	bus      *eventbus.Bus
	registry *registry.Registry
	runner   *orchestrator.Runner
	arch     *archiver.Archiver
	api      *httpapi.Server
	srv      *http.Server
	log      *slog.Logger
	quit     chan os.Signal
}

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("invalid configuration", slogx.Error(err))
		os.Exit(1)
	}

	s := &service{cfg: cfg, quit: make(chan os.Signal, 1)}
	s.setupLogging()

	if err := s.run(); err != nil {
		s.log.Error("failed to start service", slogx.Error(err))
		os.Exit(1)
	}
}

func (s *service) setupLogging() {
	level, ok := logLevels[s.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}
	s.log = slogx.NewWithLevel(serviceName, os.Getenv("ENV"), serviceVersion, level)
	slog.SetDefault(s.log)

	s.log.Info("txsaga starting",
		slog.String("log_level", s.cfg.LogLevel),
		slog.String("redis_addr", s.cfg.RedisAddr),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *service) run() error {
	if err := s.initializeStorage(); err != nil {
		return err
	}
	if err := s.initializeArchiver(); err != nil {
		return err
	}
	s.bus = eventbus.New()
	s.runner = orchestrator.NewRunner(s.store, s.log)
	go s.runner.Run(context.Background())

	if err := s.registerModels(); err != nil {
		return err
	}

	s.startHTTPServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *service) initializeStorage() error {
	s.redis = redis.NewClient(&redis.Options{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPassword,
		DB:       s.cfg.RedisDB,
	})
	if err := s.redis.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	s.store = storage.NewRedisStorage(s.redis, s.cfg.RedisPrefix)
	return nil
}

func (s *service) initializeArchiver() error {
	a, err := archiver.New(context.Background(), s.cfg.ArchiveBucketURL,
		s.redis, s.cfg.RedisPrefix, s.cfg.ArchiveSweepInterval, s.log)
	if err != nil {
		return fmt.Errorf("create archiver: %w", err)
	}
	s.arch = a
	go s.arch.Run(context.Background())
	return nil
}

// registerModels binds every model this daemon hosts into both the
// write-once Registry (spec §5 "Shared resources") and the Runner that
// routes fired timers to each model's Orchestrator. Right now that's the
// one demo model this binary ships with; a deployment embedding this
// module as a library registers its own models here instead.
func (s *service) registerModels() error {
	s.registry = registry.New()

	inv := ordersaga.NewInventory()
	def, handler := ordersaga.Build(inv, ordersaga.Now)
	if err := s.registry.Register(ordersaga.ModelID, def, handler); err != nil {
		return fmt.Errorf("register %s: %w", ordersaga.ModelID, err)
	}

	o, err := orchestrator.New(ordersaga.ModelID, def, handler, s.store, s.bus,
		orchestrator.ModelOptions{
			StoreExecution:       true,
			DefaultMaxRetries:    s.cfg.DefaultMaxRetries,
			DefaultRetryInterval: time.Duration(s.cfg.DefaultRetryInterval) * time.Second,
		}, s.log)
	if err != nil {
		return fmt.Errorf("build orchestrator for %s: %w", ordersaga.ModelID, err)
	}
	s.runner.Register(ordersaga.ModelID, o)
	return nil
}

func (s *service) startHTTPServer() {
	s.api = httpapi.NewServer(s.runner, s.bus, s.log)
	router := s.api.SetupRoutes()

	s.srv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: router,
	}

	go func() {
		s.log.Info("HTTP server starting", slog.String("addr", s.srv.Addr))
		err := s.srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error", slogx.Error(err))
		}
	}()
}

func (s *service) shutdown() {
	s.log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Error("HTTP shutdown failed", slogx.Error(err))
	}
	s.api.CloseWebSockets()

	if err := s.arch.Close(); err != nil {
		s.log.Error("archiver shutdown failed", slogx.Error(err))
	}
	s.bus.Close()

	if err := s.store.Close(); err != nil {
		s.log.Error("storage shutdown failed", slogx.Error(err))
	}

	s.log.Info("txsaga stopped")
}
