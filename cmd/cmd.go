package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anicoll/eco-monitor/internal/pkg/config"
	"github.com/anicoll/eco-monitor/internal/pkg/database"
	"github.com/anicoll/eco-monitor/internal/pkg/database/migration"
	"github.com/anicoll/eco-monitor/internal/pkg/generator"
	"github.com/anicoll/eco-monitor/internal/pkg/metrics"
	"github.com/anicoll/eco-monitor/internal/pkg/model"
	"github.com/anicoll/eco-monitor/internal/pkg/mqtt"
	"github.com/anicoll/eco-monitor/internal/pkg/publisher"
	"github.com/anicoll/eco-monitor/internal/pkg/refresher"
	"github.com/anicoll/eco-monitor/internal/pkg/server"
)

const shutdownTimeout = 10 * time.Second

func ServeCommand(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.IsSet("listen-addr") {
		cfg.ListenAddr = c.String("listen-addr")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("refresh-interval") {
		cfg.GeneratorCfg.RefreshInterval = c.Duration("refresh-interval")
	}
	if c.IsSet("database-url") {
		cfg.DatabaseCfg.URL = c.String("database-url")
	}
	if c.IsSet("mqtt-host") {
		cfg.MqttCfg.Host = c.String("mqtt-host")
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}
	return run(ctx, cfg, ln)
}

func newLogger(level string) (*zap.Logger, error) {
	var err error
	logCfg := zap.NewProductionConfig()
	logCfg.Level, err = zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	return logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

// run wires the generator, sinks and HTTP server together and blocks until
// ctx is cancelled or one of them fails.
func run(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	logger := zap.L()
	node := model.Node{
		ID:    cfg.NodeCfg.ID,
		Name:  cfg.NodeCfg.Name,
		Model: cfg.NodeCfg.Model,
	}

	genOpts := []func(*generator.Generator){
		generator.WithHistory(cfg.GeneratorCfg.HistoryLength, cfg.GeneratorCfg.HistorySpacing),
	}
	if cfg.GeneratorCfg.Seed != 0 {
		genOpts = append(genOpts, generator.WithSeed(cfg.GeneratorCfg.Seed))
	}
	gen := generator.New(genOpts...)

	pub := publisher.New()
	hub := server.NewHub()
	if err := pub.Register("websocket", hub); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	pub.SetObserver(m)
	if err := pub.Register("metrics", m); err != nil {
		return err
	}

	srvOpts := []server.Option{
		server.WithHub(hub),
		server.WithMetrics(m.Handler()),
		server.WithTitle(node.Name + " Monitoring System"),
		server.WithRefreshInterval(cfg.GeneratorCfg.RefreshInterval),
	}

	if cfg.MqttCfg.Enabled() {
		mqttSvc := mqtt.New(mqtt.NewClient(cfg.MqttCfg), node)
		if err := mqttSvc.Connect(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer mqttSvc.Close()
		if err := pub.Register("mqtt", mqttSvc); err != nil {
			return err
		}
	}

	var db *database.Database
	if cfg.DatabaseCfg.Enabled() {
		if err := migration.Migrate(cfg.DatabaseCfg.URL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		pool, err := database.Connect(ctx, cfg.DatabaseCfg.URL)
		if err != nil {
			return err
		}
		db = database.NewDatabase(pool, node)
		defer db.Close()
		if err := pub.Register("postgres", db); err != nil {
			return err
		}
		srvOpts = append(srvOpts, server.WithRecorder(db))
	}

	if cfg.AuthCfg.Enabled() {
		auth, err := server.NewAuthenticator(cfg.AuthCfg.PasswordHash, []byte(cfg.AuthCfg.JWTSecret), cfg.AuthCfg.TokenTTL)
		if err != nil {
			return err
		}
		srvOpts = append(srvOpts, server.WithAuth(auth))
	}

	if err := pub.RegisterNode(ctx, node); err != nil {
		logger.Warn("failed to register node with every sink", zap.Error(err))
	}

	ref, err := refresher.New(gen, pub, cfg.GeneratorCfg.RefreshInterval)
	if err != nil {
		return err
	}

	api, err := server.New(ctx, ref, srvOpts...)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:      api.Handler(),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return ref.Run(ctx)
	})

	if db != nil {
		eg.Go(func() error {
			return cronDbCleanup(ctx, db, cfg.DatabaseCfg.CleanupSchedule, cfg.DatabaseCfg.Retention)
		})
	}

	eg.Go(func() error {
		logger.Info("serving dashboard", zap.String("addr", ln.Addr().String()), zap.Strings("sinks", pub.Names()))
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// cronDbCleanup purges recorded snapshots older than retention once at start
// and then on schedule until ctx is done.
func cronDbCleanup(ctx context.Context, db cleaner, schedule string, retention time.Duration) error {
	if err := db.Cleanup(ctx, retention); err != nil {
		return err
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := db.Cleanup(ctx, retention); err != nil {
			zap.L().Error("error cleaning up database", zap.Error(err))
			return
		}
		zap.L().Info("purged old snapshots", zap.Duration("retention", retention))
	}); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
