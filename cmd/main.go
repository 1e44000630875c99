package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/okian/covergap/internal/adapters/http/api"
	"github.com/okian/covergap/internal/adapters/http/site"
	"github.com/okian/covergap/internal/adapters/http/swagger"
	"github.com/okian/covergap/internal/adapters/kafka"
	service "github.com/okian/covergap/internal/app"
	"github.com/okian/covergap/internal/config"
	"github.com/okian/covergap/internal/domain/coverage"
	"github.com/okian/covergap/internal/domain/model"
	"github.com/okian/covergap/internal/domain/scoring"
	"github.com/okian/covergap/internal/observability"
	"github.com/okian/covergap/pkg/logger"
	"github.com/okian/covergap/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Custom system metrics replace the default Go collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// The logger format comes from config, so it is not available yet.
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "covergap exited with error", logger.Error(err))
		os.Exit(1)
	}
}

// run starts every component and blocks until ctx is cancelled or one of them fails.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: "covergap",
		Exporter:    cfg.TracingExporter,
		Endpoint:    cfg.TracingEndpoint,
		SampleRatio: cfg.TracingSampleRatio,
	}, log.Named("tracing"))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	svc := newService(cfg, log)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	var consumer *kafka.Consumer
	if cfg.KafkaEnabled {
		consumer, err = newConsumer(cfg, svc, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := consumer.Close(); err != nil {
				log.Warn(ctx, "kafka reader close failed", logger.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "server shutdown failed", logger.Error(err))
		}
		return nil
	})

	if consumer != nil {
		g.Go(func() error {
			log.Info(gctx, "consuming incidents from kafka",
				logger.String("topic", cfg.KafkaTopic),
				logger.String("group_id", cfg.KafkaGroupID),
			)
			return consumer.Run(gctx)
		})
	}

	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})

	err = g.Wait()
	log.Info(ctx, "server stopped")
	return err
}

// newService maps configuration onto service options.
func newService(cfg *config.Config, log logger.Logger) *service.Service {
	return service.New(
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.IncidentQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithMaxIncidents(cfg.MaxIncidents),
		service.WithGridDivisions(cfg.GridDivisions),
		service.WithMaxGridPoints(cfg.MaxGridPoints),
		service.WithDefaultParams(coverage.Params{
			ResponseTimeMinutes: cfg.ResponseTimeTargetMin,
			TurnoutTimeMinutes:  cfg.TurnoutTimeMin,
			TravelSpeedMph:      cfg.TravelSpeedMph,
		}),
		service.WithDefaultTarget(scoring.Target(cfg.OptimizationTarget)),
		service.WithMaxSuggestions(cfg.MaxSuggestions),
	)
}

// newMux registers the API, the docs and the map page.
func newMux(ctx context.Context, svc *service.Service, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(svc, api.WithLogger(log.Named("http"))).Register(ctx, mux)
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)
	return mux
}

// newConsumer feeds Kafka incidents through the same ingest path as the API.
// Duplicates are acknowledged; a full queue is retried.
func newConsumer(cfg *config.Config, svc *service.Service, log logger.Logger) (*kafka.Consumer, error) {
	return kafka.NewConsumer(cfg.Brokers(), cfg.KafkaTopic, cfg.KafkaGroupID, incidentHandler(svc),
		kafka.WithRetryable(func(err error) bool { return errors.Is(err, service.ErrQueueFull) }),
		kafka.WithLogger(log.Named("kafka")),
	)
}

func incidentHandler(svc *service.Service) kafka.Handler {
	return func(ctx context.Context, inc model.Incident) error { //nolint:gocritic // hugeParam
		if _, err := svc.SubmitIncident(ctx, inc); err != nil && !errors.Is(err, service.ErrDuplicate) {
			return err
		}
		return nil
	}
}

// startSystemMetricsUpdater refreshes process metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMetrics(m.Alloc, runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordGCPause(avgPauseMs)
	}
}

// updateServiceMetrics pushes store and queue gauges. GetStats already
// refreshes them for a started service.
func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queue_length"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	incidents, iok := stats["incidents"].(int)
	stations, sok := stats["stations"].(int)
	if iok && sok {
		metrics.UpdateStoreSizes(incidents, stations)
	}
}
