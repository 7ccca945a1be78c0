package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	httpapi "github.com/i474232898/surge-forecast/internal/api/http"
	"github.com/i474232898/surge-forecast/internal/config"
	"github.com/i474232898/surge-forecast/internal/forecast"
	"github.com/i474232898/surge-forecast/internal/metrics"
	"github.com/i474232898/surge-forecast/internal/scenario"
	"github.com/i474232898/surge-forecast/internal/scheduler"
	"github.com/i474232898/surge-forecast/internal/store"
	"github.com/i474232898/surge-forecast/internal/surge"
	"github.com/i474232898/surge-forecast/internal/surge/remote"
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		klog.ErrorS(err, "Failed to load config")
		os.Exit(1)
	}

	registry, err := loadScenarios(cfg.ScenarioFile)
	if err != nil {
		klog.ErrorS(err, "Failed to load scenarios", "file", cfg.ScenarioFile)
		os.Exit(1)
	}

	generator := newGenerator(cfg)

	// In-memory run store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(promRegistry)

	// Core service memoizing one run per session.
	service := forecast.NewService(registry, generator, memStore, recorder, forecast.Config{
		CacheMaxAge:     cfg.CacheMaxAge,
		PeakWindowDays:  cfg.PeakWindowDays,
		GenerateTimeout: cfg.GenerateTimeout,
	})

	// Scheduler that keeps warm sessions fresh.
	sched := scheduler.New(cfg.WarmSessions, cfg.RefreshInterval, service)
	if err := sched.Start(); err != nil {
		klog.ErrorS(err, "Failed to start scheduler")
		os.Exit(1)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "surge-forecast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":     "ok",
			"service":    "surge-forecast",
			"forecaster": generator.Name(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		klog.InfoS("Starting HTTP server", "port", cfg.Port, "forecaster", generator.Name())
		if err := app.Listen(":" + cfg.Port); err != nil {
			klog.ErrorS(err, "Fiber server stopped")
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		klog.ErrorS(err, "Error during shutdown")
	}
}

func loadScenarios(path string) (*scenario.Registry, error) {
	if path == "" {
		return scenario.LoadDefault()
	}
	return scenario.LoadFile(path)
}

func newGenerator(cfg *config.AppConfig) surge.Generator {
	if cfg.Forecaster == config.ForecasterRemote {
		// Shared HTTP client for outbound model calls.
		httpClient := &http.Client{
			Timeout: cfg.HTTPTimeout,
		}
		return remote.NewGenerator(httpClient, cfg.ForecasterURL)
	}

	seed := cfg.SimulationSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	klog.V(2).InfoS("Using simulated forecaster", "seed", seed)
	return surge.NewSeededSimulator(seed)
}
