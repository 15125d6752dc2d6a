package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/donaldgifford/flight-price-tracker/api/openapi"
	"github.com/donaldgifford/flight-price-tracker/internal/api/handlers"
	"github.com/donaldgifford/flight-price-tracker/internal/api/middleware"
	"github.com/donaldgifford/flight-price-tracker/internal/telemetry"
	"github.com/donaldgifford/flight-price-tracker/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.NewWithOptions(os.Stderr, logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Service: "flight-price-tracker",
	})

	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Setup(ctx, &cfg.Telemetry, Version, log)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Warn("shutting down telemetry", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	e.Use(middleware.Recovery(log))
	e.Use(middleware.RequestLog(log))
	e.Use(middleware.Metrics())

	handlers.RegisterHealthRoutes(e, handlers.NewHealthHandler(a.store, a.monitor.Draining))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	handlers.RegisterDashboardRoutes(e, handlers.NewDashboardHandler(a.scheduler, a.store))

	const apiTitle = "Flight Price Tracker API"
	api := humaecho.New(e, huma.DefaultConfig(apiTitle, Version))
	openapi.RegisterRoutes(e, apiTitle)
	handlers.RegisterFilterRoutes(api, handlers.NewFiltersHandler(a.store, cfg.Currency.Base))
	handlers.RegisterAlertRoutes(api, handlers.NewAlertsHandler(a.store, a.machine))
	handlers.RegisterStatusRoutes(api, handlers.NewStatusHandler(a.scheduler))
	handlers.RegisterTriggerRoutes(api, handlers.NewTriggerHandler(a.scheduler))
	handlers.RegisterJobRoutes(api, handlers.NewJobsHandler(a.store))

	a.scheduler.RecoverStaleJobRuns(ctx)
	a.scheduler.Start()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting server", "addr", addr, "version", Version)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Stop scheduling first, then let in-flight checks finish before the
	// listener goes away.
	stopped := a.scheduler.Stop()
	a.drain(shutdownCtx)
	select {
	case <-stopped.Done():
	case <-shutdownCtx.Done():
		log.Warn("scheduled jobs still running at shutdown")
	}

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	log.Info("server stopped")
	return nil
}
