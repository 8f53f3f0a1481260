// Package app wires the application container: configuration, logging,
// metrics, the license subsystem, services, and the HTTP shell.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tktcli/internal/config"
	"tktcli/internal/exporter"
	"tktcli/internal/infrastructure"
	"tktcli/internal/license"
	custommw "tktcli/internal/middleware"
	"tktcli/internal/services"
	handlers "tktcli/internal/transport/http"
	ws "tktcli/internal/websocket"
)

// Application is the dependency container for the licensed shell.
type Application struct {
	Config  *config.Config
	Logger  *slog.Logger
	Router  *chi.Mux
	Server  *http.Server
	Manager *license.Manager
	Hub     *ws.Hub

	licenseService services.LicenseService
	toolsService   services.ToolsService
	metrics        *infrastructure.MetricsProvider
}

// New builds the application from configuration and the per-user
// directory layout.
func New() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", config.AppName),
		slog.String("version", cfg.License.AppVersion),
	)

	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	metrics, err := infrastructure.InitializeMetrics(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	verifier, err := loadVerifier(cfg.License)
	if err != nil {
		return nil, fmt.Errorf("failed to load license public key: %w", err)
	}

	manager := license.NewManager(cfg.License, verifier, license.NewStore(paths.LicenseFile, logger), logger)

	hub := ws.NewHub(logger)

	licenseService := services.NewLicenseService(manager, logger, hub.BroadcastLicenseState)
	toolsService := services.NewToolsService(
		exporter.NewExcelWriter(paths, logger),
		hub.BroadcastProgress,
		logger,
	)

	app := &Application{
		Config:         cfg,
		Logger:         logger,
		Manager:        manager,
		Hub:            hub,
		licenseService: licenseService,
		toolsService:   toolsService,
		metrics:        metrics,
	}
	app.setupRouter()
	app.createServer()
	return app, nil
}

// loadVerifier prefers a configured key file over the embedded vendor
// key.
func loadVerifier(cfg config.LicenseConfig) (*license.Verifier, error) {
	if cfg.PublicKeyFile != "" {
		return license.NewVerifierFromFile(cfg.PublicKeyFile)
	}
	return license.DefaultVerifier()
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(custommw.TraceID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommw.NewLicenseGate(a.Manager, a.Logger).Handler)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/health", a.handleHealth)
		r.Mount("/license", handlers.NewLicenseHandler(a.licenseService, a.Logger).Routes())
		r.Mount("/tools", handlers.NewToolsHandler(a.toolsService, a.Logger).Routes())
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWS(a.Hub, w, req)
	})

	a.Router = r
}

func (a *Application) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status":  "ok",
		"app":     config.AppName,
		"version": a.Config.License.AppVersion,
		"license": a.Manager.State().String(),
	})
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf("localhost:%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Run starts the hub and server, re-validates any cached license, and
// blocks until a shutdown signal arrives.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Hub.Start()

	// Boot-time re-validation. Failure leaves the shell up with the
	// tool routes gated; the frontend drives re-activation.
	startupCtx, cancel := context.WithTimeout(infrastructure.ContextWithTraceID(ctx), a.Config.License.CheckTimeout+5*time.Second)
	if err := a.licenseService.StartupCheck(startupCtx); err != nil {
		a.Logger.Warn("startup license check failed", slog.String("error", err.Error()))
	}
	cancel()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	return a.Stop()
}

// Stop gracefully shuts the server, hub, and telemetry down.
func (a *Application) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.Server.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("server shutdown: %w", err)
	}

	a.Hub.Shutdown()

	if err := a.metrics.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("metrics shutdown: %w", err)
	}
	if err := infrastructure.CloseLogFile(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("log close: %w", err)
	}
	return firstErr
}
