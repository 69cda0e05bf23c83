// Command communityd serves the community platform REST API: ledger,
// savings, governance and the dashboard aggregator. All state is held in
// process memory.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	app "github.com/CommonsHub/community_layer/internal/app"
	"github.com/CommonsHub/community_layer/internal/app/httpapi"
	"github.com/CommonsHub/community_layer/internal/app/services/dashboard"
	"github.com/CommonsHub/community_layer/internal/app/services/identity"
	"github.com/CommonsHub/community_layer/internal/config"
	"github.com/CommonsHub/community_layer/pkg/logger"
)

func main() {
	// Missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("communityd").WithError(err).Error("load configuration")
		os.Exit(1)
	}

	log := logger.New("communityd", logger.ParseLevel(cfg.LogLevel))

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("communityd exited with error")
		os.Exit(1)
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	opts := app.Options{
		RefreshSchedule: cfg.RefreshSchedule,
	}
	if cfg.SimulateIntegrations {
		opts.Verifier = identity.NewSimulatedVerifier(cfg.SimulationSeed, 0, log)
	}

	application, err := app.New(app.Stores{}, opts, log)
	if err != nil {
		return err
	}

	registerProviders(application, cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return err
	}

	apiHandler, err := httpapi.NewHandlerWithAuditFile(application, cfg.AuditLogFile)
	if err != nil {
		return err
	}
	chained := httpapi.WrapWithMetrics(apiHandler)
	chained = httpapi.WrapWithRateLimit(chained, cfg.RateLimitRPS, cfg.RateLimitBurst, log)
	chained = httpapi.WrapWithAuth(chained, httpapi.AuthConfig{
		Tokens:    cfg.AuthTokens,
		JWTSecret: cfg.JWTSecret,
	}, log)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           chained,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		stopApplication(application, log)
		return err
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	stopApplication(application, log)
	return nil
}

func stopApplication(application *app.Application, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Stop(ctx); err != nil {
		log.WithError(err).Warn("application stop")
	}
}

// registerProviders wires the dashboard's external collaborators: either the
// built-in simulations, or HTTP providers declared in the integrations file,
// plus host statistics either way.
func registerProviders(application *app.Application, cfg config.Config, log *logger.Logger) {
	application.Dashboard.WithProviderTimeout(cfg.ProviderTimeout)

	if cfg.SimulateIntegrations {
		for _, p := range dashboard.DemoProviders(cfg.SimulationSeed) {
			application.Dashboard.RegisterProvider(p)
		}
		return
	}

	integrations, err := config.LoadIntegrationsOrDefault(cfg.IntegrationsFile)
	if err != nil {
		log.WithError(err).Warn("load integrations config")
		return
	}
	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}
	for _, pc := range integrations.Providers {
		provider, err := dashboard.NewHTTPProvider(pc.Name, httpClient, pc.URL, pc.APIKey, pc.Fields, log)
		if err != nil {
			log.WithError(err).WithField("provider", pc.Name).Warn("configure http provider")
			continue
		}
		application.Dashboard.RegisterProvider(provider)
	}
	application.Dashboard.RegisterProvider(dashboard.HostProvider{})
}
