package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/open-feature/go-sdk/openfeature"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/Tapico/go-posthog-openfeature/internal/api"
	"github.com/Tapico/go-posthog-openfeature/internal/auth"
	"github.com/Tapico/go-posthog-openfeature/internal/config"
	"github.com/Tapico/go-posthog-openfeature/internal/logging"
	"github.com/Tapico/go-posthog-openfeature/internal/telemetry"
	"github.com/Tapico/go-posthog-openfeature/internal/version"
	"github.com/Tapico/go-posthog-openfeature/pkg/hooks"
	"github.com/Tapico/go-posthog-openfeature/pkg/provider"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.ServerAPIKeyHash != "" {
		if err := auth.ValidateHash(cfg.ServerAPIKeyHash); err != nil {
			return fmt.Errorf("SERVER_API_KEY_HASH: %w", err)
		}
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	zerolog.DefaultContextLogger = &logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry.Init()
	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	shutdownMetrics, err := telemetry.SetupMetrics(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	otelHook, err := hooks.NewOTelHook()
	if err != nil {
		return fmt.Errorf("otel hook: %w", err)
	}
	metricsHook, err := hooks.NewMetricsHook(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	evalHooks := []openfeature.Hook{hooks.NewLoggingHook(logger), otelHook, metricsHook}
	if len(cfg.ContextAttributes) > 0 {
		attrs := make(map[string]any, len(cfg.ContextAttributes))
		for k, v := range cfg.ContextAttributes {
			attrs[k] = v
		}
		evalHooks = append([]openfeature.Hook{hooks.NewContextHook(attrs)}, evalHooks...)
	}

	p, err := provider.New(cfg.ProviderConfiguration(),
		provider.WithLogger(logger),
		provider.WithHooks(evalHooks...),
	)
	if err != nil {
		return err
	}
	if err := openfeature.SetProviderAndWait(p); err != nil {
		return fmt.Errorf("register provider: %w", err)
	}

	srvAPI := api.NewServer(api.NewClientEvaluator(openfeature.NewClient("posthog-openfeature-server")), api.Options{
		APIKeyHash:     cfg.ServerAPIKeyHash,
		RateLimitPerIP: cfg.RateLimitPerIP,
		Logger:         logger,
		TracerProvider: otel.GetTracerProvider(),
	})
	if cfg.ServerAPIKeyHash == "" {
		logger.Warn().Msg("SERVER_API_KEY_HASH not set, evaluation endpoint is unauthenticated")
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux(),
		ReadHeaderTimeout: 3 * time.Second,
	}

	errCh := make(chan error, 2)
	for _, s := range []*http.Server{srv, metricsSrv} {
		go func() {
			logger.Info().Str("addr", s.Addr).Str("version", version.Version).Msg("listening")
			if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	// graceful shutdown
	runErr := awaitStop(ctx, logger, errCh)

	ctxShut, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctxShut); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	_ = metricsSrv.Shutdown(ctxShut)
	if err := shutdownTracing(ctxShut); err != nil {
		logger.Warn().Err(err).Msg("tracing shutdown")
	}
	if err := shutdownMetrics(ctxShut); err != nil {
		logger.Warn().Err(err).Msg("otel metrics shutdown")
	}
	// Flushes pending PostHog events through Provider.Shutdown.
	openfeature.Shutdown()
	logger.Info().Msg("stopped")
	return runErr
}

// awaitStop blocks until a signal arrives or a listener fails. A listener
// failure is returned so the process exits non-zero after shutdown.
func awaitStop(ctx context.Context, logger zerolog.Logger, errCh <-chan error) error {
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		return nil
	case err := <-errCh:
		logger.Error().Err(err).Msg("server failed")
		return fmt.Errorf("serve: %w", err)
	}
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	return mux
}
