// Package api exposes flag evaluation over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Tapico/go-posthog-openfeature/internal/auth"
	"github.com/Tapico/go-posthog-openfeature/internal/telemetry"
	"github.com/Tapico/go-posthog-openfeature/pkg/provider"
)

// Evaluator resolves flags. *provider.Provider implements it.
type Evaluator interface {
	ResolveBoolean(ctx context.Context, flagKey string, defaultValue bool, ec provider.EvaluationContext) (provider.ResolutionDetails[bool], error)
	ResolveString(ctx context.Context, flagKey string, defaultValue string, ec provider.EvaluationContext) (provider.ResolutionDetails[string], error)
	ResolveNumber(ctx context.Context, flagKey string, defaultValue float64, ec provider.EvaluationContext) (provider.ResolutionDetails[float64], error)
	ResolveObject(ctx context.Context, flagKey string, defaultValue any, ec provider.EvaluationContext) (provider.ResolutionDetails[any], error)
}

var _ Evaluator = (*provider.Provider)(nil)

// Options configures a Server.
type Options struct {
	APIKeyHash     string               // bcrypt hash of the accepted bearer token, empty disables auth
	RateLimitPerIP int                  // requests per minute per client IP, zero disables limiting
	RequestTimeout time.Duration        // per-request deadline, defaults to 5s
	Logger         zerolog.Logger       // access and handler logging
	TracerProvider trace.TracerProvider // request spans, defaults to no-op
}

type Server struct {
	eval   Evaluator
	auth   *auth.Authenticator
	opts   Options
	logger zerolog.Logger
}

func NewServer(eval Evaluator, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = noop.NewTracerProvider()
	}
	return &Server{
		eval:   eval,
		auth:   auth.NewAuthenticator(opts.APIKeyHash, opts.Logger, authErrorWriter),
		opts:   opts,
		logger: opts.Logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Middleware, telemetry.TraceMiddleware(s.opts.TracerProvider))
	r.Use(hlog.NewHandler(s.logger), requestIDLogger)
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		NotFoundError(w, req, "no route for "+req.Method+" "+req.URL.Path)
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		if s.opts.RateLimitPerIP > 0 {
			r.Use(httprate.Limit(
				s.opts.RateLimitPerIP,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(RateLimitedError),
			))
		}
		r.Use(s.auth.RequireAuth)
		r.Post("/v1/flags/{key}/evaluate", s.handleEvaluate)
	})

	return r
}

// requestIDLogger tags the request logger with chi's request id.
func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			l := zerolog.Ctx(r.Context()).With().Str("request_id", id).Logger()
			r = r.WithContext(l.WithContext(r.Context()))
		}
		next.ServeHTTP(w, r)
	})
}
