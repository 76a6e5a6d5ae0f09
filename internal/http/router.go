package http

import (
	"log/slog"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emonty/burrow/internal/http/handlers"
	ourMiddleware "github.com/emonty/burrow/internal/http/middleware"
	"github.com/emonty/burrow/internal/observability"
)

// RouterDeps bundles everything NewRouter needs to wire the /v1.0 URL
// hierarchy plus the ambient health/metrics/debug surface.
type RouterDeps struct {
	Logger         *slog.Logger
	Metrics        *observability.Metrics
	SentryHandler  *sentryhttp.Handler
	AccountHandler *handlers.AccountHandler
	QueueHandler   *handlers.QueueHandler
	MessageHandler *handlers.MessageHandler
	HealthHandler  *handlers.HealthHandler
	RateLimiter    *ourMiddleware.RateLimiter
}

// NewRouter builds the chi router for Burrow's wire protocol: GET/DELETE/POST
// dispatch at every level of the account/queue/message hierarchy, PUT only
// at the single-message level (there is no bulk create anywhere, mirroring
// the original wsgi dispatcher, which never registers a put_accounts/
// put_queues/put_messages route), plus /health, /ready, /metrics and
// /debug carried over from the teacher's ambient stack.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	if deps.Logger != nil {
		r.Use(ourMiddleware.RequestLogger(deps.Logger))
	}
	if deps.Metrics != nil {
		r.Use(ourMiddleware.PrometheusMiddleware(deps.Metrics))
	}
	if deps.SentryHandler != nil {
		r.Use(deps.SentryHandler.Handle)
	}
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware)
	}

	if deps.HealthHandler != nil {
		r.Get("/health", deps.HealthHandler.Health)
		r.Get("/ready", deps.HealthHandler.Ready)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Mount("/debug", chiMiddleware.Profiler())
	if deps.HealthHandler != nil {
		r.Post("/debug/clean", deps.HealthHandler.Clean)
	}

	if deps.AccountHandler != nil {
		r.Get("/", deps.AccountHandler.Versions)
	}

	r.Route("/v1.0", func(v chi.Router) {
		if deps.AccountHandler != nil {
			v.Get("/", deps.AccountHandler.GetMany)
			v.Delete("/", deps.AccountHandler.DeleteMany)
		}

		v.Route("/{account}", func(a chi.Router) {
			if deps.QueueHandler != nil {
				a.Get("/", deps.QueueHandler.GetMany)
				a.Delete("/", deps.QueueHandler.DeleteMany)
			}

			a.Route("/{queue}", func(q chi.Router) {
				if deps.MessageHandler != nil {
					q.Get("/", deps.MessageHandler.GetMany)
					q.Delete("/", deps.MessageHandler.DeleteMany)
					q.Post("/", deps.MessageHandler.UpdateMany)

					q.Put("/{message}", deps.MessageHandler.Create)
					q.Get("/{message}", deps.MessageHandler.Get)
					q.Delete("/{message}", deps.MessageHandler.Delete)
					q.Post("/{message}", deps.MessageHandler.Update)
				}
			})
		})
	})

	return r
}
