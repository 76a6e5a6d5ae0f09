package observability

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/emonty/burrow/internal/logging"
)

// AsyncContextOptions seeds the background context built for a long-running
// worker goroutine with a logger carrying fixed component/worker attributes, so every log line it
// emits is taggable back to its source without threading those fields
// through every call.
type AsyncContextOptions struct {
	Logger    *slog.Logger
	Component string
	Worker    string
	Extra     []slog.Attr
}

func AsyncContext(opts AsyncContextOptions) context.Context {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := make([]any, 0, 2+len(opts.Extra))
	if opts.Component != "" {
		attrs = append(attrs, slog.String("component", opts.Component))
	}
	if opts.Worker != "" {
		attrs = append(attrs, slog.String("worker", opts.Worker))
	}
	for _, attr := range opts.Extra {
		attrs = append(attrs, attr)
	}
	return logging.WithLogger(context.Background(), logger.With(attrs...))
}

// CaptureWorkerException reports an error from a background worker
// (component/worker identify which one) to Sentry, tagged so it can be
// filtered apart from request-path errors. A no-op if Sentry isn't
// configured or err is nil.
func CaptureWorkerException(ctx context.Context, component, worker string, err error) {
	if err == nil {
		return
	}
	if hub := sentry.CurrentHub(); hub == nil || hub.Client() == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		if component != "" {
			scope.SetTag("component", component)
		}
		if worker != "" {
			scope.SetTag("worker", worker)
		}
		sentry.CaptureException(err)
	})
}
