package api

import (
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/superprocess/internal/logging"
)

// quietPaths are polled often enough that successful hits only log at debug.
var quietPaths = map[string]bool{
	"/api/health": true,
	"/api/events": true,
}

// requestLevel picks the log level for a finished request.
func requestLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case quietPaths[path]:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// HTTPLoggingMiddleware logs every request once it has been served.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	next(ctx)

	u := ctx.URL()
	status := ctx.Status()
	attrs := make([]slog.Attr, 0, 8)
	attrs = append(attrs,
		slog.String("method", ctx.Method()),
		slog.String("path", u.Path),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
		slog.String("remote_addr", ctx.RemoteAddr()),
	)
	if op := ctx.Operation(); op != nil && op.OperationID != "" {
		attrs = append(attrs, slog.String("operation", op.OperationID))
	}
	// The auth query parameter carries credentials.
	if q := u.Query(); len(q) > 0 {
		if q.Has("auth") {
			q.Set("auth", "redacted")
		}
		attrs = append(attrs, slog.String("query", q.Encode()))
	}
	if ua := ctx.Header("User-Agent"); ua != "" {
		attrs = append(attrs, slog.String("user_agent", ua))
	}

	logging.GetLogger("http").LogAttrs(ctx.Context(), requestLevel(u.Path, status), "HTTP request", attrs...)
}
