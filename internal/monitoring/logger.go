package monitoring

import (
	"log/slog"
	"os"
	"time"
)

// Logger provides structured logging with domain helpers
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new JSON logger
func NewLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// RequestLogger logs HTTP request details
func (l *Logger) RequestLogger(method, path, ip, userAgent string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"user_agent", userAgent,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// AggregationLogger logs a corpus aggregation run
func (l *Logger) AggregationLogger(component, view string, papers, evaluations int, duration time.Duration, cacheHit bool) {
	l.Info("Aggregation Completed",
		"component", component,
		"view", view,
		"unique_papers", papers,
		"total_evaluations", evaluations,
		"duration_ms", duration.Milliseconds(),
		"cache_hit", cacheHit,
	)
}

// LoaderLogger logs evaluation record loading
func (l *Logger) LoaderLogger(token string, found bool, duration time.Duration, cacheHit bool) {
	l.Info("Evaluation Record Loaded",
		"token", token,
		"found", found,
		"duration_ms", duration.Milliseconds(),
		"cache_hit", cacheHit,
	)
}

// APIErrorLogger logs API errors with request context
func (l *Logger) APIErrorLogger(err error, method, path, ip string, statusCode int) {
	l.Error("API Error",
		"error", err.Error(),
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
	)
}

// StoreLogger logs persistence operations
func (l *Logger) StoreLogger(operation, table string, duration time.Duration, err error) {
	if err != nil {
		l.Error("Store Operation Failed",
			"operation", operation,
			"table", table,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return
	}
	l.Debug("Store Operation",
		"operation", operation,
		"table", table,
		"duration_ms", duration.Milliseconds(),
	)
}
