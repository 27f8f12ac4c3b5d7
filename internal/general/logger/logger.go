package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

// ErrorObject is emitted only for error logs.
type ErrorObject struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack"`
}

// Logger writes single-line JSON entries with the fields
// timestamp, level, service, action, message, hostname, request_id, user_id, details, error.
type Logger struct {
	service  string
	hostname string
	sl       *slog.Logger
	debug    bool
}

// New creates a structured logger for the given service writing to stdout.
func New(service string) *Logger {
	return NewWithWriter(service, os.Stdout)
}

// NewWithWriter creates a structured logger that writes to w.
func NewWithWriter(service string, w io.Writer) *Logger {
	hn, err := os.Hostname()
	if err != nil || strings.TrimSpace(hn) == "" {
		hn = "unknown-hostname"
	}

	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: renameBuiltins,
	})

	return &Logger{
		service:  service,
		hostname: hn,
		sl:       slog.New(h).With("service", service, "hostname", hn),
		debug:    os.Getenv("LOG_DEBUG") != "",
	}
}

// renameBuiltins maps slog's builtin keys onto the log line format.
func renameBuiltins(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		a.Key = "timestamp"
		a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
	case slog.MessageKey:
		a.Key = "message"
	case slog.LevelKey:
		a.Value = slog.StringValue(a.Value.String())
	}
	return a
}

// Slog exposes the underlying slog.Logger for libraries that want one.
func (l *Logger) Slog() *slog.Logger { return l.sl }

// Debug writes a DEBUG line with optional details. Suppressed unless LOG_DEBUG is set.
func (l *Logger) Debug(ctx context.Context, action, msg string, details any) {
	if !l.debug {
		return
	}
	l.emit(ctx, slog.LevelDebug, action, msg, nil, details)
}

// Info writes an INFO line with optional details.
func (l *Logger) Info(ctx context.Context, action, msg string, details any) {
	l.emit(ctx, slog.LevelInfo, action, msg, nil, details)
}

// Warn writes a WARN line with optional details.
func (l *Logger) Warn(ctx context.Context, action, msg string, details any) {
	l.emit(ctx, slog.LevelWarn, action, msg, nil, details)
}

// Error writes an ERROR line and attaches an error stack trace.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details any) {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	l.emit(ctx, slog.LevelError, action, msg, &ErrorObject{
		Msg:   strings.TrimSpace(err.Error()),
		Stack: string(debug.Stack()),
	}, details)
}

func (l *Logger) emit(ctx context.Context, level slog.Level, action, msg string, errObj *ErrorObject, details any) {
	if ctx == nil {
		ctx = context.Background()
	}

	attrs := make([]slog.Attr, 0, 6)
	attrs = append(attrs, slog.String("action", safeAction(action)))
	if id := requestID(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if id := userID(ctx); id != "" {
		attrs = append(attrs, slog.String("user_id", id))
	}
	if details != nil {
		attrs = append(attrs, slog.Any("details", details))
	}
	if errObj != nil {
		attrs = append(attrs, slog.Group("error",
			slog.String("msg", errObj.Msg),
			slog.String("stack", errObj.Stack),
		))
	}

	l.sl.LogAttrs(ctx, level, strings.TrimSpace(msg), attrs...)
}

// ------------ Context helpers -------------

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "busboarding_request_id"
	ctxKeyUserID    ctxKey = "busboarding_user_id"
)

// WithRequestID returns a new context carrying request_id.
func (l *Logger) WithRequestID(ctx context.Context, reqID string) context.Context {
	if strings.TrimSpace(reqID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, reqID)
}

// WithUserID returns a new context carrying user_id.
func (l *Logger) WithUserID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyUserID, id)
}

// RequestID extracts request_id from ctx (if any).
func RequestID(ctx context.Context) string { return requestID(ctx) }

func requestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return s
	}
	return ""
}

func userID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(ctxKeyUserID).(string); ok {
		return s
	}
	return ""
}

func safeAction(a string) string {
	a = strings.TrimSpace(a)
	if a == "" {
		return "unspecified"
	}
	return a
}
