// Package logging provides the structured logger used across the service.
package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Logger is the structured logging interface threaded through the service.
type Logger interface {
	WithContext(ctx context.Context) Logger
	WithFields(fields map[string]any) Logger
	WithField(key string, value any) Logger
	WithError(err error) Logger
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type zapLogger struct {
	log *zap.SugaredLogger
}

// New builds a production logger at the given level.
func New(serviceName, level string, pretty bool) (Logger, error) {
	cfg := zap.NewProductionConfig()
	if pretty {
		cfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &zapLogger{log: base.Sugar().With("service", serviceName)}, nil
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() Logger {
	return &zapLogger{log: zap.NewNop().Sugar()}
}

func (l *zapLogger) WithContext(ctx context.Context) Logger {
	fields := []any{}
	if requestID := appctx.GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if userID := appctx.GetUserID(ctx); userID != "" {
		fields = append(fields, "user_id", userID)
	}
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID, "span_id", tracing.GetSpanID(ctx))
	}
	if len(fields) == 0 {
		return l
	}
	return &zapLogger{log: l.log.With(fields...)}
}

func (l *zapLogger) WithFields(fields map[string]any) Logger {
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	return &zapLogger{log: l.log.With(args...)}
}

func (l *zapLogger) WithField(key string, value any) Logger {
	return &zapLogger{log: l.log.With(key, value)}
}

func (l *zapLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return &zapLogger{log: l.log.With("error", err.Error())}
}

func (l *zapLogger) Debug(msg string) { l.log.Debug(msg) }
func (l *zapLogger) Info(msg string)  { l.log.Info(msg) }
func (l *zapLogger) Warn(msg string)  { l.log.Warn(msg) }
func (l *zapLogger) Error(msg string) { l.log.Error(msg) }

func (l *zapLogger) Debugf(format string, args ...any) { l.log.Debugf(format, args...) }
func (l *zapLogger) Infof(format string, args ...any)  { l.log.Infof(format, args...) }
func (l *zapLogger) Warnf(format string, args ...any)  { l.log.Warnf(format, args...) }
func (l *zapLogger) Errorf(format string, args ...any) { l.log.Errorf(format, args...) }
