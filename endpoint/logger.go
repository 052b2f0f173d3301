package endpoint

import (
	"context"

	"github.com/sirupsen/logrus"
)

type loggerKey struct{}

// WithLogger returns a context carrying a request-scoped logger.
func WithLogger(ctx context.Context, l logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// LoggerFromContext returns the logger stored by WithLogger. When there is
// none it returns fallback, or the logrus standard logger if fallback is nil.
func LoggerFromContext(ctx context.Context, fallback logrus.FieldLogger) logrus.FieldLogger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(logrus.FieldLogger); ok && l != nil {
			return l
		}
	}
	if fallback != nil {
		return fallback
	}
	return logrus.StandardLogger()
}
