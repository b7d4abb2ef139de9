// Package logging builds the application logger: a log/slog front end
// over a zap core.
package logging

import (
	"io"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// New returns a slog.Logger backed by zap and its flush function.
// Production emits JSON at info level; development emits colored console
// output at debug level.
func New(production bool) (*slog.Logger, func() error) {
	var zapLogger *zap.Logger

	if production {
		zapLogger = zap.Must(zap.NewProduction())
	} else {
		config := zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapLogger = zap.Must(config.Build())
	}

	return slog.New(zapslog.NewHandler(zapLogger.Core())), zapLogger.Sync
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrNop returns l, or a discarding logger if l is nil.
func OrNop(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Nop()
	}
	return l
}
