package logger

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func New() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.TimeKey = "time"
	return cfg.Build()
}

func Sugar(l *zap.Logger) *zap.SugaredLogger { return l.Sugar() }

// FxLogger routes fx's own lifecycle events through zap.
func FxLogger(l *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: l.Named("fx")}
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Provide(Sugar),
	fx.WithLogger(FxLogger),
)
