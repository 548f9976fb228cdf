package observability

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/railzwaylabs/cipherpoll/internal/config"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Module = fx.Module("observability",
	fx.Provide(NewLevel),
	fx.Provide(NewLogger),
	fx.Provide(NewRegistry),
	fx.Provide(NewMetrics),
	fx.Invoke(watchLogLevel),
	fx.Invoke(registerTelemetry),
)

func NewLevel(cfg config.Config) zap.AtomicLevel {
	return zap.NewAtomicLevelAt(parseLevel(cfg.Log.Level))
}

func NewLogger(lc fx.Lifecycle, cfg config.Config, level zap.AtomicLevel) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Log.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("app", cfg.AppName), zap.String("env", cfg.Environment))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

func watchLogLevel(v *viper.Viper, level zap.AtomicLevel, log *zap.Logger) {
	config.Watch(v, func(cfg config.Config, e fsnotify.Event) {
		next := parseLevel(cfg.Log.Level)
		if next == level.Level() {
			return
		}
		level.SetLevel(next)
		log.Info("log level reloaded", zap.String("file", e.Name), zap.Stringer("level", next))
	})
}

func parseLevel(raw string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(raw)))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
