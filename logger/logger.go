// Package logger builds the application zap logger from LoggingConfig
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/amirphl/click-sentinel/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a logger writing to stdout, a rotated file, or both
func New(cfg config.LoggingConfig, environment string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(defaultString(cfg.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	if environment != "production" {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	}
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.CallerKey = "caller"
	encoderCfg.EncodeCaller = zapcore.ShortCallerEncoder

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "console", "text":
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	sink, err := writer(cfg)
	if err != nil {
		return nil, err
	}

	opts := []zap.Option{}
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(sink), level)
	return zap.New(core, opts...).With(zap.String("env", environment)), nil
}

// writer resolves the configured output into a single io.Writer
func writer(cfg config.LoggingConfig) (io.Writer, error) {
	switch cfg.Output {
	case "", "stdout":
		return os.Stdout, nil
	case "file":
		return rotating(cfg), nil
	case "both":
		return io.MultiWriter(os.Stdout, rotating(cfg)), nil
	default:
		return nil, fmt.Errorf("unsupported log output %q", cfg.Output)
	}
}

func rotating(cfg config.LoggingConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
