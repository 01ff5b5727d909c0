// Package observability sets up logging.
package observability

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ezrec/serialbridge/config"
)

// Level converts a configured level name. Unknown names are info.
func Level(name string) zapcore.Level {
	switch strings.ToLower(name) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	}
	return zap.InfoLevel
}

// SetupLogger builds a logger from c, makes it the global logger, and
// redirects the standard log package to it. The caller should defer
// logger.Sync().
func SetupLogger(c config.LogConfig) (logger *zap.Logger, err error) {
	level := zap.NewAtomicLevelAt(Level(c.Level))

	encCfg := zap.NewProductionEncoderConfig()
	if c.Development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var encoder zapcore.Encoder
	if strings.ToLower(c.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	outputs := c.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	var cores []zapcore.Core
	for _, out := range outputs {
		var ws zapcore.WriteSyncer
		ws, err = sink(out, c.Rotation)
		if err != nil {
			return
		}
		cores = append(cores, zapcore.NewCore(encoder, ws, level))
	}

	opts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	}
	if c.Development {
		opts = append(opts, zap.Development())
	}

	logger = zap.New(zapcore.NewTee(cores...), opts...)
	zap.ReplaceGlobals(logger)
	_, _ = zap.RedirectStdLogAt(logger, zap.InfoLevel)

	return
}

// sink opens one output. File outputs rotate when rotation is enabled.
func sink(out string, rot config.RotationConfig) (ws zapcore.WriteSyncer, err error) {
	switch strings.ToLower(out) {
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}

	if rot.Enable {
		filename := out
		if strings.TrimSpace(rot.Filename) != "" {
			filename = rot.Filename
		}
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   filename,
			MaxSize:    max(rot.MaxSizeMB, 10),
			MaxBackups: max(rot.MaxBackups, 1),
			MaxAge:     max(rot.MaxAgeDays, 7),
			Compress:   rot.Compress,
		})
		return
	}

	if dir := filepath.Dir(out); dir != "." {
		err = os.MkdirAll(dir, 0o755)
		if err != nil {
			return
		}
	}

	file, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	ws = zapcore.AddSync(file)

	return
}
