package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ohmynofan/gamemale-checkin-bot/internal/config"
)

var (
	root    atomic.Pointer[zap.Logger]
	once    sync.Once
	logFile *lumberjack.Logger

	// consoleOutput is stderr so log lines never interleave with the status
	// spinner, which owns stdout.
	consoleOutput = os.Stderr
)

// Init builds the process logger: a console core on stderr and, when a file is
// configured, a JSON core rotated by lumberjack. Only the first call has effect.
func Init(cfg config.LoggerConfig) error {
	var err error
	once.Do(func() {
		err = initialize(cfg, zapcore.Lock(consoleOutput))
	})
	return err
}

func initialize(cfg config.LoggerConfig, console zapcore.WriteSyncer) error {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder(cfg.Format), console, level)}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return err
		}
		logFile = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		cores = append(cores, zapcore.NewCore(encoder("json"), zapcore.AddSync(logFile), level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zap.ErrorLevel)).Named("gamemale")
	root.Store(l)
	return nil
}

func encoder(format string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if strings.EqualFold(format, "json") {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewJSONEncoder(encCfg)
	}
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(encCfg)
}

// L returns the process logger, or a no-op logger before Init.
func L() *zap.Logger {
	if l := root.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Named returns a sub-scope of the process logger tagged with a component name.
func Named(component string) *zap.Logger {
	return L().Named(component)
}

func Close() error {
	if l := root.Load(); l != nil {
		_ = l.Sync()
	}
	if logFile != nil {
		return logFile.Close()
	}
	return nil
}
