// Package logger configures the process-wide zap logger and hands out named
// child loggers ("bot", "scheduler", "storage", ...).
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu  sync.RWMutex
	log = zap.NewNop().Sugar()
)

// Config represents configuration options for logger initialization
type Config struct {
	Debug     bool           // Enable debug logging
	Location  *time.Location // Zone used to render timestamps
	LogToFile bool           // Also write JSON logs to a file
	LogsDir   string         // Directory for log files (default: working directory)
}

// Init builds the root logger. Until it is called every logger is a no-op,
// which keeps tests quiet.
func Init(cfg Config) error {
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "timestamp",
		NameKey:        "logger",
		CallerKey:      "caller",
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     timeEncoder(cfg.Location),
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stdout), level),
	}

	if cfg.LogToFile {
		dir := cfg.LogsDir
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			dir = wd
		}
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("create logs dir: %w", err)
		}

		path := filepath.Join(dir, fmt.Sprintf("pulsebot-%s.log", time.Now().Format("2006-01-02")))
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}

		fileConfig := encoderConfig
		fileConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileConfig), zapcore.AddSync(f), level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Named("pulsebot").Sugar()

	mu.Lock()
	log = l
	mu.Unlock()
	return nil
}

// Named returns a child of the root logger.
func Named(name string) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return log.Named(name)
}

// Sync flushes buffered entries
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = log.Sync()
}

func timeEncoder(loc *time.Location) zapcore.TimeEncoder {
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		if loc != nil {
			t = t.In(loc)
		}
		enc.AppendString(t.Format("2006-01-02 15:04:05"))
	}
}
