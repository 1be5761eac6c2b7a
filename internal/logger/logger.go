// Package logger is the process-wide structured logger.
//
// Call sites use printf-style helpers (Infof, Errorf, ...) backed by zap. Output goes
// to stderr as JSON by default, or to a size-rotated file when Config.File is set.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger construction.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json (default) or console
	File       string // optional path; enables rotation
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var global atomic.Pointer[zap.SugaredLogger]

func init() {
	l, _ := New(Config{})
	global.Store(l.Sugar())
}

// New builds a zap logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var ws zapcore.WriteSyncer
	if cfg.File != "" {
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
			Compress:   cfg.Compress,
		})
	} else {
		ws = zapcore.Lock(os.Stderr)
	}

	return zap.New(zapcore.NewCore(newEncoder(cfg.Format), ws, level),
		zap.AddCaller(), zap.AddCallerSkip(1)), nil
}

// NewWriter builds a JSON logger writing to w. Used by tests to capture output.
func NewWriter(w io.Writer, level zapcore.Level) *zap.Logger {
	core := zapcore.NewCore(newEncoder("json"), zapcore.AddSync(w), level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

func newEncoder(format string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder
	if strings.EqualFold(format, "console") {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encCfg)
	}
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return zapcore.NewJSONEncoder(encCfg)
}

// ParseLevel maps a config string to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	if strings.TrimSpace(s) == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// Init replaces the global logger according to cfg.
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	Replace(l)
	return nil
}

// Replace swaps the global logger and returns a func restoring the previous one.
func Replace(l *zap.Logger) func() {
	prev := global.Swap(l.Sugar())
	return func() { global.Store(prev) }
}

// StdLog adapts the global logger for APIs that want a *log.Logger (http.Server.ErrorLog).
func StdLog() *log.Logger {
	return zap.NewStdLog(global.Load().Desugar().WithOptions(zap.AddCallerSkip(-1)))
}

// Named returns a child logger tagged with a component name.
func Named(component string) *zap.SugaredLogger {
	return global.Load().WithOptions(zap.AddCallerSkip(-1)).Named(component)
}

func Debugf(format string, args ...any) { global.Load().Debugf(format, args...) }
func Infof(format string, args ...any)  { global.Load().Infof(format, args...) }
func Warnf(format string, args ...any)  { global.Load().Warnf(format, args...) }
func Errorf(format string, args ...any) { global.Load().Errorf(format, args...) }
func Fatalf(format string, args ...any) { global.Load().Fatalf(format, args...) }

// Sync flushes buffered entries.
func Sync() error {
	return global.Load().Sync()
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
