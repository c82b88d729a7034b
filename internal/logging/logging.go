package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

var zapLevels = map[Level]zapcore.Level{
	LevelDebug: zapcore.DebugLevel,
	LevelInfo:  zapcore.InfoLevel,
	LevelWarn:  zapcore.WarnLevel,
	LevelError: zapcore.ErrorLevel,
}

func (l Level) String() string { return levelNames[l] }

// ParseLevel maps a level name to a Level, defaulting to LevelWarn.
func ParseLevel(s string) Level {
	for lvl, name := range levelNames {
		if strings.EqualFold(name, s) {
			return lvl
		}
	}
	return LevelWarn
}

type Logger struct {
	z *zap.Logger
}

var (
	mu            sync.Mutex
	defaultLogger *Logger
	atomicLevel   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init installs the process logger. Entries are JSON lines written to w
// (stderr when nil) carrying baseFields.
func Init(w io.Writer, lvl Level, baseFields map[string]interface{}) {
	if w == nil {
		w = os.Stderr
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.LevelKey = "lvl"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	atomicLevel.SetLevel(zapLevels[lvl])
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), atomicLevel)

	mu.Lock()
	defaultLogger = &Logger{z: zap.New(core).With(fieldsOf(baseFields)...)}
	mu.Unlock()
}

func current() *Logger {
	mu.Lock()
	l := defaultLogger
	mu.Unlock()
	if l == nil {
		Init(nil, LevelInfo, nil)
		return current()
	}
	return l
}

func fieldsOf(m map[string]interface{}) []zap.Field {
	if len(m) == 0 {
		return nil
	}
	fields := make([]zap.Field, 0, len(m))
	for k, v := range m {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

// WithFields returns a logger that adds fields to every entry.
func WithFields(fields map[string]interface{}) *Logger {
	l := current()
	if len(fields) == 0 {
		return l
	}
	return &Logger{z: l.z.With(fieldsOf(fields)...)}
}

// WithFields returns a child logger that adds fields to every entry.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	if len(fields) == 0 {
		return l
	}
	return &Logger{z: l.z.With(fieldsOf(fields)...)}
}

func (l *Logger) Debug(msg string, extra map[string]interface{}) { l.z.Debug(msg, fieldsOf(extra)...) }
func (l *Logger) Info(msg string, extra map[string]interface{})  { l.z.Info(msg, fieldsOf(extra)...) }
func (l *Logger) Warn(msg string, extra map[string]interface{})  { l.z.Warn(msg, fieldsOf(extra)...) }
func (l *Logger) Error(msg string, extra map[string]interface{}) { l.z.Error(msg, fieldsOf(extra)...) }

// Sync flushes buffered entries.
func (l *Logger) Sync() error { return l.z.Sync() }

// Top-level convenience wrappers
func Debug(msg string, extra map[string]interface{}) { current().Debug(msg, extra) }
func Info(msg string, extra map[string]interface{})  { current().Info(msg, extra) }
func Warn(msg string, extra map[string]interface{})  { current().Warn(msg, extra) }
func Error(msg string, extra map[string]interface{}) { current().Error(msg, extra) }

func SetLevel(lvl Level) {
	atomicLevel.SetLevel(zapLevels[lvl])
}
