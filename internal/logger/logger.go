package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents logging severity levels
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger defines logging operations
type Logger interface {
	SetLevel(level Level)
	GetLevel() Level
	Debug(message string, fields map[string]any)
	Info(message string, fields map[string]any)
	Warn(message string, fields map[string]any)
	Error(message string, fields map[string]any)
	// Flush ensures all buffered logs are written to their destination
	Flush() error
}

// ZapLogger implements Logger using zap
type ZapLogger struct {
	logger *zap.Logger
	atom   zap.AtomicLevel
	level  Level
}

// NewZapLogger creates a zap-backed logger. Production mode writes JSON, development
// mode writes colored console lines. A non-empty format ("json" or "console") overrides
// the encoding either way.
func NewZapLogger(production bool, level, format string) Logger {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	switch format {
	case "json":
		cfg.Encoding = "json"
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	case "console":
		cfg.Encoding = "console"
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"

	zapLogger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	l := &ZapLogger{
		logger: zapLogger,
		atom:   cfg.Level,
	}
	l.SetLevel(ParseLevel(level))
	return l
}

// SetLevel sets the minimum log level
func (l *ZapLogger) SetLevel(level Level) {
	l.level = level
	switch level {
	case LevelDebug:
		l.atom.SetLevel(zap.DebugLevel)
	case LevelWarn:
		l.atom.SetLevel(zap.WarnLevel)
	case LevelError:
		l.atom.SetLevel(zap.ErrorLevel)
	default:
		l.atom.SetLevel(zap.InfoLevel)
	}
}

func (l *ZapLogger) GetLevel() Level {
	return l.level
}

func toZapFields(fields map[string]any) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return zapFields
}

func (l *ZapLogger) Debug(message string, fields map[string]any) {
	l.logger.Debug(message, toZapFields(fields)...)
}

func (l *ZapLogger) Info(message string, fields map[string]any) {
	l.logger.Info(message, toZapFields(fields)...)
}

func (l *ZapLogger) Warn(message string, fields map[string]any) {
	l.logger.Warn(message, toZapFields(fields)...)
}

func (l *ZapLogger) Error(message string, fields map[string]any) {
	l.logger.Error(message, toZapFields(fields)...)
}

func (l *ZapLogger) Flush() error {
	return l.logger.Sync()
}

// NoopLogger discards everything. Used in tests.
type NoopLogger struct {
	level Level
}

func NewNoopLogger() Logger {
	return &NoopLogger{level: LevelInfo}
}

func (l *NoopLogger) SetLevel(level Level)                  { l.level = level }
func (l *NoopLogger) GetLevel() Level                       { return l.level }
func (l *NoopLogger) Debug(message string, _ map[string]any) {}
func (l *NoopLogger) Info(message string, _ map[string]any)  {}
func (l *NoopLogger) Warn(message string, _ map[string]any)  {}
func (l *NoopLogger) Error(message string, _ map[string]any) {}
func (l *NoopLogger) Flush() error                          { return nil }
