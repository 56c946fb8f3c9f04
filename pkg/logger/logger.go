// Package logger provides the zap-backed implementation of the Logger
// interface. Credentials configured for Plex and TMDb are redacted from all
// log output so tokens never land in the log file served by the logs
// endpoint.
package logger

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/postersmith/postersmith/pkg/interfaces"
)

// Options controls logger construction.
type Options struct {
	Level       string // debug, info, warn, error
	Development bool
	FilePath    string // optional log file, tailed by the logs endpoint
}

// ZapLogger wraps zap to implement interfaces.Logger.
type ZapLogger struct {
	logger  *zap.Logger
	secrets []string
}

// New creates a logger from options. When FilePath is set the log is written
// both to stdout and to the file.
func New(opts Options) (*ZapLogger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			level = zapcore.InfoLevel
		}
	}

	var encoderCfg zapcore.EncoderConfig
	var encoder zapcore.Encoder
	if opts.Development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoderCfg = zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "timestamp"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderCfg.MessageKey = "message"
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}

	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.TimeKey = "timestamp"
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCfg.MessageKey = "message"
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.Lock(f), level))
	}

	return &ZapLogger{
		logger: zap.New(zapcore.NewTee(cores...), zap.AddCaller()),
	}, nil
}

// NewNop returns a logger that discards everything; used in tests.
func NewNop() *ZapLogger {
	return &ZapLogger{logger: zap.NewNop()}
}

// RedactSecrets registers values that must never appear in log output.
// Values shorter than 5 characters are ignored.
func (l *ZapLogger) RedactSecrets(values ...string) {
	for _, v := range values {
		if len(v) > 4 {
			l.secrets = append(l.secrets, v)
		}
	}
}

func (l *ZapLogger) redact(msg string) string {
	for _, s := range l.secrets {
		if strings.Contains(msg, s) {
			msg = strings.ReplaceAll(msg, s, s[:4]+"***REDACTED***")
		}
	}
	return msg
}

// Debug logs a debug message.
func (l *ZapLogger) Debug(msg string, fields ...interfaces.Field) {
	l.logger.Debug(l.redact(msg), l.convertFields(fields)...)
}

// Info logs an info message.
func (l *ZapLogger) Info(msg string, fields ...interfaces.Field) {
	l.logger.Info(l.redact(msg), l.convertFields(fields)...)
}

// Warn logs a warning message.
func (l *ZapLogger) Warn(msg string, fields ...interfaces.Field) {
	l.logger.Warn(l.redact(msg), l.convertFields(fields)...)
}

// Error logs an error message.
func (l *ZapLogger) Error(msg string, fields ...interfaces.Field) {
	l.logger.Error(l.redact(msg), l.convertFields(fields)...)
}

// Fatal logs a fatal message and exits.
func (l *ZapLogger) Fatal(msg string, fields ...interfaces.Field) {
	l.logger.Fatal(l.redact(msg), l.convertFields(fields)...)
}

// WithFields returns a logger with additional fields.
func (l *ZapLogger) WithFields(fields ...interfaces.Field) interfaces.Logger {
	return &ZapLogger{
		logger:  l.logger.With(l.convertFields(fields)...),
		secrets: l.secrets,
	}
}

// Sync flushes any buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

// convertFields converts our custom fields to zap fields.
func (l *ZapLogger) convertFields(fields []interfaces.Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))
	for i, field := range fields {
		if s, ok := field.Value.(string); ok {
			zapFields[i] = zap.String(field.Key, l.redact(s))
			continue
		}
		if err, ok := field.Value.(error); ok && err != nil {
			zapFields[i] = zap.String(field.Key, l.redact(err.Error()))
			continue
		}
		zapFields[i] = zap.Any(field.Key, field.Value)
	}
	return zapFields
}
