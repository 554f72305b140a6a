// Package log provides structured logging with run context.
//
// Two logger variants are available:
//   - Logger: non-sugared zap.Logger for the orchestrator (structured fields)
//   - SugaredLogger: printf-style logging for CLI surfaces
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/triage/types"
)

// Logger provides structured logging with run context.
// Every entry carries run_id and backend.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger provides printf-style logging for CLI surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// Options tune logger construction.
type Options struct {
	// Level is the minimum level ("debug", "info", "warn", "error").
	// Empty means debug.
	Level string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// NewLogger creates a debug-level logger writing JSON to os.Stderr.
func NewLogger(runMeta *types.RunMeta) *Logger {
	l, _ := NewLoggerWithOptions(runMeta, Options{})
	return l
}

// NewLoggerWithOptions creates a logger with an explicit level and output.
// Returns an error for an unknown level.
func NewLoggerWithOptions(runMeta *types.RunMeta, opts Options) (*Logger, error) {
	level := zapcore.DebugLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		level,
	)
	return &Logger{zap: zap.New(core).With(runFields(runMeta)...)}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

func runFields(runMeta *types.RunMeta) []zap.Field {
	if runMeta == nil {
		return nil
	}
	return []zap.Field{
		zap.String("run_id", runMeta.RunID),
		zap.String("backend", runMeta.Backend),
	}
}

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return &Logger{zap: l.zap.With(zf...)}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}
