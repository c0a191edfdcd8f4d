// Package monitoring builds the zap loggers used by the command line tools.
package monitoring

import (
	"fmt"
	"io"
	"sync"
	"time"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
	FormatLogfmt  = "logfmt"
)

// LogConfig selects the level and encoding of a logger.
type LogConfig struct {
	Level  zapcore.Level
	Format string
}

// NewLogger returns a logger writing to w. Timestamps are RFC3339 in UTC and
// durations are written in their string form.
func NewLogger(w io.Writer, cfg LogConfig) (*zap.Logger, error) {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = func(ts time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(ts.UTC().Format(time.RFC3339))
	}
	ec.EncodeDuration = func(d time.Duration, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(d.String())
	}

	var encoder zapcore.Encoder
	switch cfg.Format {
	case FormatConsole, "":
		encoder = zapcore.NewConsoleEncoder(ec)
	case FormatJSON:
		encoder = zapcore.NewJSONEncoder(ec)
	case FormatLogfmt:
		encoder = zaplogfmt.NewEncoder(ec)
	default:
		return nil, fmt.Errorf("unknown log format %q; supported formats are console, json, logfmt", cfg.Format)
	}

	return zap.New(zapcore.NewCore(
		encoder,
		zapcore.Lock(zapcore.AddSync(w)),
		cfg.Level,
	)), nil
}

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// L returns the process logger set by SetLogger, a no-op logger by default.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLogger replaces the process logger. Passing nil installs a no-op logger.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}
