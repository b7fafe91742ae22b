package diesel

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// nopHandler discards every record. Enabled returns false so callers skip
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger sets the logger used by contexts created without WithLogger.
// By default diesel logs nothing. Pass nil to restore that.
//
// Levels used:
//   - [slog.LevelDebug]: per-frame details (acquired image, suboptimal acquire)
//   - [slog.LevelInfo]: device selection and swap chain rebuilds
//   - [slog.LevelWarn]: fence timeouts and skipped frames
//   - [slog.LevelError]: validation layer errors and fatal conditions
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the package logger. It is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// NewFileLogger opens path for appending and returns a text logger writing
// to it at the given level. Close the returned closer when done.
func NewFileLogger(path string, level slog.Level) (*slog.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return nil, nil, newError("open log file", KindFatal, err)
	}
	h := slog.NewTextHandler(f, &slog.HandlerOptions{AddSource: true, Level: level})
	return slog.New(h), f, nil
}
