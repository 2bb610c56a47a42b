package renderapi

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

// halLogging reports whether SetLogger also forwards to the wgpu HAL.
var halLogging atomic.Bool

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for renderapi and all its sub-packages.
// By default nothing is logged. Pass nil to restore the silent default.
//
// Log levels used by renderapi:
//   - [slog.LevelDebug]: state diagnostics (cache hits, arena growth, bind groups)
//   - [slog.LevelInfo]: lifecycle events (backend selected, swap chain resized)
//   - [slog.LevelWarn]: degraded or unsupported operations (skipped draws,
//     clamped settings, rejected uniform buffers)
//   - [slog.LevelError]: GPU object creation failures
//
// Example:
//
//	renderapi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	if halLogging.Load() {
		hal.SetLogger(l)
	}
}

// Logger returns the current logger. Sub-packages call this to share the
// same configuration without import cycles.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// ForwardHALLogs makes SetLogger also configure the wgpu HAL logger, and
// immediately forwards the current logger when enabled.
func ForwardHALLogs(enabled bool) {
	halLogging.Store(enabled)
	if enabled {
		hal.SetLogger(Logger())
	} else {
		hal.SetLogger(nil)
	}
}
