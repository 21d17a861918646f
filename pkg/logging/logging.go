// Package logging builds the application logger. Logs go to stderr: stdout
// is reserved for the JSON-RPC channel in serve mode.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates a text logger on stderr at the given level. The "error" key
// is shortened to "err" for consistency across packages.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}))
}

// NewNop returns a logger that discards everything. Tests use this.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
