// Package logging provides the structured logger shared by the exploration
// engine, modeled on the zap.Logger field/constructor pattern used
// throughout the handlers of the originating codebase.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once   sync.Once
	global *zap.Logger
)

// New builds a production zap.Logger, falling back to a no-op logger if
// construction fails (it practically never does with the default config).
func New() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// Global returns a process-wide logger, built once on first use.
func Global() *zap.Logger {
	once.Do(func() {
		global = New()
	})
	return global
}

// Named returns the global logger scoped to a component name, e.g.
// logging.Named("fpselect").
func Named(component string) *zap.Logger {
	return Global().Named(component)
}
