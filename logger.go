package multitenant

// Logger defines the interface for structured logging used by every
// component of the entity core.
//
// The Logger interface uses variadic arguments in key-value pairs:
//
//	logger.Info("Entity loaded", "entityType", "tenant", "entityID", "acme")
//
// *slog.Logger from the standard library satisfies this interface as-is, so
// most applications simply pass slog.Default() or a configured handler.
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	// Used for normal events like entity loads, unloads and registrations.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	// Used for failures that do not stop the process, such as an entity
	// whose load handler failed.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	// Used for swallowed layer failures and skipped configuration.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	// Used for detailed diagnostics such as skipped identification strategies.
	Debug(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

// LoggerOrNop returns logger, or a no-op Logger when logger is nil.
func LoggerOrNop(logger Logger) Logger {
	if logger == nil {
		return nopLogger{}
	}
	return logger
}
