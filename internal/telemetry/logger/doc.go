// Package logger provides structured logging on top of log/slog.
//
//   - logger.go: Logger interface, handler construction, global level
//   - context.go: Context-carried loggers and connection IDs
//   - truncate.go: Bounding of large attribute values
//
// Components that only need a *slog.Logger receive Logger.Slog(), which
// shares the handler and the runtime-adjustable level.
package logger
