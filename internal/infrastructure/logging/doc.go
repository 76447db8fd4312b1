// Package logging provides structured logging for focuserd.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the daemon and its CLI.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("channel moved", "channel", "tube", "position", 12.5)
//	logger.Error("homing failed", "error", err)
//
// Routine contention (Blocked) and policy rejections are logged at debug
// level only; operational failures are logged at error level.
package logging
