// Package logging provides structured logging for the wiwo tools.
//
// This package wraps zap with convenience functions for the logging
// patterns used throughout the module. Logging is silent unless asked
// for: library callers and CLI users see nothing until WIWO_LOG_LEVEL
// is set or a command passes an explicit level.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (datagram hex dumps, frame parsing)
//   - Info: Normal operations (scans, state changes, subscriptions)
//   - Warn: Non-fatal issues (ignored datagrams, best-effort failures)
//   - Error: Fatal issues (bind failures, emulator startup errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("device discovered",
//	    zap.String("ip", "192.168.1.45"),
//	    zap.String("mac", "ac:df:23:8d:1d:2e"),
//	    zap.String("model", "SOC008"),
//	)
//
// # Datagram Logging
//
// Protocol work lives and dies by byte-level visibility:
//
//	logging.LogDatagram("send", addr.String(), frame)
//	logging.LogDatagram("recv", src.String(), buf)
//
// Dumps are truncated at 256 bytes.
//
// # Configuration
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// # Output Format
//
// Logs are written to stderr in console format so they never mix with
// command output on stdout:
//
//	2025-11-25T10:30:45.123-0800  DEBUG  datagram
//	  direction=recv
//	  addr=192.168.1.45:10000
//	  length=42
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
