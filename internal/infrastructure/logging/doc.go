// Package logging provides structured logging using uber/zap.
//
// Two encodings are supported:
//   - Production: JSON output for machine parsing
//   - Development: console output for human readability
//
// The native host binary writes its log to a file because the controlling
// terminal belongs to the embedded session; the sidecar logs to stderr.
//
// Example Usage:
//
//	logger := logging.NewOrNop(logging.DefaultConfig())
//	defer logger.Close()
//	logger.Info("session started", zap.String("session_id", id))
package logging
