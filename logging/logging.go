// Package logging provides structured logging for the financial data agent.
//
// It wraps go.uber.org/zap with:
//   - file rotation via lumberjack (file_writer.go)
//   - a tee core writing to both console and file (multi_core.go)
//   - automatic redaction of tokens, API keys, and subject phone numbers
//     (redact.go)
package logging
