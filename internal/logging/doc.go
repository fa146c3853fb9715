// Package logging provides structured logging helpers built on log/slog.
//
// It defines the shared attribute keys used across the codebase so log
// entries stay consistent and queryable, plus helpers for anonymizing
// account and sender email addresses before they reach log output.
//
// Account and sender addresses are PII: always log them through
// UserHash or Sender, never raw.
package logging
