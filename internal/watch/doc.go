// Package watch runs the periodic inbox watcher: every interval, each
// account's new messages (Gmail history since the stored history ID,
// with a recent-inbox fallback) flow through the automation pipeline:
// rules, cold email check, sender categorization, newsletter handling,
// reply tracking and event detection. Failures are logged per account
// and per message; one bad account or message never stops the loop.
package watch
