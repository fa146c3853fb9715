// Package store persists accounts, automation rules, rule executions,
// sender categories, cold email verdicts, reply trackers, tracked
// calendar events and newsletter statuses in SQLite.
//
// Migrations are embedded .sql files applied at open time inside
// transactions and recorded in a schema_migrations table. Rule
// conditions and actions are stored as opaque JSON owned by the rules
// package. OAuth refresh tokens in the accounts table are expected to
// be encrypted by the caller before they reach the store.
package store
