// Package rules implements the automation rules engine: condition
// matching against parsed messages, rule selection (static conditions
// locally, AI conditions through one batched model call), and action
// execution through the Gmail client.
//
// Rules are persisted as opaque JSON documents in the store; this
// package owns their shape. Every rule run is recorded in
// executed_rules: automated rules record "applied" after their actions
// run, non-automated rules record "pending" until confirmed through the
// API.
package rules
