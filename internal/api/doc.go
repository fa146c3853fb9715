// Package api serves the JSON HTTP API: automation rule CRUD and
// dry-runs, cold email review, sender categories, the reply tracker
// view, newsletter management and calendar event suggestions.
//
// Every route under /api/ requires a bearer token that maps to an
// account; handlers operate on that account only.
package api
