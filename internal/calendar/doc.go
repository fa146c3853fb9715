// Package calendar provides a client for the Google Calendar API.
//
// It covers the operations event detection needs: free/busy queries to
// find conflicts, event creation for confirmed suggestions, and
// calendar metadata (primary calendar, timezone).
//
// A client is bound to a single account; authentication happens outside
// this package through an OAuth2-aware HTTP client (see the google
// package).
package calendar
