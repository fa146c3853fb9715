// Package schedule implements the time-slot suggestion engine used when
// an email proposes a meeting that conflicts with the calendar.
//
// The package is pure: it operates on busy ranges that the caller has
// already fetched (typically from a free/busy query) and never performs
// API calls itself. Conflict detection merges busy ranges, candidate
// slots are generated over a bounded horizon within working hours, and
// each non-conflicting slot receives a linear score favoring times close
// to the originally requested one.
package schedule
