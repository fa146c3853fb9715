// Package eventdetect turns emails that propose meetings into calendar
// event suggestions. The model extracts an event candidate from the
// message; the detector checks the proposed window against the
// account's free/busy data and, on conflict, attaches scored
// alternative slots. Suggestions are persisted and stay pending until
// the user confirms (creating the calendar event) or dismisses them.
package eventdetect
