// Package newsletter tracks newsletter senders and the user's decision
// about each: keep receiving (approved), unsubscribe, or auto-archive
// future issues. Unsubscribe links are harvested from List-Unsubscribe
// headers as messages flow through the pipeline, so a one-click
// unsubscribe is possible later even when the latest issue lacks the
// header.
package newsletter
