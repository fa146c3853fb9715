// Package gmail provides a client for interacting with the Gmail API.
//
// The client covers the operations the automation engine needs:
//   - Thread and message retrieval with MIME parsing (via enmime)
//   - Inbox mutations (archive, mark read, mark spam, label)
//   - Email composition (send, reply, forward, draft)
//   - Incremental sync through the Gmail history API
//   - List-Unsubscribe detection for newsletter handling
//   - Contact lookup through the People API
//
// A client is bound to a single account; authentication happens outside
// this package through an OAuth2-aware HTTP client (see the google
// package).
//
// Example usage:
//
//	client, err := gmail.New(ctx, httpClient, "jane@example.com")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	msgs, err := client.ListInboxMessages(ctx, 50)
//	if err != nil {
//	    log.Fatal(err)
//	}
package gmail
