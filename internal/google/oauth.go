package google

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	gmail "google.golang.org/api/gmail/v1"
	people "google.golang.org/api/people/v1"
)

// Scopes required by the service: full Gmail access (read, modify,
// send, settings), full Calendar access (event CRUD, free/busy) and
// read-only contact search for the known-sender check.
var Scopes = []string{
	gmail.MailGoogleComScope,
	"https://www.googleapis.com/auth/gmail.settings.basic",
	calendar.CalendarScope,
	people.ContactsReadonlyScope,
	people.ContactsOtherReadonlyScope,
}

// OAuthConfig builds the OAuth2 configuration from the application's
// client credentials. Offline access is requested so refresh tokens
// can be stored and reused by the watcher.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     googleoauth.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
	}
}

// HTTPClient returns an HTTP client that authenticates requests with
// the account's token, refreshing it through the token source as
// needed. HTTP/1.1 is forced; the Google API endpoints intermittently
// reset HTTP/2 streams under token refresh.
func HTTPClient(ctx context.Context, conf *oauth2.Config, token *oauth2.Token) *http.Client {
	client := oauth2.NewClient(ctx, conf.TokenSource(ctx, token))
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{ForceAttemptHTTP2: false}
	}
	return client
}
