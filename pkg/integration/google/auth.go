// Package google builds credentials for the Gmail, Calendar and Drive clients.
package google

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// Scopes used by the integrations.
const (
	ScopeGmail    = "https://www.googleapis.com/auth/gmail.modify"
	ScopeCalendar = "https://www.googleapis.com/auth/calendar.events"
	ScopeDrive    = "https://www.googleapis.com/auth/drive"
)

// NewHTTPClient creates an HTTP client authenticated with a service account
// key file. A non-empty subject impersonates that user through domain-wide
// delegation, which Gmail needs to read a household mailbox.
func NewHTTPClient(ctx context.Context, credentialsFile, subject string, scopes ...string) (*http.Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	conf, err := google.JWTConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	conf.Subject = subject

	return conf.Client(ctx), nil
}

// ClientOptions returns the options for a Google API service constructor.
func ClientOptions(credentialsFile string, scopes ...string) []option.ClientOption {
	opts := []option.ClientOption{option.WithCredentialsFile(credentialsFile)}
	if len(scopes) > 0 {
		opts = append(opts, option.WithScopes(scopes...))
	}
	return opts
}
