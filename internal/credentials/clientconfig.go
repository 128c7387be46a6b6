package credentials

import (
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// CalendarReadonlyScope is the only scope nextup asks for.
const CalendarReadonlyScope = "https://www.googleapis.com/auth/calendar.readonly"

// DefaultScopes are the scopes requested when none are configured.
var DefaultScopes = []string{CalendarReadonlyScope}

// ClientConfigSource produces the OAuth2 client configuration for the given
// scopes. It is only consulted when the token endpoint must be contacted.
type ClientConfigSource func(scopes []string) (*oauth2.Config, error)

// LoadClientConfig reads a Google client secret file ("installed" or "web"
// application) and returns the OAuth2 configuration for scopes.
func LoadClientConfig(path string, scopes []string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret file: %w", err)
	}

	conf, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret file %s: %w", path, err)
	}

	return conf, nil
}

// ClientConfigFromFile returns a ClientConfigSource reading path on every call.
func ClientConfigFromFile(path string) ClientConfigSource {
	return func(scopes []string) (*oauth2.Config, error) {
		return LoadClientConfig(path, scopes)
	}
}
