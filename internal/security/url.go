// Package security validates user-supplied values that end up in notebooks
// or share links.
package security

import (
	"fmt"
	"net/url"
	"strings"
)

// parseHTTPURL parses an absolute http or https URL with a host.
func parseHTTPURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	// Only allow http and https schemes
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("URL must have a host")
	}
	return parsed, nil
}

// ValidateDatasourceURL checks a datasource URL before it is written into a
// notebook. Viewers fetch datasources themselves, so local and private hosts
// are allowed, but credentials would leak with every shared copy.
func ValidateDatasourceURL(rawURL string) error {
	parsed, err := parseHTTPURL(rawURL)
	if err != nil {
		return err
	}
	if parsed.User != nil {
		return fmt.Errorf("datasource URL must not contain credentials")
	}
	return nil
}

// ValidateHomepage checks the base of share links, which get "?id=<id>"
// appended.
func ValidateHomepage(rawURL string) error {
	parsed, err := parseHTTPURL(rawURL)
	if err != nil {
		return err
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return fmt.Errorf("homepage must not have a query or fragment")
	}
	return nil
}
