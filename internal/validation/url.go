// Package validation checks operator-supplied values before the server
// starts using them.
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// URLError names the setting that holds a bad URL.
type URLError struct {
	Field   string
	Message string
	URL     string
}

func (e URLError) Error() string {
	return fmt.Sprintf("%s: %s (url: %s)", e.Field, e.Message, e.URL)
}

// ServiceURL validates the base URL of a remote directory service. A path
// prefix is allowed; query strings and fragments are not, since request
// paths are appended to it. requireHTTPS rejects plain http.
func ServiceURL(raw, field string, requireHTTPS bool) error {
	if raw == "" {
		return URLError{Field: field, Message: "URL is required", URL: raw}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return URLError{Field: field, Message: "invalid URL format", URL: raw}
	}

	scheme := strings.ToLower(u.Scheme)
	switch {
	case scheme == "":
		return URLError{Field: field, Message: "URL must include a scheme (http:// or https://)", URL: raw}
	case scheme != "http" && scheme != "https":
		return URLError{Field: field, Message: "URL scheme must be http or https", URL: raw}
	case requireHTTPS && scheme != "https":
		return URLError{Field: field, Message: "URL must use HTTPS", URL: raw}
	case u.Host == "":
		return URLError{Field: field, Message: "URL must include a host", URL: raw}
	case u.RawQuery != "" || u.ForceQuery:
		return URLError{Field: field, Message: "URL must not contain query parameters", URL: raw}
	case u.Fragment != "":
		return URLError{Field: field, Message: "URL must not contain a fragment", URL: raw}
	}
	return nil
}
