// Package uri converts between file paths and the file:// URIs used on
// the wire.
package uri

import (
	"fmt"
	"net/url"
)

// FromPath renders an absolute file path as a file:// URI.
func FromPath(path string) string {
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}

// ToPath extracts the file path from a file:// URI, decoding any percent
// escapes.
func ToPath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing uri %q: %w", raw, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported uri scheme %q", u.Scheme)
	}
	return u.Path, nil
}
