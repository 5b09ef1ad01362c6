package spclient

import (
	"net/url"
	"strings"
)

// siteEndpoint appends a site relative path to siteURL; it falls back to plain
// concatenation when siteURL does not parse.
func siteEndpoint(siteURL, rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if u, err := url.JoinPath(siteURL, rel); err == nil {
		return u
	}
	return strings.TrimSuffix(siteURL, "/") + "/" + rel
}

// firstNonEmpty returns the first value that is not blank
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
