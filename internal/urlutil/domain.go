package urlutil

import (
	"net/url"
	"strings"
)

// Domain returns the authority of rawURL, lowercased and without a leading
// "www." label. It returns "" for empty input, unparseable authorities, and
// URLs without an authority. The empty string is a valid "no domain" key.
func Domain(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	var host string
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	} else {
		// A bad escape in the path or query fails the whole parse; the
		// authority alone may still be valid.
		host = authority(rawURL)
	}

	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// authority re-parses only the scheme and authority of rawURL.
func authority(rawURL string) string {
	i := strings.Index(rawURL, "://")
	if i <= 0 {
		return ""
	}
	rest := rawURL[i+3:]
	if end := strings.IndexAny(rest, "/?#"); end >= 0 {
		rest = rest[:end]
	}
	u, err := url.Parse(rawURL[:i+3] + rest)
	if err != nil {
		return ""
	}
	return u.Host
}
