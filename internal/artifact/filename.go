package artifact

import (
	"net/url"
	"strings"
)

// BaseName reduces a stored download path or file URI to its file name.
// Both slash styles are treated as separators so Windows profiles analysed
// on other systems still yield a bare name.
func BaseName(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}

	if strings.HasPrefix(strings.ToLower(p), "file://") {
		p = p[len("file://"):]
		if unescaped, err := url.PathUnescape(p); err == nil {
			p = unescaped
		}
	}

	p = strings.TrimRight(p, `/\`)
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		p = p[i+1:]
	}
	return p
}
