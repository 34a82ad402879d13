package util

import (
	"net/url"
	"strings"
)

// ResolveURL resolves ref against base. Protocol relative references get https.
func ResolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}

	b, err := url.Parse(base)
	if err != nil {
		if strings.HasPrefix(ref, "/") {
			return strings.TrimSuffix(base, "/") + ref
		}
		return strings.TrimSuffix(base, "/") + "/" + ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// Origin returns scheme://host of rawURL, or "" when it does not parse
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Host returns the lowercased host of rawURL without port
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// HostMatches reports whether rawURL's host is one of domains or a subdomain of one
func HostMatches(rawURL string, domains ...string) bool {
	host := Host(rawURL)
	if host == "" {
		return false
	}
	for _, d := range domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// LastPathSegment returns the last non-empty path segment of rawURL
func LastPathSegment(rawURL string) string {
	clean := strings.TrimSuffix(rawURL, "/")
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	parts := strings.Split(strings.TrimSuffix(clean, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// QueryParam returns the value of key in rawURL's query string
func QueryParam(rawURL, key string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(key)
}
