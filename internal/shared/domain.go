package shared

import (
	"net/url"
	"strings"
)

// EnsureScheme prefixes bare domains with https://
func EnsureScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	return "https://" + strings.TrimPrefix(raw, "//")
}

// HostOf returns the lower-cased host of raw, which may lack a scheme
func HostOf(raw string) string {
	u, err := url.Parse(EnsureScheme(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// NormalizeDomain reduces a URL or domain to its bare host without a www. prefix
func NormalizeDomain(raw string) string {
	return strings.TrimPrefix(HostOf(raw), "www.")
}

// SameSite reports whether candidate is domain or one of its subdomains
func SameSite(candidate, domain string) bool {
	c := NormalizeDomain(candidate)
	d := NormalizeDomain(domain)
	if c == "" || d == "" {
		return false
	}
	return c == d || strings.HasSuffix(c, "."+d)
}

// MatchesAny reports whether candidate belongs to any of domains
func MatchesAny(candidate string, domains []string) bool {
	for _, d := range domains {
		if SameSite(candidate, d) {
			return true
		}
	}
	return false
}

// ResolveURL resolves ref against base, returning "" when either is invalid
func ResolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	resolved := b.ResolveReference(r)
	resolved.Fragment = ""
	return resolved.String()
}
