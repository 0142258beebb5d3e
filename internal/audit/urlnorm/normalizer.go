package urlnorm

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// NormalizeTarget converts a user-supplied target into an absolute URL.
// A missing scheme defaults to https.
func NormalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("invalid URL: empty")
	}

	// Handle URLs without scheme by prepending https://
	if !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "//") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid URL: unsupported scheme '%s'", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid URL: missing host")
	}

	// Host should contain at least one dot (for domain.tld) OR be localhost.
	// Use Hostname() to strip port for validation.
	hostname := u.Hostname()
	if !strings.Contains(hostname, ".") && hostname != "localhost" {
		return "", fmt.Errorf("invalid URL: invalid host '%s'", u.Host)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Host = strings.TrimSuffix(u.Host, ".")

	// Remove default ports
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}

	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// CanonicalKey derives the cache key for a target: scheme and lowercased host,
// path with trailing slashes collapsed, query and fragment dropped. Idempotent.
func CanonicalKey(raw string) (string, error) {
	normalized, err := NormalizeTarget(raw)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	u.RawQuery = ""
	u.Fragment = ""
	u.Path = trimTrailingSlashes(u.Path)
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// KeyHash generates the XXHash64 hex digest of a canonical key.
func KeyHash(key string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

// Equivalent reports whether two absolute URLs refer to the same page for
// canonical-tag purposes: query, fragment, trailing slash, and host case are
// ignored.
func Equivalent(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(strings.TrimSuffix(a, "/"), strings.TrimSuffix(b, "/"))
	}

	pathA := trimTrailingSlashes(ua.Path)
	pathB := trimTrailingSlashes(ub.Path)

	return strings.EqualFold(ua.Scheme, ub.Scheme) &&
		strings.EqualFold(ua.Host, ub.Host) &&
		pathA == pathB
}

// FlipWWWHost toggles the "www." prefix on a host, preserving any port.
func FlipWWWHost(host string) string {
	h := host
	port := ""
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i:], "]") {
		h = host[:i]
		port = host[i:]
	}

	if strings.HasPrefix(strings.ToLower(h), "www.") {
		return h[4:] + port
	}
	return "www." + h + port
}

func trimTrailingSlashes(path string) string {
	for strings.HasSuffix(path, "/") && len(path) > 0 {
		path = path[:len(path)-1]
	}
	return path
}
