// keys.go — Bidirectional mapping between storage keys and URLs, plus the
// absolute-URL resolver used by manifest rewriting.
//
// String manipulation is preferred over url.ResolveReference where possible:
// Go's resolver re-encodes special characters, which breaks CDNs that use
// parentheses or brackets in segment names.
package video

import (
	"net/url"
	"strings"
)

// AssetURL maps a bare storage key to its CDN-qualified URL. Absolute inputs
// pass through unchanged.
func (r *Resolver) AssetURL(key string) string {
	return r.cdn.VideoURL(key)
}

// ExtractVideoKey reverse-maps any video URL form back to its logical
// storage key. Total: malformed input comes back unchanged (minus leading
// slash) rather than erroring.
//
// Handled forms:
//   - proxy URLs: the url query parameter is unwrapped, recursively
//   - S3-style URLs: the bucket segment is dropped from path-style URLs
//   - CDN URLs: the configured video path prefix is stripped
//   - bare keys: returned as-is
func (r *Resolver) ExtractVideoKey(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	// Unwrap proxy URLs: the target lives in the url query parameter.
	if r.IsProxied(raw) {
		u, err := url.Parse(raw)
		if err != nil {
			return strings.TrimPrefix(raw, "/")
		}
		inner := u.Query().Get("url")
		if inner == "" || inner == raw {
			return ""
		}
		return r.ExtractVideoKey(inner)
	}

	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return strings.TrimPrefix(raw, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimPrefix(raw, "/")
	}

	key := strings.TrimPrefix(u.Path, "/")

	if isS3Host(u.Host) {
		// Path-style S3 URLs carry the bucket as the first path segment.
		if strings.HasPrefix(u.Host, "s3.") || strings.HasPrefix(u.Host, "s3-") {
			if idx := strings.Index(key, "/"); idx >= 0 {
				key = key[idx+1:]
			}
		}
		return key
	}

	// CDN URLs: strip the configured video path prefix segment.
	if vp := strings.Trim(r.cfg.ActiveCDN().VideoPath, "/"); vp != "" {
		key = strings.TrimPrefix(key, vp+"/")
	}
	return key
}

// isS3Host reports whether host is an S3 endpoint, virtual-hosted or
// path-style.
func isS3Host(host string) bool {
	return strings.Contains(host, ".s3.") ||
		strings.Contains(host, ".s3-") ||
		strings.HasPrefix(host, "s3.") ||
		strings.HasPrefix(host, "s3-") ||
		strings.HasSuffix(host, ".amazonaws.com")
}

// MakeAbsoluteURL resolves a manifest reference against the manifest's own
// URL. Already-absolute references pass through; root-relative references
// join the base's scheme and host; anything else resolves relative to the
// base's directory. Never panics — on failure the original reference is
// returned unchanged.
func MakeAbsoluteURL(ref, baseURL string) string {
	if ref == "" {
		return ref
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}

	if strings.HasPrefix(ref, "/") {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return ref
		}
		return parsed.Scheme + "://" + parsed.Host + ref
	}

	base := baseDirectory(baseURL)
	if base == "" {
		return ref
	}

	// Collapse parent-directory references against the base directory.
	remaining := ref
	for strings.HasPrefix(remaining, "../") {
		remaining = remaining[3:]
		trimmed := strings.TrimSuffix(base, "/")
		idx := strings.LastIndex(trimmed, "/")
		if idx < pathStart(trimmed) {
			break
		}
		base = trimmed[:idx+1]
	}
	remaining = strings.TrimPrefix(remaining, "./")

	return base + remaining
}

// baseDirectory returns the directory portion of a URL (without query string
// or filename), preserving the original encoding.
func baseDirectory(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return ""
	}
	base := rawURL
	if idx := strings.Index(base, "?"); idx > 0 {
		base = base[:idx]
	}
	if idx := strings.LastIndex(base, "/"); idx >= pathStart(base) {
		return base[:idx+1]
	}
	if strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://") {
		return strings.TrimSuffix(base, "/") + "/"
	}
	return ""
}

// pathStart returns the index of the slash that begins the URL path, i.e.
// the first slash after scheme://host. Slashes at or before this index
// belong to the authority, not the path.
func pathStart(rawURL string) int {
	idx := strings.Index(rawURL, "://")
	if idx < 0 {
		return -1
	}
	rest := rawURL[idx+3:]
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return len(rawURL)
	}
	return idx + 3 + slash
}
