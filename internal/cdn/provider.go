// Package cdn provides the CDN-provider abstraction for ChartSchool video
// delivery. Each supported provider (CloudFront, BunnyCDN, Cloudflare)
// implements the same capability set: build a playable URL, build a signed
// URL, build a thumbnail URL, and report its signing support and
// configuration. A Service facade selects exactly one provider at startup
// and delegates every call to it, so the rest of the gateway never touches
// a concrete provider type.
package cdn

import (
	"context"
	"strings"
	"time"

	"github.com/chartschool/platform/internal/config"
)

// DefaultSignedURLTTL is the default lifetime for signed video URLs.
const DefaultSignedURLTTL = time.Hour

// Provider is the uniform capability set every CDN adapter implements.
// All URL builders are pure and deterministic except SignedURL, which takes
// a context to accommodate remote-signing providers.
type Provider interface {
	// VideoURL returns the playable URL for a storage key or path. Inputs
	// that are already absolute URLs are returned unchanged.
	VideoURL(path string) string

	// SignedURL returns a time-limited URL for the given path. Providers
	// without signing support degrade to VideoURL.
	SignedURL(ctx context.Context, path string, expiresIn time.Duration) (string, error)

	// ThumbnailURL returns the thumbnail URL following the provider's path
	// convention.
	ThumbnailURL(path string) string

	// SupportsSignedURLs reports whether this provider can issue signed URLs.
	SupportsSignedURLs() bool

	// Headers returns extra request headers the player must send.
	Headers() map[string]string

	// Domain returns the configured CDN host.
	Domain() string
}

// NewProvider returns the adapter for the given provider enum. Unrecognized
// values fall back to CloudFront. Selection happens exactly once at startup;
// never inspect the concrete type at runtime.
func NewProvider(name config.CDNProvider, cfg config.CDNConfig) Provider {
	switch name {
	case config.ProviderBunnyCDN:
		return NewBunnyCDN(cfg)
	case config.ProviderCloudflare:
		return NewCloudflare(cfg)
	default:
		return NewCloudFront(cfg)
	}
}

// isAbsoluteURL reports whether s is already a fully-qualified URL.
func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// joinBase builds protocol://domain/[videoPath/]path with no duplicate
// slashes. path may carry a leading slash; videoPath may be empty.
func joinBase(cfg config.CDNConfig, path string) string {
	p := strings.TrimPrefix(path, "/")
	base := cfg.Protocol + "://" + cfg.Domain
	if vp := strings.Trim(cfg.VideoPath, "/"); vp != "" {
		return base + "/" + vp + "/" + p
	}
	return base + "/" + p
}
