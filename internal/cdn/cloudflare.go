// cloudflare.go — Cloudflare Stream adapter.
//
// Thumbnails follow the Stream path convention: the key minus its extension,
// plus a fixed /thumbnails/thumbnail.jpg suffix.
package cdn

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/chartschool/platform/internal/config"
)

// Cloudflare serves assets from Cloudflare Stream.
type Cloudflare struct {
	cfg config.CDNConfig
}

// NewCloudflare returns a Cloudflare adapter for the given configuration.
func NewCloudflare(cfg config.CDNConfig) *Cloudflare {
	return &Cloudflare{cfg: cfg}
}

func (c *Cloudflare) VideoURL(p string) string {
	if p == "" {
		return ""
	}
	if isAbsoluteURL(p) {
		return p
	}
	return joinBase(c.cfg, p)
}

// SignedURL degrades to the unsigned URL — signed tokens for Stream are
// issued by the backend, not the gateway.
func (c *Cloudflare) SignedURL(_ context.Context, p string, _ time.Duration) (string, error) {
	return c.VideoURL(p), nil
}

// ThumbnailURL maps "courses/intro/1.m3u8" to
// ".../courses/intro/1/thumbnails/thumbnail.jpg".
func (c *Cloudflare) ThumbnailURL(p string) string {
	if p == "" {
		return ""
	}
	base := strings.TrimSuffix(p, path.Ext(p))
	return c.VideoURL(base + "/thumbnails/thumbnail.jpg")
}

func (c *Cloudflare) SupportsSignedURLs() bool { return c.cfg.SupportsSigning }

func (c *Cloudflare) Headers() map[string]string { return c.cfg.Headers }

func (c *Cloudflare) Domain() string { return c.cfg.Domain }

var _ Provider = (*Cloudflare)(nil)
