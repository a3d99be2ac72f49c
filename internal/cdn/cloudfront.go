// cloudfront.go — CloudFront adapter. The default provider.
//
// CloudFront distributions here are public (no key-pair signing configured),
// so SignedURL degrades to the unsigned URL. Thumbnails map 1:1 to the key.
package cdn

import (
	"context"
	"time"

	"github.com/chartschool/platform/internal/config"
)

// CloudFront serves assets from an AWS CloudFront distribution.
type CloudFront struct {
	cfg config.CDNConfig
}

// NewCloudFront returns a CloudFront adapter for the given configuration.
func NewCloudFront(cfg config.CDNConfig) *CloudFront {
	return &CloudFront{cfg: cfg}
}

func (c *CloudFront) VideoURL(path string) string {
	if path == "" {
		return ""
	}
	if isAbsoluteURL(path) {
		return path
	}
	return joinBase(c.cfg, path)
}

// SignedURL degrades to the unsigned URL — signing is not configured for
// CloudFront distributions.
func (c *CloudFront) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return c.VideoURL(path), nil
}

func (c *CloudFront) ThumbnailURL(path string) string {
	return c.VideoURL(path)
}

func (c *CloudFront) SupportsSignedURLs() bool { return c.cfg.SupportsSigning }

func (c *CloudFront) Headers() map[string]string { return c.cfg.Headers }

func (c *CloudFront) Domain() string { return c.cfg.Domain }

var _ Provider = (*CloudFront)(nil)
