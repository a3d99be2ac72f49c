// service.go — CDN facade. Holds exactly one active provider, selected at
// construction from configuration. Callers depend only on this type; the
// concrete provider never leaks.
package cdn

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chartschool/platform/internal/config"
)

// Service is the single stable facade over the active CDN provider.
// Construct once in main and inject it; safe for concurrent use.
type Service struct {
	provider Provider
	name     config.CDNProvider
}

// NewService selects the provider named by cfg.Provider and wraps it.
// Unknown provider values fall back to CloudFront.
func NewService(cfg *config.Config, log *logrus.Entry) *Service {
	var p Provider
	switch cfg.Provider {
	case config.ProviderBunnyCDN:
		p = NewBunnyCDNWithLogger(cfg.Bunny, log)
	case config.ProviderCloudflare:
		p = NewCloudflare(cfg.Cloudflare)
	default:
		p = NewCloudFront(cfg.CloudFront)
	}
	if log != nil {
		log.WithFields(logrus.Fields{
			"provider": string(cfg.Provider),
			"domain":   p.Domain(),
			"signing":  p.SupportsSignedURLs(),
		}).Info("cdn provider selected")
	}
	return &Service{provider: p, name: cfg.Provider}
}

// VideoURL delegates to the active provider.
func (s *Service) VideoURL(path string) string {
	return s.provider.VideoURL(path)
}

// SignedURL delegates only when the active provider supports signing;
// otherwise it falls back to the unsigned URL. Callers must treat the
// signed-URL contract as best-effort — a token may not be present.
func (s *Service) SignedURL(ctx context.Context, path string, expiresIn time.Duration) (string, error) {
	if !s.provider.SupportsSignedURLs() {
		return s.provider.VideoURL(path), nil
	}
	return s.provider.SignedURL(ctx, path, expiresIn)
}

// ThumbnailURL delegates to the active provider.
func (s *Service) ThumbnailURL(path string) string {
	return s.provider.ThumbnailURL(path)
}

// CurrentProvider returns the configured provider enum.
func (s *Service) CurrentProvider() config.CDNProvider { return s.name }

// Headers delegates to the active provider.
func (s *Service) Headers() map[string]string { return s.provider.Headers() }

// Domain delegates to the active provider.
func (s *Service) Domain() string { return s.provider.Domain() }
