// Package config provides centralized configuration loading for the
// ChartSchool platform gateway.
//
// Everything is read from environment variables once at startup. The resulting
// Config is immutable for the process lifetime and is passed explicitly into
// every collaborator — no package-level singletons.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment represents the gateway deployment environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// CDNProvider identifies which CDN adapter serves video assets.
type CDNProvider string

const (
	ProviderCloudFront CDNProvider = "cloudfront"
	ProviderBunnyCDN   CDNProvider = "bunnycdn"
	ProviderCloudflare CDNProvider = "cloudflare"
)

// CDNConfig holds the per-provider settings for one CDN adapter.
type CDNConfig struct {
	Domain          string            // host serving video assets, e.g. "d1abc.cloudfront.net"
	Protocol        string            // "http" or "https"
	VideoPath       string            // URL prefix segment, e.g. "videos"
	SupportsSigning bool              // whether the provider can issue signed URLs
	Headers         map[string]string // extra request headers the player must send
	AuthKey         string            // BunnyCDN token-auth key (empty disables signing)
}

// Config holds all gateway configuration.
type Config struct {
	// Core
	Environment Environment
	Port        string
	BaseURL     string
	CORSOrigins string // comma-separated allowed browser origins

	// CDN
	Provider   CDNProvider
	CloudFront CDNConfig
	Bunny      CDNConfig
	Cloudflare CDNConfig

	// Video URL resolution policy
	ProxyPath      string // same-origin proxy endpoint, e.g. "/api/video-proxy"
	ForceProxyHost string // deployment hostname where the proxy is always used (CORS-limited subdomain)
	DirectHost     string // canonical production hostname where the proxy is never used
	CORSSafePrefix string // storage key prefix already served with CORS headers
	DeployHost     string // hostname this gateway is deployed behind

	// Chatbot backend
	ChatBackendURL string

	// Storage
	PostgresURL string
	RedisURL    string

	// Stripe (webhook forwarding only)
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeForwardURL    string // backend endpoint receiving verified events (empty: ack only)

	// Auth
	JWTSecret string

	// Telemetry
	SentryDSN string
	LogLevel  string
}

// Load reads configuration from environment variables. Missing values fall
// back to development defaults; values required for the selected provider
// cause Load to return an error when absent.
func Load() (*Config, error) {
	c := &Config{
		Environment: parseEnvironment(getenv("CS_ENV", "development")),
		Port:        getenv("PORT", "8080"),
		BaseURL:     getenv("CS_BASE_URL", "http://localhost:8080"),
		CORSOrigins: getenv("CS_CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"),

		Provider: parseProvider(getenv("CDN_PROVIDER", "cloudfront")),
		CloudFront: CDNConfig{
			Domain:          getenv("CLOUDFRONT_DOMAIN", ""),
			Protocol:        getenv("CLOUDFRONT_PROTOCOL", "https"),
			VideoPath:       getenv("CLOUDFRONT_VIDEO_PATH", ""),
			SupportsSigning: false,
		},
		Bunny: CDNConfig{
			Domain:          getenv("BUNNY_DOMAIN", ""),
			Protocol:        getenv("BUNNY_PROTOCOL", "https"),
			VideoPath:       getenv("BUNNY_VIDEO_PATH", ""),
			SupportsSigning: true,
			AuthKey:         os.Getenv("BUNNY_AUTH_KEY"),
		},
		Cloudflare: CDNConfig{
			Domain:          getenv("CLOUDFLARE_DOMAIN", ""),
			Protocol:        getenv("CLOUDFLARE_PROTOCOL", "https"),
			VideoPath:       getenv("CLOUDFLARE_VIDEO_PATH", ""),
			SupportsSigning: false,
			Headers:         map[string]string{"Accept": "application/vnd.apple.mpegurl"},
		},

		ProxyPath:      getenv("VIDEO_PROXY_PATH", "/api/video-proxy"),
		ForceProxyHost: getenv("VIDEO_FORCE_PROXY_HOST", "app.chartschool.dev"),
		DirectHost:     getenv("VIDEO_DIRECT_HOST", "chartschool.io"),
		CORSSafePrefix: getenv("VIDEO_CORS_SAFE_PREFIX", "public/"),
		DeployHost:     getenv("CS_DEPLOY_HOST", "localhost"),

		ChatBackendURL: getenv("CHAT_BACKEND_URL", "http://localhost:4000"),

		PostgresURL: getenv("POSTGRES_URL", ""),
		RedisURL:    getenv("REDIS_URL", ""),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeForwardURL:    getenv("STRIPE_FORWARD_URL", ""),

		JWTSecret: getenv("AUTH_JWT_SECRET", ""),

		SentryDSN: os.Getenv("SENTRY_DSN"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ActiveCDN returns the CDNConfig for the selected provider.
func (c *Config) ActiveCDN() CDNConfig {
	switch c.Provider {
	case ProviderBunnyCDN:
		return c.Bunny
	case ProviderCloudflare:
		return c.Cloudflare
	default:
		return c.CloudFront
	}
}

// IsProduction reports whether the gateway runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func (c *Config) validate() error {
	active := c.ActiveCDN()
	if active.Domain == "" {
		return fmt.Errorf("config: no CDN domain configured for provider %q", c.Provider)
	}
	if active.Protocol != "http" && active.Protocol != "https" {
		return fmt.Errorf("config: invalid CDN protocol %q for provider %q", active.Protocol, c.Provider)
	}
	if c.Environment == EnvProduction && c.JWTSecret == "" {
		return fmt.Errorf("config: AUTH_JWT_SECRET required in production")
	}
	return nil
}

func parseEnvironment(v string) Environment {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "production", "prod":
		return EnvProduction
	case "staging":
		return EnvStaging
	default:
		return EnvDevelopment
	}
}

// parseProvider maps the CDN_PROVIDER env value to a known provider.
// Unrecognized values fall back to CloudFront.
func parseProvider(v string) CDNProvider {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "bunnycdn", "bunny":
		return ProviderBunnyCDN
	case "cloudflare":
		return ProviderCloudflare
	case "cloudfront":
		return ProviderCloudFront
	default:
		return ProviderCloudFront
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
