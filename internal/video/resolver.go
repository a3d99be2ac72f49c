// Package video resolves raw video references (bare storage keys, CDN URLs,
// proxy URLs, S3-style URLs) into final playable URLs, and rewrites HLS
// manifests so every segment and nested playlist resolves through the same
// policy.
//
// The proxy decision exists because some deployments serve the web app from
// a subdomain whose CDN responses lack usable CORS headers. In those
// environments every video request is routed through the gateway's
// same-origin proxy endpoint. The canonical production host has correct CDN
// CORS configuration and never proxies.
package video

import (
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chartschool/platform/internal/cdn"
	"github.com/chartschool/platform/internal/config"
)

// Options carries per-call overrides for the proxy decision. Explicit
// overrides always win over the hostname heuristics.
type Options struct {
	// ForceDirect skips the proxy regardless of environment or hostname.
	ForceDirect bool
	// UseProxy, when non-nil, forces the proxy decision either way.
	UseProxy *bool
}

// Resolver applies the CDN facade and the deployment's proxy policy to turn
// any video reference into a playable URL. All methods are pure over their
// inputs; safe for concurrent use.
type Resolver struct {
	cdn *cdn.Service
	cfg *config.Config
	log *logrus.Entry
}

// NewResolver returns a Resolver bound to the given CDN facade and config.
func NewResolver(cdnSvc *cdn.Service, cfg *config.Config, log *logrus.Entry) *Resolver {
	return &Resolver{cdn: cdnSvc, cfg: cfg, log: log}
}

// Resolve returns the final playable URL for a raw video reference.
//
// Decision order:
//  1. Empty input resolves to the empty string (no playable source).
//  2. An already-proxied URL is returned unchanged (idempotence).
//  3. The reference is made absolute via the CDN facade, then the proxy
//     decision runs: explicit overrides > forced proxy hostname > forbidden
//     production hostname > CORS-safe storage prefix > environment default.
//  4. Proxying wraps the absolute URL as the url query parameter of the
//     same-origin proxy endpoint; otherwise the absolute URL is returned.
func (r *Resolver) Resolve(raw string, opts Options) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	if r.IsProxied(raw) {
		return raw
	}

	abs := r.cdn.VideoURL(raw)
	if abs == "" {
		return ""
	}

	if r.shouldUseProxy(abs, opts) {
		return r.ProxyURL(abs)
	}
	return abs
}

// ProxyURL wraps an absolute URL as a same-origin proxy reference.
func (r *Resolver) ProxyURL(absolute string) string {
	return r.cfg.ProxyPath + "?url=" + url.QueryEscape(absolute)
}

// IsProxied reports whether s already points at the gateway's proxy endpoint,
// either as a bare path or a fully-qualified same-origin URL.
func (r *Resolver) IsProxied(s string) bool {
	if strings.HasPrefix(s, r.cfg.ProxyPath) {
		return true
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Path == r.cfg.ProxyPath
}

// shouldUseProxy evaluates the documented precedence for an absolute URL.
func (r *Resolver) shouldUseProxy(absolute string, opts Options) bool {
	// Explicit per-call overrides win over every heuristic.
	if opts.ForceDirect {
		return false
	}
	if opts.UseProxy != nil {
		return *opts.UseProxy
	}

	// The CORS-limited deployment subdomain must always proxy.
	if r.cfg.DeployHost == r.cfg.ForceProxyHost {
		return true
	}
	// The canonical production host never proxies.
	if r.cfg.DeployHost == r.cfg.DirectHost {
		return false
	}

	// Keys under the CORS-safe storage prefix already carry correct headers.
	if r.cfg.CORSSafePrefix != "" {
		if key := r.ExtractVideoKey(absolute); key != "" && strings.HasPrefix(key, r.cfg.CORSSafePrefix) {
			return false
		}
	}

	// Default: proxy everywhere except production.
	return !r.cfg.IsProduction()
}
