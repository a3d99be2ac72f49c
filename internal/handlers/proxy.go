// proxy.go — Same-origin video proxy.
//
// Browsers on CORS-limited deployments cannot fetch the CDN directly, so the
// player requests /api/video-proxy?url=<cdn-url> instead. The gateway fetches
// the object, and for HLS manifests rewrites every media reference so
// segments and sub-playlists flow back through the proxy too. Everything
// else is streamed byte-for-byte.
package handlers

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chartschool/platform/internal/auth"
	"github.com/chartschool/platform/internal/metrics"
	"github.com/chartschool/platform/internal/ratelimit"
	"github.com/chartschool/platform/internal/video"
	"github.com/chartschool/platform/pkg/telemetry"
)

// maxManifestBytes caps how much of a playlist the proxy buffers for
// rewriting. Real-world master and media playlists are a few KB.
const maxManifestBytes = 10 << 20

// HandleProxy streams one upstream CDN object to the client.
//
//	GET /api/video-proxy?url=https://cdn.example.com/videos/lessons/1/index.m3u8
func (h *Handlers) HandleProxy(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil {
		ok, retry := h.limiter.CheckProxyStream(r.Context(), ratelimit.ClientIP(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			auth.WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests. Please wait before retrying.")
			return
		}
	}

	raw := r.URL.Query().Get("url")
	target, err := url.Parse(raw)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		auth.WriteError(w, http.StatusBadRequest, "invalid_request", "url must be a valid http(s) URL")
		return
	}
	// The allowlist is the SSRF guard: only configured CDN hosts are fetched.
	if !h.allowedUpstream(target.Hostname()) {
		auth.WriteError(w, http.StatusForbidden, "forbidden_host", "URL host is not a configured CDN")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, raw, nil)
	if err != nil {
		auth.WriteError(w, http.StatusBadRequest, "invalid_request", "could not build upstream request")
		return
	}
	// Provider-specific headers (e.g. Accept for HLS) plus Range passthrough
	// so seeking works.
	for k, v := range h.cdn.Headers() {
		req.Header.Set(k, v)
	}
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	metrics.ActiveProxyStreams.Inc()
	defer metrics.ActiveProxyStreams.Dec()
	start := time.Now()

	resp, err := h.upstream.Do(req)
	if err != nil {
		h.log.WithError(err).WithField("host", target.Hostname()).Warn("upstream fetch failed")
		telemetry.CaptureError(err, map[string]string{
			"operation": "proxy_fetch",
			"host":      target.Hostname(),
		})
		auth.WriteError(w, http.StatusBadGateway, "upstream_error", "could not fetch media")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		auth.WriteError(w, resp.StatusCode, "upstream_error", http.StatusText(resp.StatusCode))
		return
	}

	if isManifest(target.Path, resp.Header.Get("Content-Type")) {
		h.serveManifest(w, resp, raw)
	} else {
		h.serveStream(w, resp)
	}
	metrics.ProxyFetchDuration.Observe(time.Since(start).Seconds())
}

// serveManifest buffers the playlist, rewrites its references, and sends the
// rewritten text.
func (h *Handlers) serveManifest(w http.ResponseWriter, resp *http.Response, manifestURL string) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		metrics.ManifestRewrites.WithLabelValues("error").Inc()
		auth.WriteError(w, http.StatusBadGateway, "upstream_error", "could not read manifest")
		return
	}

	rewritten := h.resolver.RewriteManifest(string(body), manifestURL, video.Options{})
	outcome := "ok"
	if rewritten == string(body) {
		outcome = "passthrough"
	}
	metrics.ManifestRewrites.WithLabelValues(outcome).Inc()

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(resp.StatusCode)
	io.WriteString(w, rewritten)
}

// serveStream relays a segment or other media object without buffering.
func (h *Handlers) serveStream(w http.ResponseWriter, resp *http.Response) {
	for _, header := range []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges", "Cache-Control"} {
		if v := resp.Header.Get(header); v != "" {
			w.Header().Set(header, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// allowedUpstream reports whether host is one of the configured CDN domains.
// The proxy never fetches arbitrary hosts.
func (h *Handlers) allowedUpstream(host string) bool {
	host = strings.ToLower(host)
	for _, d := range []string{h.cfg.CloudFront.Domain, h.cfg.Bunny.Domain, h.cfg.Cloudflare.Domain} {
		if d != "" && strings.EqualFold(d, host) {
			return true
		}
	}
	return false
}

// isManifest reports whether the object is an HLS playlist.
func isManifest(path, contentType string) bool {
	p := strings.ToLower(path)
	if strings.HasSuffix(p, ".m3u8") || strings.HasSuffix(p, ".m3u") {
		return true
	}
	return strings.Contains(strings.ToLower(contentType), "mpegurl")
}
