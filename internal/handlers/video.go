// video.go — Video URL resolution endpoints.
//
// The player never computes CDN URLs itself: it asks the gateway to resolve
// a raw source (storage key or URL) into a playable URL, a signed URL, or a
// thumbnail URL for the active CDN provider.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/chartschool/platform/internal/auth"
	"github.com/chartschool/platform/internal/cdn"
	"github.com/chartschool/platform/internal/ratelimit"
	"github.com/chartschool/platform/internal/validate"
	"github.com/chartschool/platform/internal/video"
)

// maxSourceLength bounds the src/key query params.
const maxSourceLength = 2048

// ResolveResponse is the body for GET /api/video/resolve.
type ResolveResponse struct {
	URL      string            `json:"url"`
	Proxied  bool              `json:"proxied"`
	Provider string            `json:"provider"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// HandleResolve resolves a raw video source into a playable URL.
//
//	GET /api/video/resolve?src=...&direct=1&proxy=0
//
// direct forces a CDN-direct URL; proxy forces/forbids the same-origin
// proxy. Without overrides the deployment policy decides.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	if !h.allowResolve(w, r) {
		return
	}

	src := r.URL.Query().Get("src")
	var errs validate.MultiError
	errs.Add(validate.NonEmptyString("src", src))
	errs.Add(validate.MaxLength("src", src, maxSourceLength))
	if errs.HasErrors() {
		auth.WriteError(w, http.StatusBadRequest, "invalid_request", errs.Error())
		return
	}

	opts := video.Options{ForceDirect: queryFlag(r, "direct")}
	if v := r.URL.Query().Get("proxy"); v != "" {
		b := v == "1" || v == "true"
		opts.UseProxy = &b
	}

	resolved := h.resolver.Resolve(src, opts)
	auth.WriteJSON(w, http.StatusOK, ResolveResponse{
		URL:      resolved,
		Proxied:  h.resolver.IsProxied(resolved),
		Provider: string(h.cdn.CurrentProvider()),
		Headers:  h.cdn.Headers(),
	})
}

// SignResponse is the body for GET /api/video/sign.
type SignResponse struct {
	URL       string `json:"url"`
	Signed    bool   `json:"signed"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

// HandleSign returns a time-limited URL for a video key.
//
//	GET /api/video/sign?key=lessons/1/index.m3u8&ttl=3600
//
// Providers without signing support fall back to the plain URL — the
// response says so rather than erroring.
func (h *Handlers) HandleSign(w http.ResponseWriter, r *http.Request) {
	if !h.allowResolve(w, r) {
		return
	}

	key := r.URL.Query().Get("key")
	var errs validate.MultiError
	errs.Add(validate.NonEmptyString("key", key))
	errs.Add(validate.MaxLength("key", key, maxSourceLength))
	errs.Add(validate.NoPathTraversal("key", key))
	if errs.HasErrors() {
		auth.WriteError(w, http.StatusBadRequest, "invalid_request", errs.Error())
		return
	}

	ttl := cdn.DefaultSignedURLTTL
	if v := r.URL.Query().Get("ttl"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || validate.IntInRange("ttl", secs, 60, 86400) != nil {
			auth.WriteError(w, http.StatusBadRequest, "invalid_request", "ttl: must be between 60 and 86400 seconds")
			return
		}
		ttl = time.Duration(secs) * time.Second
	}

	signed, err := h.cdn.SignedURL(r.Context(), key, ttl)
	if err != nil {
		// Signing degrades to the unsigned URL, never blocks playback.
		h.log.WithError(err).Warn("signed URL generation failed")
		auth.WriteJSON(w, http.StatusOK, SignResponse{URL: h.cdn.VideoURL(key), Signed: false})
		return
	}

	resp := SignResponse{URL: signed, Signed: signed != h.cdn.VideoURL(key)}
	if resp.Signed {
		resp.ExpiresAt = time.Now().Add(ttl).Unix()
	}
	auth.WriteJSON(w, http.StatusOK, resp)
}

// ThumbnailResponse is the body for GET /api/video/thumbnail.
type ThumbnailResponse struct {
	URL string `json:"url"`
}

// HandleThumbnail returns the poster-frame URL for a video key.
//
//	GET /api/video/thumbnail?key=lessons/1/index.m3u8
func (h *Handlers) HandleThumbnail(w http.ResponseWriter, r *http.Request) {
	if !h.allowResolve(w, r) {
		return
	}

	key := r.URL.Query().Get("key")
	var errs validate.MultiError
	errs.Add(validate.NonEmptyString("key", key))
	errs.Add(validate.MaxLength("key", key, maxSourceLength))
	errs.Add(validate.NoPathTraversal("key", key))
	if errs.HasErrors() {
		auth.WriteError(w, http.StatusBadRequest, "invalid_request", errs.Error())
		return
	}

	auth.WriteJSON(w, http.StatusOK, ThumbnailResponse{URL: h.cdn.ThumbnailURL(key)})
}

// allowResolve applies the per-IP resolve limit. Returns false after writing
// the 429 response.
func (h *Handlers) allowResolve(w http.ResponseWriter, r *http.Request) bool {
	if h.limiter == nil {
		return true
	}
	ok, retry := h.limiter.CheckResolve(r.Context(), ratelimit.ClientIP(r))
	if !ok {
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		auth.WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests. Please wait before retrying.")
		return false
	}
	return true
}

// queryFlag reads a boolean query parameter ("1" or "true").
func queryFlag(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	return v == "1" || v == "true"
}
