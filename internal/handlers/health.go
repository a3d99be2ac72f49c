// health.go — GET /healthz.
package handlers

import (
	"net/http"

	"github.com/chartschool/platform/internal/auth"
)

// Health is the response body for GET /healthz.
type Health struct {
	Status   string          `json:"status"`
	Env      string          `json:"env"`
	Provider string          `json:"provider"`
	Features map[string]bool `json:"features"`
}

// HandleHealth reports liveness plus which optional subsystems are wired.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	auth.WriteJSON(w, http.StatusOK, Health{
		Status:   "ok",
		Env:      string(h.cfg.Environment),
		Provider: string(h.cdn.CurrentProvider()),
		Features: map[string]bool{
			"signed_urls":   h.cfg.ActiveCDN().SupportsSigning && h.cfg.ActiveCDN().AuthKey != "",
			"durable_chat":  h.convs != nil,
			"guest_chat":    h.guests != nil,
			"rate_limiting": h.limiter != nil && h.limiter.Enabled(),
		},
	})
}
