// Package handlers provides the gateway's HTTP surface: video URL
// resolution, the same-origin media proxy, the chat gateway, and the Stripe
// webhook forwarder.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chartschool/platform/internal/auth"
	"github.com/chartschool/platform/internal/cdn"
	"github.com/chartschool/platform/internal/chatbot"
	"github.com/chartschool/platform/internal/config"
	"github.com/chartschool/platform/internal/metrics"
	"github.com/chartschool/platform/internal/middleware"
	"github.com/chartschool/platform/internal/ratelimit"
	"github.com/chartschool/platform/internal/store"
	"github.com/chartschool/platform/internal/video"
)

// Handlers bundles the gateway's HTTP handlers and their collaborators.
type Handlers struct {
	cfg      *config.Config
	log      *logrus.Entry
	cdn      *cdn.Service
	resolver *video.Resolver
	chat     *chatbot.Client
	convs    store.ConversationStore
	guests   store.GuestStore
	verifier *auth.Verifier
	limiter  *ratelimit.Limiter
	sessions *SessionRegistry

	// upstream is the HTTP client used by the media proxy.
	upstream *http.Client
}

// New assembles the handler set. limiter may be nil (rate limiting disabled).
func New(
	cfg *config.Config,
	log *logrus.Entry,
	cdnSvc *cdn.Service,
	resolver *video.Resolver,
	chat *chatbot.Client,
	convs store.ConversationStore,
	guests store.GuestStore,
	verifier *auth.Verifier,
	limiter *ratelimit.Limiter,
) *Handlers {
	return &Handlers{
		cfg:      cfg,
		log:      log,
		cdn:      cdnSvc,
		resolver: resolver,
		chat:     chat,
		convs:    convs,
		guests:   guests,
		verifier: verifier,
		limiter:  limiter,
		sessions: NewSessionRegistry(chat, convs, log),
		upstream: &http.Client{Timeout: 30 * time.Second},
	}
}

// Sessions exposes the chat session registry so the server loop can run
// periodic sweeps.
func (h *Handlers) Sessions() *SessionRegistry { return h.sessions }

// Routes registers every gateway route on mux.
func (h *Handlers) Routes(mux *http.ServeMux) {
	guest := middleware.GuestIdentity(h.guests, h.log)

	mux.HandleFunc("GET /healthz", h.HandleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/video/resolve", h.HandleResolve)
	mux.HandleFunc("GET /api/video/sign", h.HandleSign)
	mux.HandleFunc("GET /api/video/thumbnail", h.HandleThumbnail)
	mux.HandleFunc("GET "+h.cfg.ProxyPath, h.HandleProxy)

	mux.HandleFunc("POST /chatbot/message", h.verifier.RequireAuth(http.HandlerFunc(h.HandleSendMessage)))
	mux.Handle("POST /chatbot/public/message", guest(http.HandlerFunc(h.HandleSendMessage)))
	mux.HandleFunc("GET /chatbot/history", h.verifier.RequireAuth(http.HandlerFunc(h.HandleConversationList)))
	mux.HandleFunc("GET /chatbot/suggestions", h.verifier.RequireAuth(http.HandlerFunc(h.HandleSuggestions)))
	mux.Handle("GET /chatbot/public/suggestions", guest(http.HandlerFunc(h.HandleSuggestions)))
	mux.HandleFunc("POST /chatbot/reset", h.verifier.RequireAuth(http.HandlerFunc(h.HandleReset)))

	// Catch-all for /chatbot/history/:id
	mux.Handle("/chatbot/history/", h.verifier.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.HandleConversationHistory(w, r)
		case http.MethodDelete:
			h.HandleDeleteConversation(w, r)
		default:
			auth.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET or DELETE")
		}
	})))

	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// owner resolves the chat Owner for the current request: the authenticated
// student when present, otherwise the guest identity minted by the
// middleware.
func (h *Handlers) owner(r *http.Request) (chatbot.Owner, bool) {
	if ident := auth.IdentityFromContext(r.Context()); ident.Authenticated {
		return chatbot.Owner{UserID: ident.UserID, Token: ident.Token, Authenticated: true}, true
	}
	if gid := middleware.GuestIDFromContext(r.Context()); gid != "" {
		return chatbot.Owner{GuestID: gid}, true
	}
	return chatbot.Owner{}, false
}

// conversationIDFromPath extracts the trailing id from /chatbot/history/:id.
func conversationIDFromPath(path string) string {
	id := strings.TrimPrefix(path, "/chatbot/history/")
	return strings.Trim(id, "/")
}
