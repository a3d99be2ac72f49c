// guest.go — Guest identity middleware.
//
// Anonymous chat callers are identified by a 24-hex-char guest id. The id is
// minted server-side, cached in the ephemeral store keyed by a browser
// session cookie, and echoed back on every response so clients can carry it
// in X-Guest-Id. Authenticated requests (valid Bearer token upstream) skip
// guest resolution entirely.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chartschool/platform/internal/auth"
	"github.com/chartschool/platform/internal/chatbot"
	"github.com/chartschool/platform/internal/store"
)

// GuestCookieName is the browser session cookie holding the opaque session key.
const GuestCookieName = "cs_session"

// guestCookieTTL outlives the guest id TTL so a returning tab re-mints
// against the same session key.
const guestCookieTTL = 24 * time.Hour

type guestIDKey struct{}

// GuestIDFromContext returns the resolved guest id, empty for authenticated
// callers or when resolution failed.
func GuestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(guestIDKey{}).(string)
	return v
}

// GuestIdentity resolves a stable guest id for anonymous requests.
//
// Resolution order: a valid X-Guest-Id header wins (client already has an
// identity), then the ephemeral store keyed by the session cookie, then a
// freshly minted id. Malformed ids are discarded and replaced, never passed
// through.
func GuestIdentity(guests store.GuestStore, log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.IdentityFromContext(r.Context()).Authenticated {
				next.ServeHTTP(w, r)
				return
			}

			if id := r.Header.Get("X-Guest-Id"); chatbot.ValidGuestID(id) {
				w.Header().Set("X-Guest-Id", id)
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), guestIDKey{}, id)))
				return
			}

			if guests == nil {
				// No ephemeral store wired — mint per request.
				if id, err := chatbot.MintGuestID(); err == nil {
					w.Header().Set("X-Guest-Id", id)
					r = r.WithContext(context.WithValue(r.Context(), guestIDKey{}, id))
				}
				next.ServeHTTP(w, r)
				return
			}

			sessionKey := sessionKeyFromCookie(w, r)
			guestID, err := chatbot.EnsureGuestID(r.Context(), guests, sessionKey)
			if err != nil {
				if log != nil {
					log.WithError(err).Warn("could not resolve guest identity")
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-Guest-Id", guestID)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), guestIDKey{}, guestID)))
		})
	}
}

// sessionKeyFromCookie returns the session cookie value, setting a fresh one
// when absent.
func sessionKeyFromCookie(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(GuestCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	key := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookieName,
		Value:    key,
		Path:     "/",
		MaxAge:   int(guestCookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return key
}
