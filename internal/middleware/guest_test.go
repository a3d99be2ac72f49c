// guest_test.go — Unit tests for the guest identity middleware.
package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/chartschool/platform/internal/middleware"
	"github.com/chartschool/platform/internal/store"
)

var guestIDRE = regexp.MustCompile(`^[0-9a-f]{24}$`)

func guestHandler(t *testing.T, captured *string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = middleware.GuestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestGuestIdentity_MintsForAnonymous(t *testing.T) {
	var got string
	h := middleware.GuestIdentity(store.NewMemoryGuestStore(), nil)(guestHandler(t, &got))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/chatbot/suggestions", nil))

	if !guestIDRE.MatchString(got) {
		t.Errorf("minted guest id %q does not match shape", got)
	}
	if hdr := rr.Header().Get("X-Guest-Id"); hdr != got {
		t.Errorf("X-Guest-Id header %q != context id %q", hdr, got)
	}
	// A session cookie must be issued for the new visitor.
	found := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.GuestCookieName && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("expected a session cookie to be set")
	}
}

func TestGuestIdentity_ReusesStoredID(t *testing.T) {
	guests := store.NewMemoryGuestStore()
	mw := middleware.GuestIdentity(guests, nil)

	var first string
	rr := httptest.NewRecorder()
	mw(guestHandler(t, &first)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	// Replay with the issued session cookie — same guest id must come back.
	var second string
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
	mw(guestHandler(t, &second)).ServeHTTP(httptest.NewRecorder(), req)

	if first != second {
		t.Errorf("same session produced different ids: %q vs %q", first, second)
	}
}

func TestGuestIdentity_ValidHeaderWins(t *testing.T) {
	const id = "68b3f2a1d4c5e6f7a8b9c0d1"
	var got string
	h := middleware.GuestIdentity(store.NewMemoryGuestStore(), nil)(guestHandler(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Guest-Id", id)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != id {
		t.Errorf("guest id = %q, want the client-presented %q", got, id)
	}
}

func TestGuestIdentity_MalformedHeaderReplaced(t *testing.T) {
	var got string
	h := middleware.GuestIdentity(store.NewMemoryGuestStore(), nil)(guestHandler(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Guest-Id", "<script>alert(1)</script>")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !guestIDRE.MatchString(got) {
		t.Errorf("malformed header must be replaced with a minted id, got %q", got)
	}
}
