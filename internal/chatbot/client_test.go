// client_test.go — Transport client tests against a stub backend.
package chatbot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func authOwner() Owner {
	return Owner{UserID: "user-1", Token: "jwt-token", Authenticated: true}
}

func guestOwner() Owner {
	return Owner{GuestID: "68b3f2a1d4c5e6f7a8b9c0d1"}
}

func TestSendMessage_AuthenticatedEndpoint(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(SendResponse{
			ConversationID: "conv-1",
			Reply:          Message{Role: RoleAssistant, Content: "hello"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	resp, err := c.SendMessage(context.Background(), authOwner(), SendRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if gotPath != "/chatbot/message" {
		t.Errorf("path = %q, want /chatbot/message", gotPath)
	}
	if gotAuth != "Bearer jwt-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if resp.ConversationID != "conv-1" || resp.Reply.Content != "hello" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSendMessage_GuestEndpointAndIdentity(t *testing.T) {
	var gotPath, gotHeader string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Get("X-Guest-Id")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(SendResponse{ConversationID: "conv-g"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if _, err := c.SendMessage(context.Background(), guestOwner(), SendRequest{Message: "hi"}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if gotPath != "/chatbot/public/message" {
		t.Errorf("path = %q, want /chatbot/public/message", gotPath)
	}
	if gotHeader != "68b3f2a1d4c5e6f7a8b9c0d1" {
		t.Errorf("X-Guest-Id = %q", gotHeader)
	}
	if gotBody["guestId"] != "68b3f2a1d4c5e6f7a8b9c0d1" {
		t.Errorf("guestId in body = %v", gotBody["guestId"])
	}
}

func TestSendMessage_BlankMessageRejected(t *testing.T) {
	c := NewClient("http://unused.invalid", nil)
	_, err := c.SendMessage(context.Background(), authOwner(), SendRequest{Message: ""})
	if err == nil {
		t.Fatal("expected validation error for blank message")
	}
}

func TestSendMessage_TransportErrorNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.SendMessage(context.Background(), authOwner(), SendRequest{Message: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	te, ok := err.(*TransportError)
	if !ok {
		t.Fatalf("error type = %T, want *TransportError", err)
	}
	if te.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d", te.Status)
	}
	if te.Message == "" {
		t.Error("normalized error must carry a human-readable message")
	}
}

func TestConversationHistory_NotFoundReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	conv, err := c.ConversationHistory(context.Background(), authOwner(), "gone")
	if err != nil {
		t.Fatalf("expected nil error for 404, got %v", err)
	}
	if conv != nil {
		t.Errorf("expected nil conversation for 404, got %+v", conv)
	}
}

func TestSuggestions_DegradesToDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	got := c.Suggestions(context.Background(), guestOwner(), "es")
	want := DefaultSuggestions("es")
	if len(got) != len(want) || got[0] != want[0] {
		t.Errorf("Suggestions = %v, want localized defaults %v", got, want)
	}

	// Unknown language falls back to English defaults.
	if got := c.Suggestions(context.Background(), guestOwner(), "xx"); got[0] != DefaultSuggestions("en")[0] {
		t.Errorf("unknown language should yield English defaults, got %v", got)
	}
}

func TestSuggestions_UnreachableBackendNeverErrors(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil)
	got := c.Suggestions(context.Background(), authOwner(), "en")
	if len(got) == 0 {
		t.Error("expected default suggestions when backend is unreachable")
	}
}

func TestConversations_PageParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "3" || r.URL.Query().Get("limit") != "10" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(ConversationPage{Page: 3, Limit: 10, Total: 25})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	page, err := c.Conversations(context.Background(), authOwner(), 3, 10)
	if err != nil {
		t.Fatalf("Conversations failed: %v", err)
	}
	if page.Total != 25 {
		t.Errorf("Total = %d, want 25", page.Total)
	}
}
