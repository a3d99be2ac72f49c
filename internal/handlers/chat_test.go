package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/chartschool/platform/internal/chatbot"
)

const testGuestID = "68b3f2a1d4c5e6f7a8b9c0d1"

// fakeChatBackend emulates the conversational backend's endpoints well
// enough for gateway round trips.
type fakeChatBackend struct {
	t *testing.T

	lastAuth    string // Authorization header of the last private send
	lastGuestID string // guestId field of the last public send
	deleted     []string
}

func (f *fakeChatBackend) server() *httptest.Server {
	mux := http.NewServeMux()

	reply := func(w http.ResponseWriter, conversationID string) {
		json.NewEncoder(w).Encode(chatbot.SendResponse{
			ConversationID: conversationID,
			Reply: chatbot.Message{
				Role:      chatbot.RoleAssistant,
				Content:   "Start with the candlestick basics course.",
				Timestamp: time.Now(),
			},
		})
	}

	mux.HandleFunc("POST /chatbot/message", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth = r.Header.Get("Authorization")
		reply(w, "conv-1")
	})
	mux.HandleFunc("POST /chatbot/public/message", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		f.lastGuestID, _ = payload["guestId"].(string)
		reply(w, "conv-guest-1")
	})
	mux.HandleFunc("GET /chatbot/history", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatbot.ConversationPage{
			Conversations: []chatbot.ConversationSummary{
				{ID: "conv-1", Title: "Candlestick basics", MessageCount: 4},
				{ID: "conv-2", Title: "Risk management", MessageCount: 2},
			},
			Page:  1,
			Limit: 20,
			Total: 2,
		})
	})
	mux.HandleFunc("GET /chatbot/history/conv-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatbot.Conversation{
			ID: "conv-1",
			Messages: []chatbot.Message{
				{Role: chatbot.RoleUser, Content: "How do I read a candlestick chart?"},
				{Role: chatbot.RoleAssistant, Content: "Each candle shows open, high, low and close."},
			},
		})
	})
	mux.HandleFunc("DELETE /chatbot/history/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.deleted = append(f.deleted, r.PathValue("id"))
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /chatbot/suggestions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]string{"suggestions": {"Backend suggestion"}})
	})
	mux.HandleFunc("GET /chatbot/public/suggestions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]string{"suggestions": {"Backend suggestion"}})
	})

	return httptest.NewServer(mux)
}

func sendChat(mux *http.ServeMux, path, token, guestID, message string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"message":`+jsonString(message)+`}`))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if guestID != "" {
		req.Header.Set("X-Guest-Id", guestID)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestSendMessageAuthenticated(t *testing.T) {
	backend := &fakeChatBackend{t: t}
	srv := backend.server()
	defer srv.Close()
	_, mux := newGateway(t, testConfig(), srv.URL)

	token := bearerToken(t, "student-1")
	rec := sendChat(mux, "/chatbot/message", token, "", "How do I read a candlestick chart?")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body chatStateResponse
	decodeBody(t, rec, &body)
	if body.ConversationID != "conv-1" {
		t.Errorf("conversationId = %q, want conv-1", body.ConversationID)
	}
	if len(body.Messages) != 2 {
		t.Fatalf("messages = %d, want user + assistant", len(body.Messages))
	}
	if body.Messages[0].Role != chatbot.RoleUser || body.Messages[1].Role != chatbot.RoleAssistant {
		t.Errorf("message roles = %q, %q", body.Messages[0].Role, body.Messages[1].Role)
	}
	if backend.lastAuth != "Bearer "+token {
		t.Errorf("backend Authorization = %q, want the caller's bearer token", backend.lastAuth)
	}
}

func TestSendMessageGuest(t *testing.T) {
	backend := &fakeChatBackend{t: t}
	srv := backend.server()
	defer srv.Close()
	_, mux := newGateway(t, testConfig(), srv.URL)

	rec := sendChat(mux, "/chatbot/public/message", "", testGuestID, "hello")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if backend.lastGuestID != testGuestID {
		t.Errorf("backend guestId = %q, want %q", backend.lastGuestID, testGuestID)
	}
	if got := rec.Header().Get("X-Guest-Id"); got != testGuestID {
		t.Errorf("X-Guest-Id response header = %q, want %q", got, testGuestID)
	}

	var body chatStateResponse
	decodeBody(t, rec, &body)
	if body.ConversationID != "conv-guest-1" {
		t.Errorf("conversationId = %q, want conv-guest-1", body.ConversationID)
	}
}

func TestSendMessageMintsGuestIdentity(t *testing.T) {
	backend := &fakeChatBackend{t: t}
	srv := backend.server()
	defer srv.Close()
	_, mux := newGateway(t, testConfig(), srv.URL)

	rec := sendChat(mux, "/chatbot/public/message", "", "", "hello")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	id := rec.Header().Get("X-Guest-Id")
	if !regexp.MustCompile(`^[0-9a-f]{24}$`).MatchString(id) {
		t.Errorf("minted guest id = %q, want 24 lowercase hex chars", id)
	}
	var cookie string
	for _, c := range rec.Result().Cookies() {
		if c.Name == "cs_session" {
			cookie = c.Value
		}
	}
	if cookie == "" {
		t.Error("no cs_session cookie issued to anonymous guest")
	}
}

func TestSendMessageRejectsBadJSON(t *testing.T) {
	_, mux := newGateway(t, testConfig(), "http://127.0.0.1:1")

	req := httptest.NewRequest(http.MethodPost, "/chatbot/message", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "student-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSendMessageBackendDown(t *testing.T) {
	_, mux := newGateway(t, testConfig(), "http://127.0.0.1:1")

	rec := sendChat(mux, "/chatbot/message", bearerToken(t, "student-1"), "", "hello")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] != "chat_error" {
		t.Errorf("error = %q, want chat_error", body["error"])
	}
	if body["message"] == "" {
		t.Error("error message is empty, want a human-readable one")
	}
}

func TestConversationList(t *testing.T) {
	backend := &fakeChatBackend{t: t}
	srv := backend.server()
	defer srv.Close()
	_, mux := newGateway(t, testConfig(), srv.URL)

	req := httptest.NewRequest(http.MethodGet, "/chatbot/history", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "student-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body chatStateResponse
	decodeBody(t, rec, &body)
	if len(body.Conversations) != 2 {
		t.Fatalf("conversations = %d, want 2", len(body.Conversations))
	}
	if body.Total != 2 {
		t.Errorf("total = %d, want 2", body.Total)
	}
	if body.HasMore {
		t.Error("hasMore = true for a fully-loaded list")
	}
}

func TestConversationHistoryLoadsIntoSession(t *testing.T) {
	backend := &fakeChatBackend{t: t}
	srv := backend.server()
	defer srv.Close()
	_, mux := newGateway(t, testConfig(), srv.URL)

	req := httptest.NewRequest(http.MethodGet, "/chatbot/history/conv-1", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "student-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body chatStateResponse
	decodeBody(t, rec, &body)
	if body.ConversationID != "conv-1" {
		t.Errorf("conversationId = %q, want conv-1", body.ConversationID)
	}
	if len(body.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(body.Messages))
	}
}

func TestDeleteConversation(t *testing.T) {
	backend := &fakeChatBackend{t: t}
	srv := backend.server()
	defer srv.Close()
	_, mux := newGateway(t, testConfig(), srv.URL)

	req := httptest.NewRequest(http.MethodDelete, "/chatbot/history/conv-1", nil)
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "student-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(backend.deleted) != 1 || backend.deleted[0] != "conv-1" {
		t.Errorf("backend deletions = %v, want [conv-1]", backend.deleted)
	}
}

func TestSuggestionsDegradeWhenBackendDown(t *testing.T) {
	_, mux := newGateway(t, testConfig(), "http://127.0.0.1:1")

	req := httptest.NewRequest(http.MethodGet, "/chatbot/public/suggestions?language=es", nil)
	req.Header.Set("X-Guest-Id", testGuestID)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even with the backend down", rec.Code)
	}

	var body map[string][]string
	decodeBody(t, rec, &body)
	want := chatbot.DefaultSuggestions("es")
	if len(body["suggestions"]) != len(want) || body["suggestions"][0] != want[0] {
		t.Errorf("suggestions = %v, want Spanish defaults", body["suggestions"])
	}
}

func TestResetClearsSession(t *testing.T) {
	backend := &fakeChatBackend{t: t}
	srv := backend.server()
	defer srv.Close()
	_, mux := newGateway(t, testConfig(), srv.URL)

	token := bearerToken(t, "student-1")
	if rec := sendChat(mux, "/chatbot/message", token, "", "hello"); rec.Code != http.StatusOK {
		t.Fatalf("send: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/chatbot/reset", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: status = %d", rec.Code)
	}

	var body chatStateResponse
	decodeBody(t, rec, &body)
	if body.ConversationID != "" {
		t.Errorf("conversationId = %q after reset, want empty", body.ConversationID)
	}
	if len(body.Messages) != 0 {
		t.Errorf("messages = %d after reset, want none", len(body.Messages))
	}
}
