// chat.go — Chat gateway endpoints.
//
// Requests are fronted by per-owner Session instances so the message list,
// active conversation pointer, and pagination state live server-side and
// survive page reloads.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/chartschool/platform/internal/auth"
	"github.com/chartschool/platform/internal/chatbot"
	"github.com/chartschool/platform/internal/metrics"
	"github.com/chartschool/platform/internal/validate"
	"github.com/chartschool/platform/pkg/telemetry"
)

// maxChatBodyBytes bounds chat request bodies.
const maxChatBodyBytes = 64 << 10

// sendPayload is the request body for POST /chatbot/message (and the public
// variant).
type sendPayload struct {
	Message  string `json:"message"`
	Language string `json:"language,omitempty"`
	Region   string `json:"region,omitempty"`
}

// chatStateResponse is the session snapshot returned by the chat endpoints.
type chatStateResponse struct {
	ConversationID string                        `json:"conversationId,omitempty"`
	Messages       []chatbot.Message             `json:"messages"`
	Suggestions    []string                      `json:"suggestions,omitempty"`
	Conversations  []chatbot.ConversationSummary `json:"conversations,omitempty"`
	Total          int                           `json:"total,omitempty"`
	HasMore        bool                          `json:"hasMore,omitempty"`
	Error          string                        `json:"error,omitempty"`
}

// HandleSendMessage sends one chat message on behalf of the caller and
// returns the updated session state.
//
//	POST /chatbot/message          (authenticated)
//	POST /chatbot/public/message   (guest)
func (h *Handlers) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(r)
	if !ok {
		auth.WriteError(w, http.StatusUnauthorized, "no_identity", "no caller identity")
		return
	}

	if h.limiter != nil {
		if ok, retry := h.limiter.CheckChatSend(r.Context(), owner.Key()); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			auth.WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many messages. Please wait before retrying.")
			return
		}
	}

	var payload sendPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&payload); err != nil {
		auth.WriteError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}

	s := h.sessions.Get(r.Context(), owner, chatbot.SessionConfig{
		Language: payload.Language,
		Region:   payload.Region,
	})

	if err := s.SendMessage(r.Context(), payload.Message); err != nil {
		metrics.ChatSends.WithLabelValues(ownerKind(owner), "error").Inc()
		h.writeChatError(w, s, err)
		return
	}
	metrics.ChatSends.WithLabelValues(ownerKind(owner), "ok").Inc()
	h.writeSessionState(w, s)
}

// HandleConversationList returns a page of the student's conversations.
//
//	GET /chatbot/history?page=2
//
// page <= 1 (or missing) resets to the first page; higher pages load
// forward from the session's cursor.
func (h *Handlers) HandleConversationList(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(r)
	if !ok || !owner.Authenticated {
		auth.WriteError(w, http.StatusUnauthorized, "no_identity", "authentication required")
		return
	}

	s := h.sessions.Get(r.Context(), owner, chatbot.SessionConfig{})

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			page = n
		}
	}

	var err error
	if page <= 1 {
		err = s.LoadConversations(r.Context(), true)
	} else {
		err = s.LoadMore(r.Context())
	}
	if err != nil {
		h.writeChatError(w, s, err)
		return
	}
	h.writeSessionState(w, s)
}

// HandleConversationHistory loads a conversation into the session and
// returns its full history.
//
//	GET /chatbot/history/:id
func (h *Handlers) HandleConversationHistory(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(r)
	if !ok {
		auth.WriteError(w, http.StatusUnauthorized, "no_identity", "authentication required")
		return
	}

	id := conversationIDFromPath(r.URL.Path)
	if id == "" {
		auth.WriteError(w, http.StatusBadRequest, "invalid_request", "conversation id required")
		return
	}

	s := h.sessions.Get(r.Context(), owner, chatbot.SessionConfig{})
	if err := s.LoadConversation(r.Context(), id); err != nil {
		h.writeChatError(w, s, err)
		return
	}
	h.writeSessionState(w, s)
}

// HandleDeleteConversation removes a conversation.
//
//	DELETE /chatbot/history/:id
func (h *Handlers) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(r)
	if !ok {
		auth.WriteError(w, http.StatusUnauthorized, "no_identity", "authentication required")
		return
	}

	id := conversationIDFromPath(r.URL.Path)
	if id == "" {
		auth.WriteError(w, http.StatusBadRequest, "invalid_request", "conversation id required")
		return
	}

	s := h.sessions.Get(r.Context(), owner, chatbot.SessionConfig{})
	if err := s.DeleteConversation(r.Context(), id); err != nil {
		h.writeChatError(w, s, err)
		return
	}
	h.writeSessionState(w, s)
}

// HandleSuggestions returns quick-reply suggestions for the caller's
// language. Never errors — falls back to the localized defaults.
//
//	GET /chatbot/suggestions?language=es
//	GET /chatbot/public/suggestions?language=es
func (h *Handlers) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(r)
	if !ok {
		auth.WriteError(w, http.StatusUnauthorized, "no_identity", "no caller identity")
		return
	}
	language := r.URL.Query().Get("language")
	if language != "" && validate.IsLanguageCode("language", language) != nil {
		// Malformed codes fall through to the English defaults.
		language = ""
	}
	auth.WriteJSON(w, http.StatusOK, map[string][]string{
		"suggestions": h.chat.Suggestions(r.Context(), owner, language),
	})
}

// HandleReset clears the caller's session: messages, active conversation,
// and the durable pointer.
//
//	POST /chatbot/reset
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(r)
	if !ok {
		auth.WriteError(w, http.StatusUnauthorized, "no_identity", "authentication required")
		return
	}

	s := h.sessions.Get(r.Context(), owner, chatbot.SessionConfig{})
	s.Reset(r.Context())
	h.writeSessionState(w, s)
}

// writeSessionState responds with the session snapshot.
func (h *Handlers) writeSessionState(w http.ResponseWriter, s *chatbot.Session) {
	auth.WriteJSON(w, http.StatusOK, chatStateResponse{
		ConversationID: s.ConversationID(),
		Messages:       s.Messages(),
		Suggestions:    s.Suggestions(),
		Conversations:  s.Conversations(),
		Total:          s.TotalConversations(),
		HasMore:        s.HasMoreConversations(),
		Error:          s.LastError(),
	})
}

// writeChatError maps a chat failure onto the HTTP response, preserving the
// backend's status when known.
func (h *Handlers) writeChatError(w http.ResponseWriter, s *chatbot.Session, err error) {
	status := http.StatusBadGateway
	var te *chatbot.TransportError
	if errors.As(err, &te) && te.Status != 0 {
		status = te.Status
	}
	metrics.ChatErrors.WithLabelValues(strconv.Itoa(status)).Inc()
	if status >= http.StatusInternalServerError {
		telemetry.CaptureError(err, map[string]string{
			"operation":       "chat_send",
			"conversation_id": s.ConversationID(),
		})
	}
	auth.WriteError(w, status, "chat_error", err.Error())
}

// ownerKind labels an owner for metrics.
func ownerKind(o chatbot.Owner) string {
	if o.Authenticated {
		return "student"
	}
	return "guest"
}
