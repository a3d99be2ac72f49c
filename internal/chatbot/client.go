// client.go — Stateless HTTP transport to the conversational backend.
//
// Request shaping: authenticated owners hit the private endpoints with a
// bearer token; guests hit the public endpoints with their minted guest
// identity. Transport failures are normalized to a single human-readable
// message and logged — except the suggestions fetch, which degrades to a
// hardcoded localized default list and never surfaces an error.
package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chartschool/platform/pkg/logging"
)

const defaultRequestTimeout = 30 * time.Second

// TransportError is a backend/network failure normalized to a message the
// UI can show directly.
type TransportError struct {
	Message string
	Status  int // HTTP status, 0 for network-level failures
}

func (e *TransportError) Error() string { return e.Message }

// Client talks to the conversational backend. Stateless; safe for
// concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Entry
}

// NewClient returns a Client for the given backend base URL.
func NewClient(baseURL string, log *logrus.Entry) *Client {
	if log == nil {
		log = logging.NewLogger("chatbot")
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultRequestTimeout},
		log:     log,
	}
}

// SendMessage sends a user message on behalf of owner and returns the
// backend's reply. Endpoint selection follows the owner's auth state.
// Errors are normalized, never swallowed.
func (c *Client) SendMessage(ctx context.Context, owner Owner, req SendRequest) (*SendResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, &TransportError{Message: err.Error(), Status: http.StatusBadRequest}
	}

	endpoint := "/chatbot/public/message"
	if owner.Authenticated {
		endpoint = "/chatbot/message"
	}

	payload := map[string]any{
		"message":  req.Message,
		"region":   req.Region,
		"language": req.Language,
	}
	if req.ConversationID != "" {
		payload["conversationId"] = req.ConversationID
	}
	if !owner.Authenticated {
		payload["guestId"] = owner.GuestID
	}

	var resp SendResponse
	if err := c.do(ctx, owner, http.MethodPost, endpoint, payload, &resp); err != nil {
		c.log.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"guest_id": logging.RedactGuestID(owner.GuestID),
		}).WithError(err).Warn("chat send failed")
		return nil, normalize(err, "Your message could not be sent. Please try again.")
	}
	return &resp, nil
}

// Conversations lists the owner's conversation history page. Authenticated
// owners only.
func (c *Client) Conversations(ctx context.Context, owner Owner, page, limit int) (*ConversationPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var resp ConversationPage
	if err := c.do(ctx, owner, http.MethodGet, "/chatbot/history?"+q.Encode(), nil, &resp); err != nil {
		c.log.WithError(err).Warn("conversation list fetch failed")
		return nil, normalize(err, "Conversation history is unavailable right now.")
	}
	return &resp, nil
}

// ConversationHistory fetches one conversation with its full message list.
// A backend 404 returns (nil, nil): callers treat absence as "start fresh".
func (c *Client) ConversationHistory(ctx context.Context, owner Owner, conversationID string) (*Conversation, error) {
	var resp Conversation
	err := c.do(ctx, owner, http.MethodGet, "/chatbot/history/"+url.PathEscape(conversationID), nil, &resp)
	if err != nil {
		if te, ok := err.(*TransportError); ok && te.Status == http.StatusNotFound {
			return nil, nil
		}
		c.log.WithField("conversation_id", conversationID).WithError(err).Warn("conversation fetch failed")
		return nil, normalize(err, "This conversation could not be loaded.")
	}
	return &resp, nil
}

// DeleteConversation removes a conversation from the owner's history.
func (c *Client) DeleteConversation(ctx context.Context, owner Owner, conversationID string) error {
	err := c.do(ctx, owner, http.MethodDelete, "/chatbot/history/"+url.PathEscape(conversationID), nil, nil)
	if err != nil {
		c.log.WithField("conversation_id", conversationID).WithError(err).Warn("conversation delete failed")
		return normalize(err, "The conversation could not be deleted.")
	}
	return nil
}

// Suggestions fetches quick-reply suggestions for a language. Any failure
// degrades to the localized default list — this call never errors.
func (c *Client) Suggestions(ctx context.Context, owner Owner, language string) []string {
	endpoint := "/chatbot/public/suggestions"
	if owner.Authenticated {
		endpoint = "/chatbot/suggestions"
	}
	if language != "" {
		endpoint += "?language=" + url.QueryEscape(language)
	}

	var resp struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := c.do(ctx, owner, http.MethodGet, endpoint, nil, &resp); err != nil || len(resp.Suggestions) == 0 {
		if err != nil {
			c.log.WithError(err).Debug("suggestions fetch failed, using defaults")
		}
		return DefaultSuggestions(language)
	}
	return resp.Suggestions
}

// DefaultSuggestions returns the hardcoded fallback quick replies for a
// language, defaulting to English.
func DefaultSuggestions(language string) []string {
	if s, ok := defaultSuggestions[language]; ok {
		return append([]string(nil), s...)
	}
	return append([]string(nil), defaultSuggestions["en"]...)
}

var defaultSuggestions = map[string][]string{
	"en": {
		"What courses should I start with?",
		"Explain risk management basics",
		"How do I read a candlestick chart?",
	},
	"es": {
		"¿Con qué cursos debería empezar?",
		"Explica los fundamentos de la gestión de riesgos",
		"¿Cómo leo un gráfico de velas?",
	},
	"pt": {
		"Com quais cursos devo começar?",
		"Explique os fundamentos da gestão de risco",
		"Como leio um gráfico de velas?",
	},
}

// do executes one backend request and decodes the JSON response into out
// (when out is non-nil).
func (c *Client) do(ctx context.Context, owner Owner, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Message: fmt.Sprintf("encode request: %v", err)}
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return &TransportError{Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if owner.Authenticated && owner.Token != "" {
		req.Header.Set("Authorization", "Bearer "+owner.Token)
	} else if owner.GuestID != "" {
		req.Header.Set("X-Guest-Id", owner.GuestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := readErrorMessage(resp.Body)
		if msg == "" {
			msg = fmt.Sprintf("backend returned %s", resp.Status)
		}
		return &TransportError{Message: msg, Status: resp.StatusCode}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Message: fmt.Sprintf("decode response: %v", err), Status: resp.StatusCode}
	}
	return nil
}

// readErrorMessage pulls a message out of a JSON error body, tolerating the
// common {"error": "..."} and {"message": "..."} shapes.
func readErrorMessage(r io.Reader) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}

// normalize ensures a transport failure carries a human-readable message,
// preferring what the backend said and falling back otherwise. The HTTP
// status survives; everything else about the failure is flattened.
func normalize(err error, fallback string) error {
	if te, ok := err.(*TransportError); ok {
		msg := te.Message
		if msg == "" || te.Status == 0 {
			// Network-level failures expose Go error strings — replace them
			// with something a user can read.
			msg = fallback
		}
		return &TransportError{Message: msg, Status: te.Status}
	}
	return &TransportError{Message: fallback}
}
