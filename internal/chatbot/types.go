// Package chatbot fronts the conversational backend for the ChartSchool web
// clients. Client is the stateless HTTP transport; Session is the stateful
// per-owner conversation manager (message list, pagination cache, persisted
// conversation pointer, single-flight send).
package chatbot

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single utterance within a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Sources   []string  `json:"sources,omitempty"`
}

// Owner identifies who a chat request is made on behalf of: an authenticated
// user (Token set) or a guest (GuestID set).
type Owner struct {
	UserID        string
	Token         string // bearer token; empty for guests
	GuestID       string // 24-hex guest identity; empty for authenticated users
	Authenticated bool
}

// Key returns the identity the gateway keys session state on.
func (o Owner) Key() string {
	if o.Authenticated {
		return o.UserID
	}
	return o.GuestID
}

// SendRequest is the payload for a chat message send.
type SendRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	Region         string `json:"region,omitempty"`
	Language       string `json:"language,omitempty"`
}

// Validate enforces the request shape before it reaches the backend.
func (r SendRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Message, validation.Required, validation.Length(1, 4000)),
		validation.Field(&r.Language, validation.In("", "en", "es", "pt", "fr", "de")),
	)
}

// SendResponse is the backend's reply to a message send.
type SendResponse struct {
	ConversationID string   `json:"conversationId"`
	Reply          Message  `json:"reply"`
	Suggestions    []string `json:"suggestions,omitempty"`
	ProcessingMS   int64    `json:"processingMs,omitempty"`
}

// ConversationSummary is one row of the paginated conversation list.
type ConversationSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"createdAt"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	MessageCount  int       `json:"messageCount"`
}

// ConversationPage is a page of conversation summaries with the backend's
// total count.
type ConversationPage struct {
	Conversations []ConversationSummary `json:"conversations"`
	Page          int                   `json:"page"`
	Limit         int                   `json:"limit"`
	Total         int                   `json:"total"`
}

// Conversation is a full conversation with its message history.
type Conversation struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
}
