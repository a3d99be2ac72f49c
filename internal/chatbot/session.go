// session.go — Stateful per-owner conversation manager.
//
// A Session owns the in-memory message list, the paginated conversation-list
// cache, and the persisted active-conversation pointer for one owner. Sends
// are single-flight: starting a new send cancels the in-flight one, and a
// cancelled send never mutates state after cancellation. A failed send rolls
// back its optimistic user message so the visible state matches the server.
package chatbot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chartschool/platform/internal/store"
)

// DefaultPageSize is the conversation-list page size.
const DefaultPageSize = 20

// transport is the subset of Client a Session depends on.
type transport interface {
	SendMessage(ctx context.Context, owner Owner, req SendRequest) (*SendResponse, error)
	Conversations(ctx context.Context, owner Owner, page, limit int) (*ConversationPage, error)
	ConversationHistory(ctx context.Context, owner Owner, conversationID string) (*Conversation, error)
	DeleteConversation(ctx context.Context, owner Owner, conversationID string) error
	Suggestions(ctx context.Context, owner Owner, language string) []string
}

// SessionConfig carries the per-session options.
type SessionConfig struct {
	Language string
	Region   string
	PageSize int
	// OnError, when set, is invoked with the normalized error after a failed
	// send (after rollback). Called without the session lock held.
	OnError func(error)
}

// Session manages one owner's conversation state. All methods are safe for
// concurrent use.
type Session struct {
	mu sync.Mutex

	api   transport
	convs store.ConversationStore
	owner Owner
	cfg   SessionConfig
	log   *logrus.Entry

	messages       []Message
	conversationID string
	suggestions    []string
	lastError      string

	sending        bool
	loadingHistory bool
	cancelSend     context.CancelFunc
	sendSeq        uint64
	hydrated       bool
	closed         bool

	list    []ConversationSummary
	page    int
	total   int
	hasMore bool
}

// NewSession returns a Session for the given owner. convs may be nil for
// guests (they never persist a conversation pointer).
func NewSession(api *Client, convs store.ConversationStore, owner Owner, cfg SessionConfig, log *logrus.Entry) *Session {
	return newSession(api, convs, owner, cfg, log)
}

func newSession(api transport, convs store.ConversationStore, owner Owner, cfg SessionConfig, log *logrus.Entry) *Session {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Session{
		api:   api,
		convs: convs,
		owner: owner,
		cfg:   cfg,
		log:   log,
	}
}

// Start loads quick-reply suggestions and, for authenticated owners, hydrates
// the last persisted conversation exactly once. A stale persisted id (no
// longer resolvable on the server, or failing to load) is discarded rather
// than retried.
func (s *Session) Start(ctx context.Context) {
	suggestions := s.api.Suggestions(ctx, s.owner, s.cfg.Language)

	s.mu.Lock()
	s.suggestions = suggestions
	alreadyHydrated := s.hydrated
	s.hydrated = true
	s.mu.Unlock()

	if alreadyHydrated || !s.owner.Authenticated || s.convs == nil {
		return
	}

	storedID, err := s.convs.Get(ctx, s.owner.UserID)
	if err != nil || storedID == "" {
		return
	}

	conv, err := s.api.ConversationHistory(ctx, s.owner, storedID)
	if err != nil || conv == nil {
		// Stale pointer — discard, do not retry.
		if derr := s.convs.Delete(ctx, s.owner.UserID); derr != nil && s.log != nil {
			s.log.WithError(derr).Warn("could not clear stale conversation pointer")
		}
		return
	}

	s.mu.Lock()
	s.messages = conv.Messages
	s.conversationID = conv.ID
	s.mu.Unlock()
}

// SendMessage sends text on behalf of the owner. Blank input is a no-op.
// A send issued while another is in flight supersedes it: the prior request
// is cancelled and its completion discarded.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.cancelSend != nil {
		s.cancelSend()
	}
	s.sendSeq++
	seq := s.sendSeq

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancelSend = cancel
	s.sending = true
	s.lastError = ""

	optimistic := Message{Role: RoleUser, Content: text, Timestamp: time.Now()}
	s.messages = append(s.messages, optimistic)
	optimisticIdx := len(s.messages) - 1

	req := SendRequest{
		Message:        text,
		ConversationID: s.conversationID,
		Region:         s.cfg.Region,
		Language:       s.cfg.Language,
	}
	owner := s.owner
	s.mu.Unlock()

	resp, err := s.api.SendMessage(sctx, owner, req)

	s.mu.Lock()
	if seq != s.sendSeq {
		// Superseded by a newer send — this completion must not touch state.
		s.mu.Unlock()
		return nil
	}
	s.cancelSend = nil
	s.sending = false

	if err != nil {
		if sctx.Err() != nil {
			// Aborted (session closed or caller context cancelled) — no
			// mutation after abort.
			s.mu.Unlock()
			return nil
		}
		// Roll back the optimistic user message.
		if optimisticIdx < len(s.messages) && s.messages[optimisticIdx].Content == text {
			s.messages = append(s.messages[:optimisticIdx], s.messages[optimisticIdx+1:]...)
		}
		s.lastError = sendErrorMessage(err, s.cfg.Language)
		onError := s.cfg.OnError
		s.mu.Unlock()
		if onError != nil {
			onError(err)
		}
		return err
	}

	s.conversationID = resp.ConversationID
	s.messages = append(s.messages, resp.Reply)
	if len(resp.Suggestions) > 0 {
		s.suggestions = resp.Suggestions
	}
	authenticated := s.owner.Authenticated
	s.mu.Unlock()

	if authenticated && s.convs != nil {
		if perr := s.convs.Set(ctx, s.owner.UserID, resp.ConversationID); perr != nil && s.log != nil {
			s.log.WithError(perr).Warn("could not persist conversation pointer")
		}
	}
	return nil
}

// Reset clears the message list, the active conversation id (in memory and
// in the durable store), and the last error. This is the single operation
// behind both "clear messages" and "start new conversation".
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	s.messages = nil
	s.conversationID = ""
	s.lastError = ""
	authenticated := s.owner.Authenticated
	s.mu.Unlock()

	if authenticated && s.convs != nil {
		if err := s.convs.Delete(ctx, s.owner.UserID); err != nil && s.log != nil {
			s.log.WithError(err).Warn("could not clear conversation pointer")
		}
	}
}

// LoadConversation replaces the session's message list with the given
// conversation's history and persists it as the active conversation.
func (s *Session) LoadConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	s.loadingHistory = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loadingHistory = false
		s.mu.Unlock()
	}()

	conv, err := s.api.ConversationHistory(ctx, s.owner, conversationID)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		return err
	}
	if conv == nil {
		// The conversation no longer exists server-side — discard any stale
		// pointer to it.
		if s.owner.Authenticated && s.convs != nil {
			s.convs.Delete(ctx, s.owner.UserID)
		}
		return &TransportError{Message: "This conversation no longer exists.", Status: 404}
	}

	s.mu.Lock()
	s.messages = conv.Messages
	s.conversationID = conv.ID
	s.lastError = ""
	authenticated := s.owner.Authenticated
	s.mu.Unlock()

	if authenticated && s.convs != nil {
		if perr := s.convs.Set(ctx, s.owner.UserID, conv.ID); perr != nil && s.log != nil {
			s.log.WithError(perr).Warn("could not persist conversation pointer")
		}
	}
	return nil
}

// LoadConversations fetches the first page (reset=true) or re-fetches the
// current page of the owner's conversation list.
func (s *Session) LoadConversations(ctx context.Context, reset bool) error {
	s.mu.Lock()
	page := s.page
	if reset || page == 0 {
		page = 1
	}
	s.mu.Unlock()
	return s.fetchConversationPage(ctx, page, reset)
}

// LoadMore fetches the next page and appends it to the cached list. No-op
// when the backend has no more pages.
func (s *Session) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.page > 0 && !s.hasMore {
		s.mu.Unlock()
		return nil
	}
	next := s.page + 1
	s.mu.Unlock()
	return s.fetchConversationPage(ctx, next, false)
}

func (s *Session) fetchConversationPage(ctx context.Context, page int, replace bool) error {
	s.mu.Lock()
	s.loadingHistory = true
	limit := s.cfg.PageSize
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loadingHistory = false
		s.mu.Unlock()
	}()

	resp, err := s.api.Conversations(ctx, s.owner, page, limit)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if replace || page == 1 {
		s.list = resp.Conversations
	} else {
		s.list = append(s.list, resp.Conversations...)
	}
	s.page = page
	s.total = resp.Total
	s.hasMore = len(resp.Conversations) == limit && page*limit < resp.Total
	s.mu.Unlock()
	return nil
}

// DeleteConversation removes a conversation from the backend and the cached
// list. Deleting the active conversation also clears the session state, the
// same as Reset.
func (s *Session) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := s.api.DeleteConversation(ctx, s.owner, conversationID); err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	for i, c := range s.list {
		if c.ID == conversationID {
			s.list = append(s.list[:i], s.list[i+1:]...)
			break
		}
	}
	if s.total > 0 {
		s.total--
	}
	wasActive := s.conversationID == conversationID
	s.mu.Unlock()

	if wasActive {
		s.Reset(ctx)
	}
	return nil
}

// Close aborts any pending send. The session accepts no further sends.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.cancelSend != nil {
		s.cancelSend()
		s.cancelSend = nil
	}
}

// ── State accessors ───────────────────────────────────────────────────────────

// Messages returns a copy of the current message list.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// ConversationID returns the active conversation id, empty when none.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Sending reports whether a send is in flight.
func (s *Session) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// LoadingHistory reports whether a history operation is in flight.
func (s *Session) LoadingHistory() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingHistory
}

// LastError returns the most recent normalized error message, empty when the
// last operation succeeded.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Suggestions returns a copy of the current quick-reply suggestions.
func (s *Session) Suggestions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.suggestions...)
}

// Conversations returns a copy of the cached conversation list.
func (s *Session) Conversations() []ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ConversationSummary(nil), s.list...)
}

// HasMoreConversations reports whether another list page exists.
func (s *Session) HasMoreConversations() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// TotalConversations returns the backend's total conversation count as of
// the last list fetch.
func (s *Session) TotalConversations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// sendErrorMessage maps a send failure to the localized string shown in the
// chat UI.
func sendErrorMessage(err error, language string) string {
	var te *TransportError
	if errors.As(err, &te) && te.Status >= 400 && te.Status < 500 && te.Message != "" {
		return te.Message
	}
	if msg, ok := sendFailureText[language]; ok {
		return msg
	}
	return sendFailureText["en"]
}

var sendFailureText = map[string]string{
	"en": "Something went wrong sending your message. Please try again.",
	"es": "Algo salió mal al enviar tu mensaje. Inténtalo de nuevo.",
	"pt": "Algo deu errado ao enviar sua mensagem. Tente novamente.",
}
