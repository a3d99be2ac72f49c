// sessions.go — Per-owner chat session registry.
//
// Each chat owner (student id or guest id) gets one long-lived Session that
// carries their message list, conversation pointer, and pagination state
// across requests. Idle sessions are evicted by Sweep.
package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chartschool/platform/internal/chatbot"
	"github.com/chartschool/platform/internal/store"
)

// sessionIdleTTL is how long a session survives without a request.
const sessionIdleTTL = 30 * time.Minute

type sessionEntry struct {
	session  *chatbot.Session
	lastUsed time.Time
}

// SessionRegistry maps owner keys to live chat sessions.
type SessionRegistry struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry

	api   *chatbot.Client
	convs store.ConversationStore
	log   *logrus.Entry
	now   func() time.Time
}

// NewSessionRegistry returns an empty registry.
func NewSessionRegistry(api *chatbot.Client, convs store.ConversationStore, log *logrus.Entry) *SessionRegistry {
	return &SessionRegistry{
		entries: make(map[string]*sessionEntry),
		api:     api,
		convs:   convs,
		log:     log,
		now:     time.Now,
	}
}

// Get returns the owner's session, creating and starting one on first use.
func (reg *SessionRegistry) Get(ctx context.Context, owner chatbot.Owner, cfg chatbot.SessionConfig) *chatbot.Session {
	reg.mu.Lock()
	if e, ok := reg.entries[owner.Key()]; ok {
		e.lastUsed = reg.now()
		s := e.session
		reg.mu.Unlock()
		// Start is idempotent after first hydration; refreshes nothing.
		return s
	}

	var convs store.ConversationStore
	if owner.Authenticated {
		convs = reg.convs
	}
	s := chatbot.NewSession(reg.api, convs, owner, cfg, reg.log)
	reg.entries[owner.Key()] = &sessionEntry{session: s, lastUsed: reg.now()}
	reg.mu.Unlock()

	s.Start(ctx)
	return s
}

// Drop closes and removes the owner's session.
func (reg *SessionRegistry) Drop(ownerKey string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if e, ok := reg.entries[ownerKey]; ok {
		e.session.Close()
		delete(reg.entries, ownerKey)
	}
}

// Len returns the number of live sessions.
func (reg *SessionRegistry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.entries)
}

// Sweep closes sessions idle longer than sessionIdleTTL. Run it periodically
// from the server loop.
func (reg *SessionRegistry) Sweep() int {
	cutoff := reg.now().Add(-sessionIdleTTL)
	reg.mu.Lock()
	defer reg.mu.Unlock()

	evicted := 0
	for key, e := range reg.entries {
		if e.lastUsed.Before(cutoff) {
			e.session.Close()
			delete(reg.entries, key)
			evicted++
		}
	}
	return evicted
}
