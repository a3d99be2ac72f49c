// memory.go — In-memory store implementations.
//
// Used in tests, and as the graceful-degrade fallback when Postgres or Redis
// is not configured (dev mode). State is lost on restart.
package store

import (
	"context"
	"sync"
	"time"
)

// MemoryConversationStore is a map-backed ConversationStore.
type MemoryConversationStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryConversationStore returns an empty in-memory conversation store.
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{data: make(map[string]string)}
}

func (s *MemoryConversationStore) Get(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.data[userID]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *MemoryConversationStore) Set(_ context.Context, userID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[userID] = conversationID
	return nil
}

func (s *MemoryConversationStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, userID)
	return nil
}

var _ ConversationStore = (*MemoryConversationStore)(nil)

// memoryGuestEntry pairs a guest id with its expiry deadline.
type memoryGuestEntry struct {
	guestID   string
	expiresAt time.Time
}

// MemoryGuestStore is a map-backed GuestStore with lazy expiry.
type MemoryGuestStore struct {
	mu   sync.RWMutex
	data map[string]memoryGuestEntry
	now  func() time.Time
}

// NewMemoryGuestStore returns an empty in-memory guest store.
func NewMemoryGuestStore() *MemoryGuestStore {
	return &MemoryGuestStore{data: make(map[string]memoryGuestEntry), now: time.Now}
}

func (s *MemoryGuestStore) Get(_ context.Context, sessionKey string) (string, error) {
	s.mu.RLock()
	entry, ok := s.data[sessionKey]
	s.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.data, sessionKey)
		s.mu.Unlock()
		return "", ErrNotFound
	}
	return entry.guestID, nil
}

func (s *MemoryGuestStore) Set(_ context.Context, sessionKey, guestID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionKey] = memoryGuestEntry{guestID: guestID, expiresAt: s.now().Add(ttl)}
	return nil
}

var _ GuestStore = (*MemoryGuestStore)(nil)
