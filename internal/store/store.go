// Package store holds the gateway's two small persistence concerns for chat
// sessions: the durable per-user active-conversation pointer, and the
// ephemeral per-session guest identity.
//
// The conversation pointer is plain last-write-wins storage — concurrent
// sessions writing the same user's pointer are not coordinated. Guest
// identities live only for the session TTL and are never written for
// authenticated users.
package store

import (
	"context"
	"time"
)

// ErrNotFound is returned when no value exists for the requested owner.
// Callers treat absence as "start fresh", never as a failure.
type ErrNotFoundType struct{}

func (ErrNotFoundType) Error() string { return "store: not found" }

// ErrNotFound is the sentinel absence error for both stores.
var ErrNotFound = ErrNotFoundType{}

// ConversationStore persists the active conversation id per authenticated
// user. Implementations must be safe for concurrent use.
type ConversationStore interface {
	// Get returns the stored conversation id for a user, or ErrNotFound.
	Get(ctx context.Context, userID string) (string, error)
	// Set stores (or replaces) the conversation id for a user.
	Set(ctx context.Context, userID, conversationID string) error
	// Delete removes the stored conversation id. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, userID string) error
}

// GuestStore holds minted guest identities keyed by session. Entries expire
// after the session TTL.
type GuestStore interface {
	// Get returns the guest identity for a session key, or ErrNotFound.
	Get(ctx context.Context, sessionKey string) (string, error)
	// Set stores a guest identity with the given TTL.
	Set(ctx context.Context, sessionKey, guestID string, ttl time.Duration) error
}
