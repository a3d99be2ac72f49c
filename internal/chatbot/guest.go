// guest.go — Guest identity minting and validation.
//
// The conversational backend keys conversations on a Mongo-style object id,
// so guest identities mimic that shape: exactly 24 lowercase hex characters.
// The first 8 encode the mint time (Unix seconds), the remaining 16 are
// cryptographically random. Stored identities that fail validation (legacy
// formats, tampering) are discarded and re-minted before first use.
package chatbot

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/chartschool/platform/internal/store"
)

// GuestSessionTTL is how long a guest identity lives without activity.
const GuestSessionTTL = 12 * time.Hour

var guestIDRE = regexp.MustCompile(`^[0-9a-f]{24}$`)

// ValidGuestID reports whether id is a well-formed guest identity.
func ValidGuestID(id string) bool {
	return guestIDRE.MatchString(id)
}

// MintGuestID generates a fresh 24-hex guest identity.
func MintGuestID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("mint guest id: %w", err)
	}
	return fmt.Sprintf("%08x%s", time.Now().Unix(), hex.EncodeToString(buf)), nil
}

// EnsureGuestID returns the stored guest identity for a session, minting and
// persisting a new one when none exists or the stored value is malformed.
func EnsureGuestID(ctx context.Context, guests store.GuestStore, sessionKey string) (string, error) {
	stored, err := guests.Get(ctx, sessionKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	if ValidGuestID(stored) {
		return stored, nil
	}

	id, err := MintGuestID()
	if err != nil {
		return "", err
	}
	if err := guests.Set(ctx, sessionKey, id, GuestSessionTTL); err != nil {
		return "", err
	}
	return id, nil
}
