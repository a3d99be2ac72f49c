// redact.go — Sensitive data masking for safe logging.
//
// These helpers ensure bearer tokens and guest identities are never written
// to logs in cleartext. Call before passing values to any log statement.
package logging

// RedactToken masks an API or session token for logging.
// Shows the first 8 characters followed by "..." to allow correlation
// without exposing the full credential.
//
// Examples:
//
//	"sk_live_abc123xyz" → "sk_live_..."
//	"" → "[empty]"
func RedactToken(t string) string {
	if len(t) == 0 {
		return "[empty]"
	}
	if len(t) <= 8 {
		return t[:1] + "..."
	}
	return t[:8] + "..."
}

// RedactGuestID masks a guest identity for logging. The timestamp prefix is
// kept (useful when correlating sessions) while the random suffix is hidden.
func RedactGuestID(id string) string {
	if len(id) < 8 {
		return "[invalid]"
	}
	return id[:8] + "..."
}
