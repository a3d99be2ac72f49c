// Package auth validates platform JWTs for the gateway.
//
// The gateway never issues tokens — the accounts service does. Here we only
// verify the bearer token and expose the student identity to handlers.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT claims of a ChartSchool student.
type Claims struct {
	jwt.RegisteredClaims
	Plan          string `json:"plan,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
}

// UserID returns the student id carried in the subject claim.
func (c *Claims) UserID() string { return c.Subject }

// Verifier validates HS256 access tokens against a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier for the given shared secret. An empty
// secret yields a Verifier that rejects every token (dev without auth).
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Validate parses and validates an access token, returning its claims.
func (v *Verifier) Validate(tokenStr string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, errors.New("auth: no JWT secret configured")
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing subject")
	}
	return claims, nil
}
