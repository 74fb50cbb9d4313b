// Package auth implements the Token Verifier: RSA-SHA256 access-token
// validation against a cached, cooldown-limited remote JSON Web Key
// Set. Grounded on golang-jwt/jwt/v5 (present in the teacher's own
// dependency graph, promoted here to a direct, exercised dependency);
// the JWKS fetch/cache/cooldown wrapper around it is hand-built since
// no JWKS-caching library is represented anywhere in the example pool.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClaimSet is the validated, extracted subset of a verified token's claims.
type ClaimSet struct {
	Subject     string
	RoomID      string
	SessionID   string
	ServiceID   string
	Permissions []string
	IssuedAt    time.Time
	Expiration  time.Time
}

// HasPermission reports whether perm is present in the claim set.
func (c ClaimSet) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// tokenClaims is the wire shape of the JWT's claim set, parsed via
// golang-jwt. RegisteredClaims supplies iss/aud/sub/iat/exp handling
// and clock-skew-tolerant validation.
type tokenClaims struct {
	jwt.RegisteredClaims
	RoomID      string   `json:"room_id"`
	SessionID   string   `json:"session_id"`
	ServiceID   string   `json:"service_id"`
	Permissions []string `json:"permissions"`
}

// InvalidTokenError carries a diagnostic reason for a verification
// failure; it is the only error type Verify ever returns.
type InvalidTokenError struct {
	Reason string
	Err    error
}

func (e *InvalidTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid token: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid token: %s", e.Reason)
}

func (e *InvalidTokenError) Unwrap() error { return e.Err }

func invalidToken(reason string, err error) error {
	return &InvalidTokenError{Reason: reason, Err: err}
}

// IsInvalidToken reports whether err is (or wraps) an InvalidTokenError.
func IsInvalidToken(err error) bool {
	var e *InvalidTokenError
	return errors.As(err, &e)
}
