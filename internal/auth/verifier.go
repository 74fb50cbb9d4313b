package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClockSkew is the tolerance applied to exp/iat/nbf comparisons.
const ClockSkew = 60 * time.Second

// VerifyOptions parameterizes a single Verify call.
type VerifyOptions struct {
	ExpectedIssuer         string
	ExpectedAudiencePrefix string
	ExpectedServiceID      string // optional; falls back to the token's own service_id claim
	ExpectedRoomID         string // optional
}

// Verifier validates RSA-SHA256 signed access tokens against a cached
// remote key set and the claim contract in §4.1.
type Verifier struct {
	keys *KeySetCache
}

// NewVerifier builds a Verifier backed by the given key set cache.
func NewVerifier(keys *KeySetCache) *Verifier {
	return &Verifier{keys: keys}
}

// Verify validates token and returns its extracted claim set, or an
// *InvalidTokenError describing why verification failed.
func (v *Verifier) Verify(token string, opts VerifyOptions) (ClaimSet, error) {
	claims, err := v.parseAndValidate(token, opts)
	if err == nil {
		return claims, nil
	}
	if !shouldRetryOnKeyRotation(err) {
		return ClaimSet{}, err
	}

	// Upstream may have rotated keys under the same kid; force a
	// refresh and retry exactly once before giving up.
	_ = v.keys.ForceRefresh()
	claims, err = v.parseAndValidate(token, opts)
	if err != nil {
		return ClaimSet{}, err
	}
	return claims, nil
}

func shouldRetryOnKeyRotation(err error) bool {
	var invalid *InvalidTokenError
	if e, ok := err.(*InvalidTokenError); ok {
		invalid = e
	} else {
		return false
	}
	return invalid.Reason == "no matching key" || invalid.Reason == "signature invalid"
}

func (v *Verifier) parseAndValidate(tokenStr string, opts VerifyOptions) (ClaimSet, error) {
	var claims tokenClaims

	parsed, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		key, err := v.keys.Key(kid)
		if err != nil {
			return nil, &InvalidTokenError{Reason: "no matching key", Err: err}
		}
		return key, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithLeeway(ClockSkew))

	if err != nil {
		if ite, ok := asInvalidToken(err); ok {
			return ClaimSet{}, ite
		}
		return ClaimSet{}, invalidToken("signature invalid", err)
	}
	if !parsed.Valid {
		return ClaimSet{}, invalidToken("token not valid", nil)
	}

	if opts.ExpectedIssuer != "" && claims.Issuer != opts.ExpectedIssuer {
		return ClaimSet{}, invalidToken("issuer mismatch", nil)
	}

	serviceID := opts.ExpectedServiceID
	if serviceID == "" {
		serviceID = claims.ServiceID
	}
	expectedAud := opts.ExpectedAudiencePrefix + serviceID
	if !audienceContains(claims.Audience, expectedAud) {
		return ClaimSet{}, invalidToken("audience mismatch", nil)
	}

	if !containsString(claims.Permissions, "play") {
		return ClaimSet{}, invalidToken("missing play permission", nil)
	}

	if claims.SessionID == "" {
		return ClaimSet{}, invalidToken("missing session_id", nil)
	}

	if opts.ExpectedRoomID != "" && claims.RoomID != opts.ExpectedRoomID {
		return ClaimSet{}, invalidToken("room_id mismatch", nil)
	}

	var exp, iat time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		iat = claims.IssuedAt.Time
	}

	return ClaimSet{
		Subject:     claims.Subject,
		RoomID:      claims.RoomID,
		SessionID:   claims.SessionID,
		ServiceID:   claims.ServiceID,
		Permissions: claims.Permissions,
		IssuedAt:    iat,
		Expiration:  exp,
	}, nil
}

func asInvalidToken(err error) (*InvalidTokenError, bool) {
	type unwrapper interface{ Unwrap() error }
	for e := err; e != nil; {
		if ite, ok := e.(*InvalidTokenError); ok {
			return ite, true
		}
		u, ok := e.(unwrapper)
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return nil, false
}

func audienceContains(aud jwt.ClaimStrings, want string) bool {
	return containsString(aud, want)
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
