package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://auth.usion.test/"
const testAudiencePrefix = "usion-service:"

type testKeySet struct {
	key  *rsa.PrivateKey
	kid  string
	serveKeys bool
}

func newTestKeySet(t *testing.T) *testKeySet {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &testKeySet{key: key, kid: "test-kid-1", serveKeys: true}
}

func (ks *testKeySet) server(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ks.serveKeys {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		pub := ks.key.PublicKey
		resp := jwksResponse{Keys: []jwk{{
			Kty: "RSA",
			Kid: ks.kid,
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(bigEndianFromInt(pub.E)),
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func bigEndianFromInt(e int) []byte {
	// Standard JWK 'e' encoding for 65537 is 3 bytes: 0x01 0x00 0x01.
	if e == 65537 {
		return []byte{0x01, 0x00, 0x01}
	}
	b := []byte{byte(e >> 16), byte(e >> 8), byte(e)}
	return b
}

func (ks *testKeySet) sign(t *testing.T, claims tokenClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = ks.kid
	s, err := tok.SignedString(ks.key)
	require.NoError(t, err)
	return s
}

func baseClaims(serviceID string) tokenClaims {
	now := time.Now()
	return tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "player-1",
			Audience:  jwt.ClaimStrings{testAudiencePrefix + serviceID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
		},
		RoomID:      "room-42",
		SessionID:   "sess-1",
		ServiceID:   serviceID,
		Permissions: []string{"play"},
	}
}

func TestVerifySucceeds(t *testing.T) {
	ks := newTestKeySet(t)
	srv := ks.server(t)
	defer srv.Close()

	cache := NewKeySetCache(srv.URL, time.Minute, time.Second, 2*time.Second)
	v := NewVerifier(cache)

	token := ks.sign(t, baseClaims("arena"))
	claims, err := v.Verify(token, VerifyOptions{
		ExpectedIssuer:         testIssuer,
		ExpectedAudiencePrefix: testAudiencePrefix,
		ExpectedServiceID:      "arena",
	})
	require.NoError(t, err)
	require.Equal(t, "sess-1", claims.SessionID)
	require.Equal(t, "room-42", claims.RoomID)
	require.True(t, claims.HasPermission("play"))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	ks := newTestKeySet(t)
	srv := ks.server(t)
	defer srv.Close()

	cache := NewKeySetCache(srv.URL, time.Minute, time.Second, 2*time.Second)
	v := NewVerifier(cache)

	c := baseClaims("arena")
	past := time.Now().Add(-10 * time.Minute)
	c.IssuedAt = jwt.NewNumericDate(past.Add(-5 * time.Minute))
	c.ExpiresAt = jwt.NewNumericDate(past)
	token := ks.sign(t, c)

	_, err := v.Verify(token, VerifyOptions{
		ExpectedIssuer:         testIssuer,
		ExpectedAudiencePrefix: testAudiencePrefix,
		ExpectedServiceID:      "arena",
	})
	require.Error(t, err)
}

func TestVerifyRejectsAudienceMismatch(t *testing.T) {
	ks := newTestKeySet(t)
	srv := ks.server(t)
	defer srv.Close()

	cache := NewKeySetCache(srv.URL, time.Minute, time.Second, 2*time.Second)
	v := NewVerifier(cache)

	token := ks.sign(t, baseClaims("other-service"))
	_, err := v.Verify(token, VerifyOptions{
		ExpectedIssuer:         testIssuer,
		ExpectedAudiencePrefix: testAudiencePrefix,
		ExpectedServiceID:      "arena",
	})
	require.Error(t, err)
	require.True(t, IsInvalidToken(err))
}

func TestVerifyRejectsMissingPlayPermission(t *testing.T) {
	ks := newTestKeySet(t)
	srv := ks.server(t)
	defer srv.Close()

	cache := NewKeySetCache(srv.URL, time.Minute, time.Second, 2*time.Second)
	v := NewVerifier(cache)

	c := baseClaims("arena")
	c.Permissions = []string{"spectate"}
	token := ks.sign(t, c)

	_, err := v.Verify(token, VerifyOptions{
		ExpectedIssuer:         testIssuer,
		ExpectedAudiencePrefix: testAudiencePrefix,
		ExpectedServiceID:      "arena",
	})
	require.Error(t, err)
}

func TestVerifyRejectsRoomIDMismatch(t *testing.T) {
	ks := newTestKeySet(t)
	srv := ks.server(t)
	defer srv.Close()

	cache := NewKeySetCache(srv.URL, time.Minute, time.Second, 2*time.Second)
	v := NewVerifier(cache)

	token := ks.sign(t, baseClaims("arena"))
	_, err := v.Verify(token, VerifyOptions{
		ExpectedIssuer:         testIssuer,
		ExpectedAudiencePrefix: testAudiencePrefix,
		ExpectedServiceID:      "arena",
		ExpectedRoomID:         "some-other-room",
	})
	require.Error(t, err)
}

// TestVerifyRetriesOnceAfterKeyRotation exercises the one-shot
// force-refresh retry: the cache is warmed with the current key, then
// the server rotates to a new key under the same kid, so the first
// attempt fails signature verification against the cached key and only
// the forced refresh and retry pick up the rotated key.
func TestVerifyRetriesOnceAfterKeyRotation(t *testing.T) {
	ks := newTestKeySet(t)
	srv := ks.server(t)
	defer srv.Close()

	cache := NewKeySetCache(srv.URL, time.Hour, time.Millisecond, 2*time.Second)
	v := NewVerifier(cache)

	// Warm the cache with the current key, then rotate to a new one
	// server-side (same kid) without bumping the in-memory cache.
	require.NoError(t, cache.ForceRefresh())

	newKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	ks.key = newKey

	token := ks.sign(t, baseClaims("arena"))

	claims, err := v.Verify(token, VerifyOptions{
		ExpectedIssuer:         testIssuer,
		ExpectedAudiencePrefix: testAudiencePrefix,
		ExpectedServiceID:      "arena",
	})
	require.NoError(t, err)
	require.Equal(t, "sess-1", claims.SessionID)
}

func TestVerifyFailsWhenKeyNeverAppears(t *testing.T) {
	ks := newTestKeySet(t)
	srv := ks.server(t)
	defer srv.Close()

	cache := NewKeySetCache(srv.URL, time.Hour, time.Millisecond, 2*time.Second)
	v := NewVerifier(cache)

	token := ks.sign(t, baseClaims("arena"))
	ks.kid = "unknown-kid"
	// Re-sign with a kid header the server will never publish a key for.
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, baseClaims("arena"))
	tok.Header["kid"] = "unknown-kid"
	badToken, err := tok.SignedString(ks.key)
	require.NoError(t, err)
	_ = token

	_, err = v.Verify(badToken, VerifyOptions{
		ExpectedIssuer:         testIssuer,
		ExpectedAudiencePrefix: testAudiencePrefix,
		ExpectedServiceID:      "arena",
	})
	require.Error(t, err)
}
