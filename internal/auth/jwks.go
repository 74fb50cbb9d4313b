package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// jwk is a single entry of a standard JSON Web Key Set response.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksResponse struct {
	Keys []jwk `json:"keys"`
}

// KeySetCache fetches and caches RSA public keys from a remote JWKS
// endpoint, keyed by `kid`. Refreshes are timed-expiry driven and rate
// limited by a cooldown so that a burst of "no matching key" failures
// cannot hammer the upstream endpoint.
type KeySetCache struct {
	url        string
	httpClient *http.Client
	maxAge     time.Duration

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	limiter   *rate.Limiter
}

// NewKeySetCache builds a cache for the given JWKS URL. cooldown is
// the minimum interval between refetches; fetchTimeout bounds each GET.
func NewKeySetCache(url string, maxAge, cooldown, fetchTimeout time.Duration) *KeySetCache {
	return &KeySetCache{
		url:        url,
		httpClient: &http.Client{Timeout: fetchTimeout},
		maxAge:     maxAge,
		keys:       map[string]*rsa.PublicKey{},
		limiter:    rate.NewLimiter(rate.Every(cooldown), 1),
	}
}

// Key returns the RSA public key for kid, refreshing the cache first
// if it is empty or has aged past maxAge.
func (c *KeySetCache) Key(kid string) (*rsa.PublicKey, error) {
	c.mu.Lock()
	stale := len(c.keys) == 0 || time.Since(c.fetchedAt) > c.maxAge
	key, ok := c.keys[kid]
	c.mu.Unlock()

	if ok && !stale {
		return key, nil
	}

	if err := c.refresh(); err != nil && !ok {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok = c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("jwks: no key for kid %q", kid)
	}
	return key, nil
}

// ForceRefresh refetches the key set unconditionally, subject to the
// cooldown limiter. It is used by the verifier's one-shot retry on
// "no matching key" or signature-verification failures, to absorb
// upstream key rotation.
func (c *KeySetCache) ForceRefresh() error {
	return c.refresh()
}

func (c *KeySetCache) refresh() error {
	if !c.limiter.Allow() {
		return nil // cooldown in effect; reuse existing cache contents
	}

	resp, err := c.httpClient.Get(c.url)
	if err != nil {
		return fmt.Errorf("jwks: fetch %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks: fetch %s: status %d", c.url, resp.StatusCode)
	}

	var parsed jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("jwks: decode response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(parsed.Keys))
	for _, k := range parsed.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaPublicKeyFromJWK(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return nil
}

func rsaPublicKeyFromJWK(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode e: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
