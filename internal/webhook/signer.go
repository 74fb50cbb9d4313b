// Package webhook implements the Webhook Signer: a keyed-MAC signed POST
// of the final match result to the upstream matchmaking API. Grounded on
// the teacher's HTTP client idiom (plain stdlib net/http, no retries,
// errors wrapped and returned rather than panicked); HMAC-SHA256 signing
// uses stdlib crypto/hmac+crypto/sha256, the idiom this pool's own
// transitive JWT/auth libraries use for keyed message authentication —
// no third-party "webhook signer" library appears anywhere in the
// example pool, so stdlib crypto is the grounded choice here.
package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mtomcal/usion-arena-server/internal/sim"
)

const resultsPath = "/games/direct/results"

// Result is the match outcome submitted to the upstream API.
type Result struct {
	RoomID       string                 `json:"room_id"`
	SessionID    string                 `json:"session_id"`
	WinnerIDs    []string               `json:"winner_ids"`
	Participants []string               `json:"participants"`
	Reason       sim.TerminationReason  `json:"reason"`
	FinalStats   map[string]sim.Stats   `json:"final_stats"`
	EndedAt      string                 `json:"ended_at"`
}

// WebhookError wraps a non-2xx response or transport failure from submit.
type WebhookError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *WebhookError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook: %v", e.Err)
	}
	return fmt.Sprintf("webhook: status %d: %s", e.StatusCode, e.Body)
}

func (e *WebhookError) Unwrap() error { return e.Err }

// Signer submits signed match results to the configured API.
type Signer struct {
	apiURL     string
	serviceID  string
	keyID      string
	secret     string
	httpClient *http.Client
	now        func() time.Time
}

// NewSigner builds a Signer. httpClient may be nil, in which case a
// client with a 15s timeout is used.
func NewSigner(apiURL, serviceID, keyID, secret string, httpClient *http.Client) *Signer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Signer{
		apiURL:     apiURL,
		serviceID:  serviceID,
		keyID:      keyID,
		secret:     secret,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Submit POSTs result to "<apiURL>/games/direct/results", signed per the
// canonical-string/HMAC-SHA256 scheme, and returns the decoded response
// body on a 2xx status. Any other outcome is a *WebhookError.
func (s *Signer) Submit(result Result) (map[string]any, error) {
	result.EndedAt = s.now().UTC().Format(time.RFC3339)

	body, err := json.Marshal(result)
	if err != nil {
		return nil, &WebhookError{Err: fmt.Errorf("marshal result: %w", err)}
	}

	ts := s.now().UTC().Unix()
	sig := s.sign(ts, http.MethodPost, resultsPath, body)

	req, err := http.NewRequest(http.MethodPost, s.apiURL+resultsPath, bytes.NewReader(body))
	if err != nil {
		return nil, &WebhookError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Usion-Service-Id", s.serviceID)
	req.Header.Set("X-Usion-Key-Id", s.keyID)
	req.Header.Set("X-Usion-Signature", sig)
	req.Header.Set("X-Usion-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Idempotency-Key", uuid.NewString())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &WebhookError{Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &WebhookError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &WebhookError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if len(respBody) == 0 {
		return nil, nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, &WebhookError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return decoded, nil
}

func (s *Signer) sign(unixSeconds int64, method, path string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	canonical := fmt.Sprintf("%d\n%s\n%s\n%s",
		unixSeconds, method, path, hex.EncodeToString(bodyHash[:]))

	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}
