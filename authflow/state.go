package authflow

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidState = "authflow_invalid_state"
	TextCodeStateExpired = "authflow_state_expired"
)

// ErrInvalidState is returned when the callback state is missing or tampered.
var ErrInvalidState = goerrors.New("invalid login state", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(goerrors.CodeBadRequest)

// ErrStateExpired is returned when the login state has expired.
var ErrStateExpired = goerrors.New("login state expired", goerrors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(goerrors.CodeBadRequest)

// LoginState is the payload carried by the OAuth state parameter.
type LoginState struct {
	Nonce     string `json:"n"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// StateManager signs and verifies the anti-forgery state round-tripped
// through the identity provider redirect. HMAC-SHA256 over the JSON payload.
type StateManager struct {
	hmacKey []byte
	ttl     time.Duration
	now     func() time.Time
}

// StateOption customizes StateManager construction.
type StateOption func(*StateManager)

// WithStateClock injects a custom clock (useful for tests).
func WithStateClock(clock func() time.Time) StateOption {
	return func(sm *StateManager) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// NewStateManager creates a state manager with the given signing key. A zero
// ttl defaults to 10 minutes.
func NewStateManager(hmacKey []byte, ttl time.Duration, opts ...StateOption) *StateManager {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	sm := &StateManager{
		hmacKey: hmacKey,
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}
	return sm
}

// Issue creates a fresh signed state token.
func (sm *StateManager) Issue() (string, error) {
	now := sm.now()
	state := LoginState{
		Nonce:     generateNonce(),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(sm.ttl).Unix(),
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}

	mac := hmac.New(sha256.New, sm.hmacKey)
	mac.Write(payload)
	signature := mac.Sum(nil)

	return base64.URLEncoding.EncodeToString(append(signature, payload...)), nil
}

// Verify checks the signature and expiry of a state token echoed back by the
// provider redirect.
func (sm *StateManager) Verify(token string) error {
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return ErrInvalidState
	}
	if len(data) < sha256.Size {
		return ErrInvalidState
	}

	signature := data[:sha256.Size]
	payload := data[sha256.Size:]

	mac := hmac.New(sha256.New, sm.hmacKey)
	mac.Write(payload)
	if !hmac.Equal(signature, mac.Sum(nil)) {
		return ErrInvalidState
	}

	var state LoginState
	if err := json.Unmarshal(payload, &state); err != nil {
		return ErrInvalidState
	}

	if sm.now().Unix() > state.ExpiresAt {
		return ErrStateExpired
	}
	return nil
}

func generateNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
