package access

import (
	"context"
	"sync"
	"time"
)

// Credential is the bearer-token material held for the current session.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// CredentialPersistence stores the session credential durably between runs.
// Implemented by the credstore package.
type CredentialPersistence interface {
	Load(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, cred Credential) error
	Purge(ctx context.Context) error
}

// TokenStore is the process-wide holder of the current bearer token. The only
// writers are SessionManager (set on auth/refresh, clear on logout) and
// Gateway (clear on 401); readers are all outbound requests.
//
// Every write carries the session generation the caller observed before its
// request went out. Clear bumps the generation, so a set from an older
// generation is discarded rather than resurrecting a token after logout.
type TokenStore struct {
	mu          sync.Mutex
	generation  uint64
	token       string
	expiresAt   time.Time
	persistence CredentialPersistence
	now         func() time.Time
	logger      Logger
}

// TokenStoreOption customizes TokenStore construction.
type TokenStoreOption func(*TokenStore)

// WithTokenStorePersistence attaches a durable credential cache. The cached
// record is written on every accepted set and removed on clear.
func WithTokenStorePersistence(p CredentialPersistence) TokenStoreOption {
	return func(s *TokenStore) {
		s.persistence = p
	}
}

// WithTokenStoreClock injects a custom clock (useful for tests).
func WithTokenStoreClock(clock func() time.Time) TokenStoreOption {
	return func(s *TokenStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithTokenStoreLogger overrides the logger used for persistence failures.
func WithTokenStoreLogger(logger Logger) TokenStoreOption {
	return func(s *TokenStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewTokenStore creates an empty token store.
func NewTokenStore(opts ...TokenStoreOption) *TokenStore {
	store := &TokenStore{now: time.Now, logger: defLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// Generation returns the current session generation. Callers snapshot it
// before starting asynchronous work and pass it back to Set.
func (s *TokenStore) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Token returns the current bearer token, "" when none is held.
func (s *TokenStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// ExpiresAt returns the held token's expiry and whether a token is held.
func (s *TokenStore) ExpiresAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt, s.token != ""
}

// Set publishes a credential acquired under the given generation. It reports
// whether the write was accepted; a write from a stale generation is a no-op.
func (s *TokenStore) Set(ctx context.Context, generation uint64, cred Credential) bool {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		s.logger.Debug("discarded stale token write for generation %d", generation)
		return false
	}
	s.token = cred.AccessToken
	s.expiresAt = cred.ExpiresAt
	persistence := s.persistence
	s.mu.Unlock()

	if persistence != nil {
		if err := persistence.Save(ctx, cred); err != nil {
			s.logger.Error("failed to persist credential: %v", err)
		}
	}
	return true
}

// Clear destroys the held token, bumps the session generation, and purges the
// durable cache. It returns the new generation.
func (s *TokenStore) Clear(ctx context.Context) uint64 {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.generation++
	generation := s.generation
	persistence := s.persistence
	s.mu.Unlock()

	if persistence != nil {
		if err := persistence.Purge(ctx); err != nil {
			s.logger.Error("failed to purge credential cache: %v", err)
		}
	}
	return generation
}

// Restore loads the persisted credential, publishing its access token when it
// is still unexpired. It returns the full credential (for refresh material)
// and whether one was found.
func (s *TokenStore) Restore(ctx context.Context) (*Credential, bool) {
	s.mu.Lock()
	persistence := s.persistence
	generation := s.generation
	s.mu.Unlock()

	if persistence == nil {
		return nil, false
	}

	cred, err := persistence.Load(ctx)
	if err != nil {
		s.logger.Error("failed to load persisted credential: %v", err)
		return nil, false
	}
	if cred == nil {
		return nil, false
	}

	if cred.AccessToken != "" && s.now().Before(cred.ExpiresAt) {
		s.mu.Lock()
		if generation == s.generation {
			s.token = cred.AccessToken
			s.expiresAt = cred.ExpiresAt
		}
		s.mu.Unlock()
	}

	return cred, true
}
