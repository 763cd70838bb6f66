package access

import (
	"context"
	"sync"
	"time"
)

// SessionState is the UI-visible authentication state.
type SessionState string

const (
	StateUnauthenticated SessionState = "unauthenticated"
	StateAuthenticating  SessionState = "authenticating"
	StateAuthenticated   SessionState = "authenticated"
)

// Screen hints forwarded to the identity provider by Login.
const (
	ScreenHintSignIn = "login"
	ScreenHintSignUp = "signup"
)

// SessionManager wraps the identity provider's authentication flow: it tracks
// whether a session exists, exchanges and refreshes tokens, and exposes
// login/logout. The acquired bearer token is published through TokenStore.
type SessionManager struct {
	mu           sync.Mutex
	provider     IdentityProvider
	store        *TokenStore
	state        SessionState
	claims       Claims
	refreshToken string
	restored     bool
	returnTo     string
	leeway       time.Duration
	now          func() time.Time
	logger       Logger
	logoutHooks  []func()
}

// SessionOption customizes SessionManager construction.
type SessionOption func(*SessionManager)

// WithSessionClock injects a custom clock (useful for tests).
func WithSessionClock(clock func() time.Time) SessionOption {
	return func(sm *SessionManager) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithSessionLogger overrides the default logger.
func WithSessionLogger(logger Logger) SessionOption {
	return func(sm *SessionManager) {
		if logger != nil {
			sm.logger = logger
		}
	}
}

// WithRefreshLeeway sets how long before expiry a token is considered lapsed
// and refreshed silently. Default one minute.
func WithRefreshLeeway(leeway time.Duration) SessionOption {
	return func(sm *SessionManager) {
		if leeway > 0 {
			sm.leeway = leeway
		}
	}
}

// WithLogoutHook registers a callback run while local state is being cleared,
// before the logout redirect URL is returned. Used to drop the cached user
// profile alongside the token.
func WithLogoutHook(hook func()) SessionOption {
	return func(sm *SessionManager) {
		if hook != nil {
			sm.logoutHooks = append(sm.logoutHooks, hook)
		}
	}
}

// NewSessionManager creates a session manager. returnTo is the configured
// origin the provider redirects to after logout.
func NewSessionManager(provider IdentityProvider, store *TokenStore, returnTo string, opts ...SessionOption) *SessionManager {
	sm := &SessionManager{
		provider: provider,
		store:    store,
		state:    StateUnauthenticated,
		returnTo: returnTo,
		leeway:   time.Minute,
		now:      time.Now,
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}
	return sm
}

// State returns the current session state.
func (sm *SessionManager) State() SessionState {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.state
}

// Claims returns the validated identity claims, nil while unauthenticated.
func (sm *SessionManager) Claims() Claims {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.claims
}

// Restore checks for a persisted provider session once per process start.
// It enters Authenticating while the check runs and lands on Authenticated
// when a cached or refreshed token is usable, Unauthenticated otherwise.
// Subsequent calls are no-ops; routine token refresh never re-enters
// Authenticating.
func (sm *SessionManager) Restore(ctx context.Context) SessionState {
	sm.mu.Lock()
	if sm.restored {
		state := sm.state
		sm.mu.Unlock()
		return state
	}
	sm.restored = true
	sm.state = StateAuthenticating
	sm.mu.Unlock()

	cred, ok := sm.store.Restore(ctx)
	if !ok {
		return sm.setUnauthenticated()
	}

	if cred.AccessToken != "" && sm.now().Add(sm.leeway).Before(cred.ExpiresAt) {
		claims, err := sm.provider.ValidateToken(ctx, cred.AccessToken)
		if err == nil {
			return sm.setAuthenticated(claims, cred.RefreshToken)
		}
		sm.logger.Debug("persisted token failed validation, attempting refresh: %v", err)
	}

	if cred.RefreshToken == "" {
		sm.store.Clear(ctx)
		return sm.setUnauthenticated()
	}

	generation := sm.store.Generation()
	token, err := sm.provider.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		sm.logger.Info("silent session restore failed, login required: %v", err)
		sm.store.Clear(ctx)
		return sm.setUnauthenticated()
	}

	claims, err := sm.provider.ValidateToken(ctx, token.AccessToken)
	if err != nil {
		sm.store.Clear(ctx)
		return sm.setUnauthenticated()
	}

	refreshToken := token.RefreshToken
	if refreshToken == "" {
		refreshToken = cred.RefreshToken
	}
	if !sm.store.Set(ctx, generation, Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    token.ExpiresAt,
	}) {
		return sm.setUnauthenticated()
	}
	return sm.setAuthenticated(claims, refreshToken)
}

// LoginURL initiates the redirect-based login flow: the caller sends the user
// to the returned URL and control leaves the process. state is the opaque
// anti-forgery value the callback must echo back.
func (sm *SessionManager) LoginURL(state string, opts ...AuthCodeOption) string {
	return sm.provider.AuthCodeURL(state, opts...)
}

// SignupURL is LoginURL with the sign-up presentation hint applied.
func (sm *SessionManager) SignupURL(state string, opts ...AuthCodeOption) string {
	opts = append([]AuthCodeOption{WithScreenHint(ScreenHintSignUp)}, opts...)
	return sm.provider.AuthCodeURL(state, opts...)
}

// HandleCallback completes the login flow with the authorization code
// delivered to the redirect URI. On success the session is Authenticated and
// the bearer token is published to the store.
func (sm *SessionManager) HandleCallback(ctx context.Context, code string) (Claims, error) {
	sm.mu.Lock()
	sm.state = StateAuthenticating
	sm.mu.Unlock()

	generation := sm.store.Generation()

	token, err := sm.provider.Exchange(ctx, code)
	if err != nil {
		sm.setUnauthenticated()
		clone := ErrTokenAcquisition.Clone()
		clone.Source = err
		return nil, clone.WithMetadata(map[string]any{"operation": "exchange"})
	}

	claims, err := sm.provider.ValidateToken(ctx, token.AccessToken)
	if err != nil {
		sm.setUnauthenticated()
		clone := ErrTokenAcquisition.Clone()
		clone.Source = err
		return nil, clone.WithMetadata(map[string]any{"operation": "validate"})
	}

	if !sm.store.Set(ctx, generation, Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
	}) {
		sm.setUnauthenticated()
		return nil, ErrTokenAcquisition.Clone().WithMetadata(map[string]any{"operation": "stale_login"})
	}

	sm.setAuthenticated(claims, token.RefreshToken)
	return claims, nil
}

// Token returns the current valid bearer token, refreshing it silently when
// the cached one has lapsed but the provider session is still alive. It fails
// with ErrTokenAcquisition when the provider session has fully expired; that
// is the terminal condition that forces re-login.
func (sm *SessionManager) Token(ctx context.Context) (string, error) {
	if token := sm.store.Token(); token != "" {
		if expiry, ok := sm.store.ExpiresAt(); ok && sm.now().Add(sm.leeway).Before(expiry) {
			return token, nil
		}
	}

	sm.mu.Lock()
	refreshToken := sm.refreshToken
	sm.mu.Unlock()

	if refreshToken == "" {
		return "", ErrTokenAcquisition.Clone().WithMetadata(map[string]any{"operation": "refresh", "cause": "no refresh material"})
	}

	generation := sm.store.Generation()

	token, err := sm.provider.Refresh(ctx, refreshToken)
	if err != nil {
		sm.terminate(ctx)
		clone := ErrTokenAcquisition.Clone()
		clone.Source = err
		return "", clone.WithMetadata(map[string]any{"operation": "refresh"})
	}

	rotated := token.RefreshToken
	if rotated == "" {
		rotated = refreshToken
	}
	if !sm.store.Set(ctx, generation, Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: rotated,
		ExpiresAt:    token.ExpiresAt,
	}) {
		// logout fired while the refresh was in flight
		return "", ErrTokenAcquisition.Clone().WithMetadata(map[string]any{"operation": "refresh", "cause": "session ended"})
	}

	sm.mu.Lock()
	sm.refreshToken = rotated
	sm.mu.Unlock()

	return token.AccessToken, nil
}

// Logout clears all local session state, then returns the provider URL that
// ends the external session and redirects back to the configured origin. The
// local clear always happens first so no stale token can ride along on a
// request that outlives this call.
func (sm *SessionManager) Logout(ctx context.Context) string {
	sm.mu.Lock()
	sm.state = StateUnauthenticated
	sm.claims = nil
	sm.refreshToken = ""
	hooks := sm.logoutHooks
	sm.mu.Unlock()

	sm.store.Clear(ctx)
	for _, hook := range hooks {
		hook()
	}

	return sm.provider.LogoutURL(sm.returnTo)
}

func (sm *SessionManager) setAuthenticated(claims Claims, refreshToken string) SessionState {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.state = StateAuthenticated
	sm.claims = claims
	sm.refreshToken = refreshToken
	return sm.state
}

func (sm *SessionManager) setUnauthenticated() SessionState {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.state = StateUnauthenticated
	sm.claims = nil
	sm.refreshToken = ""
	return sm.state
}

// terminate is the unrecoverable-refresh path: local state is destroyed so
// the next interaction forces a fresh login.
func (sm *SessionManager) terminate(ctx context.Context) {
	sm.mu.Lock()
	sm.state = StateUnauthenticated
	sm.claims = nil
	sm.refreshToken = ""
	sm.mu.Unlock()
	sm.store.Clear(ctx)
}
