package access

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// Provisioner reconciles the backend user record after a successful identity
// login: it fetches the current profile and, for a first-time principal,
// registers one derived from the identity claims. It runs once per transition
// into the authenticated state; a failed registration is never retried
// automatically.
type Provisioner struct {
	mu      sync.Mutex
	gateway *Gateway
	profile *UserProfile
	logger  Logger

	// monotonically increasing per-request stamp; a result is applied only
	// when its originating request is still the most recent one, so a slow
	// response cannot land after the view that asked for it is gone
	requestSeq atomic.Uint64
}

// ProvisionerOption customizes Provisioner construction.
type ProvisionerOption func(*Provisioner)

// WithProvisionerLogger overrides the default logger.
func WithProvisionerLogger(logger Logger) ProvisionerOption {
	return func(p *Provisioner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvisioner creates a provisioner issuing calls through gateway.
func NewProvisioner(gateway *Gateway, opts ...ProvisionerOption) *Provisioner {
	p := &Provisioner{
		gateway: gateway,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Profile returns the cached backend profile, nil before provisioning.
func (p *Provisioner) Profile() *UserProfile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profile
}

// Reset drops the cached profile. Wired as a SessionManager logout hook.
func (p *Provisioner) Reset() {
	p.requestSeq.Add(1)
	p.mu.Lock()
	p.profile = nil
	p.mu.Unlock()
}

// EnsureProfile fetches the backend profile for the authenticated principal,
// registering one on a not-found response. The register call happens at most
// once per invocation: a failed registration returns ErrProvisioning with the
// backend's message and is left for the user to retry.
func (p *Provisioner) EnsureProfile(ctx context.Context, claims Claims) (*UserProfile, error) {
	seq := p.requestSeq.Add(1)

	var profile UserProfile
	err := p.gateway.Get(ctx, "/api/auth/me", &profile)
	if err == nil {
		p.apply(seq, &profile)
		return &profile, nil
	}

	if StatusCode(err) != http.StatusNotFound {
		clone := ErrProfileRetrieval.Clone()
		clone.Source = err
		if msg := ResponseMessage(err); msg != "" {
			clone = clone.WithMetadata(map[string]any{"response_message": msg})
		}
		return nil, clone
	}

	payload := RegisterPayload{
		Username: UsernameFromClaims(claims),
		Email:    claims.Email(),
	}
	if err := payload.Validate(); err != nil {
		clone := ErrProvisioning.Clone()
		clone.Source = err
		return nil, clone
	}

	p.logger.Info("registering first-time user %q", payload.Username)

	if err := p.gateway.Post(ctx, "/api/auth/register", payload, &profile); err != nil {
		clone := ErrProvisioning.Clone()
		clone.Source = err
		if msg := ResponseMessage(err); msg != "" {
			clone.Message = msg
			clone = clone.WithMetadata(map[string]any{"response_message": msg})
		}
		return nil, clone
	}

	p.apply(seq, &profile)
	return &profile, nil
}

// RefreshProfile re-fetches the backend profile after profile-affecting
// actions. Failures are logged, not fatal: the stale profile is retained and
// returned.
func (p *Provisioner) RefreshProfile(ctx context.Context) *UserProfile {
	seq := p.requestSeq.Add(1)

	var profile UserProfile
	if err := p.gateway.Get(ctx, "/api/auth/me", &profile); err != nil {
		p.logger.Error("profile refresh failed, keeping stale profile: %v", err)
		return p.Profile()
	}
	if applied := p.apply(seq, &profile); applied != nil {
		return applied
	}
	return p.Profile()
}

// apply stores the fetched profile unless a newer request has started since.
func (p *Provisioner) apply(seq uint64, profile *UserProfile) *UserProfile {
	if seq != p.requestSeq.Load() {
		p.logger.Debug("discarding superseded profile response seq=%d", seq)
		return nil
	}
	p.mu.Lock()
	p.profile = profile
	p.mu.Unlock()
	return profile
}

// UsernameFromClaims derives a registration username from identity claims
// using the ordered candidate chain nickname, display name, email local part.
func UsernameFromClaims(claims Claims) string {
	for _, candidate := range usernameCandidates(claims) {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

func usernameCandidates(claims Claims) []string {
	if claims == nil {
		return nil
	}
	localPart := ""
	if email := claims.Email(); email != "" {
		localPart = strings.SplitN(email, "@", 2)[0]
	}
	return []string{
		strings.TrimSpace(claims.Nickname()),
		strings.TrimSpace(claims.Name()),
		strings.TrimSpace(localPart),
	}
}
