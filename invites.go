package access

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// InviteManager issues, lists, and redeems household invite codes through the
// gateway. Issue and ListActive are only meaningful for the household's
// creator; the backend is the authoritative enforcer, this component performs
// advisory gating only.
type InviteManager struct {
	gateway *Gateway
	now     func() time.Time
	logger  Logger
}

// InviteOption customizes InviteManager construction.
type InviteOption func(*InviteManager)

// WithInviteClock injects a custom clock (useful for tests).
func WithInviteClock(clock func() time.Time) InviteOption {
	return func(m *InviteManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithInviteLogger overrides the default logger.
func WithInviteLogger(logger Logger) InviteOption {
	return func(m *InviteManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewInviteManager creates an invite manager issuing calls through gateway.
func NewInviteManager(gateway *Gateway, opts ...InviteOption) *InviteManager {
	m := &InviteManager{
		gateway: gateway,
		now:     time.Now,
		logger:  defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Issue creates a new invite code for the household. expiresInDays must be
// one of InviteExpirationChoices; anything else fails with
// ErrInvalidExpiration before any network call. The returned credential
// becomes the household's current code (most recent wins); previously issued
// codes are not deactivated.
func (m *InviteManager) Issue(ctx context.Context, householdID int64, expiresInDays int) (*InviteCredential, error) {
	payload := IssueInvitePayload{ExpiresInDays: expiresInDays}
	if err := payload.Validate(); err != nil {
		clone := ErrInvalidExpiration.Clone()
		clone.Source = err
		return nil, clone.WithMetadata(map[string]any{"expires_in_days": expiresInDays})
	}

	var credential InviteCredential
	path := fmt.Sprintf("/api/households/%d/invites", householdID)
	if err := m.gateway.Post(ctx, path, payload, &credential); err != nil {
		return nil, err
	}

	m.logger.Info("issued invite code for household %d, expires %s", householdID, credential.ExpiresAt)
	return &credential, nil
}

// ListActive returns the household's invite credentials that are active and
// strictly unexpired, newest first. The first element, if any, is the current
// code shown to the issuer.
func (m *InviteManager) ListActive(ctx context.Context, householdID int64) ([]InviteCredential, error) {
	var all []InviteCredential
	path := fmt.Sprintf("/api/households/%d/invites", householdID)
	if err := m.gateway.Get(ctx, path, &all); err != nil {
		return nil, err
	}

	now := m.now()
	active := make([]InviteCredential, 0, len(all))
	for _, credential := range all {
		if credential.IsActive && !credential.IsExpired(now) {
			active = append(active, credential)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return active, nil
}

// CurrentCode returns the household's single highlighted invite credential,
// nil when no active unexpired code exists.
func (m *InviteManager) CurrentCode(ctx context.Context, householdID int64) (*InviteCredential, error) {
	active, err := m.ListActive(ctx, householdID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}
	return &active[0], nil
}

// Redeem presents an invite code on behalf of a prospective member. The code
// is passed through as-is: the authoritative expiry clock is server-side, so
// no client-side validity check is performed.
func (m *InviteManager) Redeem(ctx context.Context, inviteCode string) (*Membership, error) {
	var membership Membership
	path := fmt.Sprintf("/api/households/join/%s", inviteCode)
	if err := m.gateway.Post(ctx, path, nil, &membership); err != nil {
		return nil, err
	}
	return &membership, nil
}
