package access

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Claims exposes the identity assertions available after the provider's
// access token has been validated.
type Claims interface {
	Subject() string
	Email() string
	Nickname() string
	Name() string
	ExpiresAt() *time.Time
}

// ProviderToken is the token material returned by the identity provider.
type ProviderToken struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

// IdentityProvider is the external identity collaborator: a redirect-based
// authorization-code flow with silent refresh support.
type IdentityProvider interface {
	// AuthCodeURL returns the URL to send the user to for authorization.
	AuthCodeURL(state string, opts ...AuthCodeOption) string

	// Exchange trades an authorization code for tokens.
	Exchange(ctx context.Context, code string) (*ProviderToken, error)

	// Refresh obtains a fresh access token while the provider session is
	// still valid.
	Refresh(ctx context.Context, refreshToken string) (*ProviderToken, error)

	// ValidateToken verifies an access token and extracts its claims.
	ValidateToken(ctx context.Context, accessToken string) (Claims, error)

	// LogoutURL returns the URL that clears the provider session and sends
	// the user back to returnTo.
	LogoutURL(returnTo string) string
}

// AuthCodeOption configures the authorization URL.
type AuthCodeOption func(*authCodeConfig)

// WithScreenHint distinguishes "sign in" from "sign up" presentation. The
// value is forwarded opaquely to the identity provider.
func WithScreenHint(hint string) AuthCodeOption {
	return func(c *authCodeConfig) {
		c.screenHint = hint
	}
}

// WithScopes sets additional scopes for the auth request.
func WithScopes(scopes ...string) AuthCodeOption {
	return func(c *authCodeConfig) {
		c.scopes = append(c.scopes, scopes...)
	}
}

// WithPrompt sets the prompt parameter (e.g. "consent", "select_account").
func WithPrompt(prompt string) AuthCodeOption {
	return func(c *authCodeConfig) {
		c.prompt = prompt
	}
}

type authCodeConfig struct {
	scopes     []string
	screenHint string
	prompt     string
}

// AuthCodeConfig represents applied auth code options in a provider-friendly form.
type AuthCodeConfig struct {
	Scopes     []string
	ScreenHint string
	Prompt     string
}

// ApplyAuthCodeOptions applies AuthCodeOption values and returns a normalized config.
func ApplyAuthCodeOptions(scopes []string, opts ...AuthCodeOption) AuthCodeConfig {
	cfg := authCodeConfig{scopes: append([]string(nil), scopes...)}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return AuthCodeConfig{
		Scopes:     cfg.scopes,
		ScreenHint: cfg.screenHint,
		Prompt:     cfg.prompt,
	}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCESS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCESS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCESS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
