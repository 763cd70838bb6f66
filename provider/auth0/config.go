package auth0

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config holds the Auth0 tenant configuration for the redirect-based
// authorization-code flow.
type Config struct {
	// Domain is the Auth0 tenant domain (e.g., "example.us.auth0.com").
	Domain string

	// ClientID is the application client ID.
	ClientID string

	// ClientSecret is the application client secret. Empty for public
	// (native) clients using a non-confidential grant.
	ClientSecret string

	// RedirectURI is where the provider sends the authorization code.
	RedirectURI string

	// Audience is the API identifier requested for the access token.
	Audience string

	// Scopes requested during authorization.
	// Default: "openid profile email offline_access".
	Scopes []string

	// Issuer overrides the default issuer URL (optional).
	// Default: "https://{Domain}/".
	Issuer string

	// CacheTTL is how long to cache JWKS keys.
	// Default: 1 hour.
	CacheTTL time.Duration

	// Endpoint overrides, mainly for tests.
	AuthURL   string
	TokenURL  string
	LogoutURL string
	JWKSURL   string

	HTTPClient *http.Client
}

// DefaultScopes returns the scopes requested when none are configured. The
// offline_access scope asks for the refresh material that backs silent
// session restore.
func DefaultScopes() []string {
	return []string{"openid", "profile", "email", "offline_access"}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(domain, clientID, redirectURI string) Config {
	return Config{
		Domain:      domain,
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Scopes:      DefaultScopes(),
		CacheTTL:    time.Hour,
	}
}

func (c Config) issuerURL() string {
	if c.Issuer != "" {
		return normalizeIssuer(c.Issuer)
	}

	domain := strings.TrimSpace(c.Domain)
	if domain == "" {
		return ""
	}

	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return normalizeIssuer(domain)
	}

	return fmt.Sprintf("https://%s/", strings.TrimSuffix(domain, "/"))
}

func (c Config) authURL() string {
	if c.AuthURL != "" {
		return c.AuthURL
	}
	return c.issuerURL() + "authorize"
}

func (c Config) tokenURL() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return c.issuerURL() + "oauth/token"
}

func (c Config) logoutURL() string {
	if c.LogoutURL != "" {
		return c.LogoutURL
	}
	return c.issuerURL() + "v2/logout"
}

func (c Config) jwksURL() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	return c.issuerURL() + ".well-known/jwks.json"
}

func normalizeIssuer(issuer string) string {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return issuer
	}
	if strings.HasSuffix(issuer, "/") {
		return issuer
	}
	return issuer + "/"
}
