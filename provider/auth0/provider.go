// Package auth0 implements the access.IdentityProvider contract against an
// Auth0 tenant: authorization-code login, refresh-token renewal, RS256 token
// validation via the tenant JWKS, and the v2 logout redirect.
package auth0

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/homeledger/go-access"
)

const (
	TextCodeExchangeFailed = "auth0_token_exchange_failed"
	TextCodeRefreshFailed  = "auth0_token_refresh_failed"
)

// ErrExchangeFailed is returned when the authorization-code exchange fails.
var ErrExchangeFailed = goerrors.New("auth0 token exchange failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeExchangeFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshFailed is returned when the provider rejects the refresh grant,
// i.e. the provider session has fully expired.
var ErrRefreshFailed = goerrors.New("auth0 token refresh failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeRefreshFailed).
	WithCode(goerrors.CodeUnauthorized)

// Provider implements access.IdentityProvider for Auth0.
type Provider struct {
	config     Config
	httpClient *http.Client
	logger     access.Logger
	validate   func(tokenString string) (access.Claims, error)
	closer     func()
	now        func() time.Time
}

var _ access.IdentityProvider = (*Provider)(nil)

// Option customizes Provider construction.
type Option func(*Provider)

// WithLogger overrides the default logger.
func WithLogger(logger access.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTokenValidator replaces the JWKS-backed validator. When set, the JWKS
// is never fetched; useful for tests and custom validation pipelines.
func WithTokenValidator(validate func(tokenString string) (access.Claims, error)) Option {
	return func(p *Provider) {
		if validate != nil {
			p.validate = validate
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(p *Provider) {
		if clock != nil {
			p.now = clock
		}
	}
}

// New creates an Auth0 provider. Unless a custom token validator is supplied,
// the tenant JWKS is fetched eagerly so the first login does not pay for it.
func New(cfg Config, opts ...Option) (*Provider, error) {
	if strings.TrimSpace(cfg.Domain) == "" && cfg.Issuer == "" {
		return nil, goerrors.New("auth0: tenant domain is required", goerrors.CategoryBadInput)
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	p := &Provider{
		config:     cfg,
		httpClient: client,
		logger:     defLogger{},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	if p.validate == nil {
		validator, err := newTokenValidator(cfg, p.logger)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "auth0: failed to fetch JWKS")
		}
		p.validate = func(tokenString string) (access.Claims, error) {
			return validator.validate(tokenString)
		}
		p.closer = validator.close
	}

	return p, nil
}

// Close stops the JWKS background refresh.
func (p *Provider) Close() {
	if p.closer != nil {
		p.closer()
	}
}

// AuthCodeURL implements access.IdentityProvider.
func (p *Provider) AuthCodeURL(state string, opts ...access.AuthCodeOption) string {
	cfg := access.ApplyAuthCodeOptions(p.config.Scopes, opts...)
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}

	params := url.Values{
		"response_type": {"code"},
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURI},
		"scope":         {strings.Join(scopes, " ")},
		"state":         {state},
	}
	if p.config.Audience != "" {
		params.Set("audience", p.config.Audience)
	}
	if cfg.ScreenHint != "" {
		params.Set("screen_hint", cfg.ScreenHint)
	}
	if cfg.Prompt != "" {
		params.Set("prompt", cfg.Prompt)
	}

	return p.config.authURL() + "?" + params.Encode()
}

// Exchange implements access.IdentityProvider.
func (p *Provider) Exchange(ctx context.Context, code string) (*access.ProviderToken, error) {
	data := url.Values{
		"grant_type":   {"authorization_code"},
		"client_id":    {p.config.ClientID},
		"code":         {code},
		"redirect_uri": {p.config.RedirectURI},
	}
	if p.config.ClientSecret != "" {
		data.Set("client_secret", p.config.ClientSecret)
	}

	return p.requestToken(ctx, data, ErrExchangeFailed, "exchange")
}

// Refresh implements access.IdentityProvider.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*access.ProviderToken, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {p.config.ClientID},
		"refresh_token": {refreshToken},
	}
	if p.config.ClientSecret != "" {
		data.Set("client_secret", p.config.ClientSecret)
	}

	return p.requestToken(ctx, data, ErrRefreshFailed, "refresh")
}

// ValidateToken implements access.IdentityProvider.
func (p *Provider) ValidateToken(ctx context.Context, accessToken string) (access.Claims, error) {
	return p.validate(accessToken)
}

// LogoutURL implements access.IdentityProvider.
func (p *Provider) LogoutURL(returnTo string) string {
	params := url.Values{
		"client_id": {p.config.ClientID},
	}
	if returnTo != "" {
		params.Set("returnTo", returnTo)
	}
	return p.config.logoutURL() + "?" + params.Encode()
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

func (p *Provider) requestToken(ctx context.Context, data url.Values, base *goerrors.Error, operation string) (*access.ProviderToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.tokenURL(), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, providerError(base, operation, 0, "", "", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, providerError(base, operation, 0, "", "", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, providerError(base, operation, res.StatusCode, "", "", err)
	}

	var tokenRes tokenResponse
	if err := json.Unmarshal(body, &tokenRes); err != nil {
		return nil, providerError(base, operation, res.StatusCode, "invalid_response", "failed to decode token response", err)
	}

	if res.StatusCode != http.StatusOK || tokenRes.Error != "" {
		return nil, providerError(base, operation, res.StatusCode, tokenRes.Error, tokenRes.ErrorDesc, nil)
	}
	if tokenRes.AccessToken == "" {
		return nil, providerError(base, operation, res.StatusCode, "missing_access_token", "missing access token", nil)
	}

	return &access.ProviderToken{
		AccessToken:  tokenRes.AccessToken,
		RefreshToken: tokenRes.RefreshToken,
		TokenType:    tokenRes.TokenType,
		ExpiresAt:    p.now().Add(time.Duration(tokenRes.ExpiresIn) * time.Second),
	}, nil
}

func providerError(base *goerrors.Error, operation string, status int, code, description string, err error) error {
	meta := map[string]any{
		"provider":  "auth0",
		"operation": operation,
	}
	if status != 0 {
		meta["status"] = status
	}
	if code != "" {
		meta["code"] = code
	}
	if description != "" {
		meta["description"] = description
	}

	clone := base.Clone()
	if clone == nil {
		return err
	}
	if err != nil {
		clone.Source = err
	}
	return clone.WithMetadata(meta)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	log.Printf("[ERR] AUTH0 "+format, args...)
}

func (d defLogger) Info(format string, args ...any) {
	log.Printf("[INF] AUTH0 "+format, args...)
}

func (d defLogger) Debug(format string, args ...any) {}
