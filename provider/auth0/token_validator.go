package auth0

import (
	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/homeledger/go-access"
)

// tokenValidator verifies RS256 access tokens against the tenant JWKS.
type tokenValidator struct {
	jwks     *keyfunc.JWKS
	issuer   string
	audience string
	logger   access.Logger
}

func newTokenValidator(cfg Config, logger access.Logger) (*tokenValidator, error) {
	jwks, err := keyfunc.Get(cfg.jwksURL(), keyfunc.Options{
		RefreshInterval:   cfg.CacheTTL,
		RefreshRateLimit:  cfg.CacheTTL / 2,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Error("JWKS background refresh failed: %v", err)
		},
	})
	if err != nil {
		return nil, err
	}

	return &tokenValidator{
		jwks:     jwks,
		issuer:   cfg.issuerURL(),
		audience: cfg.Audience,
		logger:   logger,
	}, nil
}

func (v *tokenValidator) validate(tokenString string) (*Claims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
	}
	if v.audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, v.jwks.Keyfunc, parserOptions...)
	if err != nil {
		return nil, err
	}

	parsed, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return newClaims(parsed), nil
}

func (v *tokenValidator) close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
