package auth0

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims is the JWT claim shape we parse out of Auth0 access tokens.
type tokenClaims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Name     string `json:"name"`
}

// Claims implements access.Claims for a validated Auth0 token.
type Claims struct {
	subject   string
	email     string
	nickname  string
	name      string
	expiresAt *time.Time
}

func newClaims(parsed *tokenClaims) *Claims {
	claims := &Claims{
		subject:  parsed.Subject,
		email:    parsed.Email,
		nickname: parsed.Nickname,
		name:     parsed.Name,
	}
	if parsed.ExpiresAt != nil {
		expiry := parsed.ExpiresAt.Time
		claims.expiresAt = &expiry
	}
	return claims
}

func (c *Claims) Subject() string  { return c.subject }
func (c *Claims) Email() string    { return c.email }
func (c *Claims) Nickname() string { return c.nickname }
func (c *Claims) Name() string     { return c.name }
func (c *Claims) ExpiresAt() *time.Time {
	if c == nil {
		return nil
	}
	return c.expiresAt
}
