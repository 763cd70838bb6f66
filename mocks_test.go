package access_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	access "github.com/homeledger/go-access"
)

type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) AuthCodeURL(state string, opts ...access.AuthCodeOption) string {
	args := m.Called(state, opts)
	return args.String(0)
}

func (m *MockIdentityProvider) Exchange(ctx context.Context, code string) (*access.ProviderToken, error) {
	args := m.Called(ctx, code)
	if token := args.Get(0); token != nil {
		return token.(*access.ProviderToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityProvider) Refresh(ctx context.Context, refreshToken string) (*access.ProviderToken, error) {
	args := m.Called(ctx, refreshToken)
	if token := args.Get(0); token != nil {
		return token.(*access.ProviderToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityProvider) ValidateToken(ctx context.Context, accessToken string) (access.Claims, error) {
	args := m.Called(ctx, accessToken)
	if claims := args.Get(0); claims != nil {
		return claims.(access.Claims), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityProvider) LogoutURL(returnTo string) string {
	args := m.Called(returnTo)
	return args.String(0)
}

type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Load(ctx context.Context) (*access.Credential, error) {
	args := m.Called(ctx)
	if cred := args.Get(0); cred != nil {
		return cred.(*access.Credential), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPersistence) Save(ctx context.Context, cred access.Credential) error {
	return m.Called(ctx, cred).Error(0)
}

func (m *MockPersistence) Purge(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type stubClaims struct {
	subject  string
	email    string
	nickname string
	name     string
	expiry   *time.Time
}

func (s stubClaims) Subject() string       { return s.subject }
func (s stubClaims) Email() string         { return s.email }
func (s stubClaims) Nickname() string      { return s.nickname }
func (s stubClaims) Name() string          { return s.name }
func (s stubClaims) ExpiresAt() *time.Time { return s.expiry }
