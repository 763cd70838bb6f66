package access_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	access "github.com/homeledger/go-access"
)

func jsonDecode(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func TestProvisionerReturnsExistingProfile(t *testing.T) {
	registerCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/me":
			w.Write([]byte(`{"id": 3, "username": "jane", "email": "jane@x.com"}`))
		case "/api/auth/register":
			registerCalls++
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	provisioner := access.NewProvisioner(access.NewGateway(server.URL, authedStore(t, "tok-1")))

	profile, err := provisioner.EnsureProfile(context.Background(), stubClaims{
		subject: "auth0|abc",
		email:   "jane@x.com",
	})

	require.NoError(t, err)
	assert.Equal(t, "jane", profile.Username)
	assert.Equal(t, 0, registerCalls, "an existing user must not be re-registered")
	assert.Equal(t, profile, provisioner.Profile())
}

func TestProvisionerRegistersFirstTimeUser(t *testing.T) {
	registerCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/me":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "User not found"}`))
		case "/api/auth/register":
			registerCalls++
			var payload access.RegisterPayload
			require.NoError(t, jsonDecode(r, &payload))
			assert.Equal(t, "jane", payload.Username, "username falls back to the email local part")
			assert.Equal(t, "jane@x.com", payload.Email)
			w.Write([]byte(`{"id": 9, "username": "jane", "email": "jane@x.com"}`))
		}
	}))
	defer server.Close()

	provisioner := access.NewProvisioner(access.NewGateway(server.URL, authedStore(t, "tok-1")))

	profile, err := provisioner.EnsureProfile(context.Background(), stubClaims{
		subject: "auth0|abc",
		email:   "jane@x.com",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, registerCalls)
	assert.Equal(t, int64(9), profile.ID)
}

func TestProvisionerPrefersNicknameOverEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/me":
			w.WriteHeader(http.StatusNotFound)
		case "/api/auth/register":
			var payload access.RegisterPayload
			require.NoError(t, jsonDecode(r, &payload))
			assert.Equal(t, "janedoe", payload.Username)
			w.Write([]byte(`{"id": 9, "username": "janedoe", "email": "jane@x.com"}`))
		}
	}))
	defer server.Close()

	provisioner := access.NewProvisioner(access.NewGateway(server.URL, authedStore(t, "tok-1")))

	_, err := provisioner.EnsureProfile(context.Background(), stubClaims{
		subject:  "auth0|abc",
		email:    "jane@x.com",
		nickname: "janedoe",
		name:     "Jane Doe",
	})

	require.NoError(t, err)
}

func TestProvisionerSurfacesRegistrationFailure(t *testing.T) {
	registerCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/me":
			w.WriteHeader(http.StatusNotFound)
		case "/api/auth/register":
			registerCalls++
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error": "Username already taken"}`))
		}
	}))
	defer server.Close()

	provisioner := access.NewProvisioner(access.NewGateway(server.URL, authedStore(t, "tok-1")))

	profile, err := provisioner.EnsureProfile(context.Background(), stubClaims{
		subject: "auth0|abc",
		email:   "jane@x.com",
	})

	require.Error(t, err)
	assert.Nil(t, profile)
	assert.True(t, access.HasTextCode(err, access.TextCodeProvisioning))
	assert.Contains(t, err.Error(), "Username already taken")
	assert.Equal(t, 1, registerCalls, "registration is attempted at most once per invocation")
	assert.Nil(t, provisioner.Profile())
}

func TestProvisionerDistinguishesRetrievalFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "database unavailable"}`))
	}))
	defer server.Close()

	provisioner := access.NewProvisioner(access.NewGateway(server.URL, authedStore(t, "tok-1")))

	_, err := provisioner.EnsureProfile(context.Background(), stubClaims{
		subject: "auth0|abc",
		email:   "jane@x.com",
	})

	require.Error(t, err)
	assert.True(t, access.HasTextCode(err, access.TextCodeProfileRetrieval))
	assert.False(t, access.HasTextCode(err, access.TextCodeProvisioning),
		"a server error is not a missing-user signal")
}

func TestProvisionerRefreshKeepsStaleProfileOnFailure(t *testing.T) {
	fail := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"id": 3, "username": "jane", "email": "jane@x.com"}`))
	}))
	defer server.Close()

	provisioner := access.NewProvisioner(access.NewGateway(server.URL, authedStore(t, "tok-1")))

	_, err := provisioner.EnsureProfile(context.Background(), stubClaims{
		subject: "auth0|abc",
		email:   "jane@x.com",
	})
	require.NoError(t, err)

	fail = true
	profile := provisioner.RefreshProfile(context.Background())

	require.NotNil(t, profile)
	assert.Equal(t, "jane", profile.Username)
}

func TestProvisionerRefreshProfileIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 3, "username": "jane", "email": "jane@x.com", "created_at": "2024-01-01T00:00:00Z"}`))
	}))
	defer server.Close()

	provisioner := access.NewProvisioner(access.NewGateway(server.URL, authedStore(t, "tok-1")))

	first := provisioner.RefreshProfile(context.Background())
	second := provisioner.RefreshProfile(context.Background())

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second, "back-to-back refreshes with no mutation yield the same profile")
	assert.Equal(t, *second, *provisioner.Profile())
}

func TestProvisionerResetDropsProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 3, "username": "jane", "email": "jane@x.com"}`))
	}))
	defer server.Close()

	provisioner := access.NewProvisioner(access.NewGateway(server.URL, authedStore(t, "tok-1")))

	_, err := provisioner.EnsureProfile(context.Background(), stubClaims{
		subject: "auth0|abc",
		email:   "jane@x.com",
	})
	require.NoError(t, err)
	require.NotNil(t, provisioner.Profile())

	provisioner.Reset()

	assert.Nil(t, provisioner.Profile())
}

func TestUsernameFromClaims(t *testing.T) {
	cases := []struct {
		name     string
		claims   stubClaims
		expected string
	}{
		{"nickname wins", stubClaims{nickname: "janedoe", name: "Jane Doe", email: "jane@x.com"}, "janedoe"},
		{"name next", stubClaims{name: "Jane Doe", email: "jane@x.com"}, "Jane Doe"},
		{"email local part last", stubClaims{email: "jane@x.com"}, "jane"},
		{"nothing available", stubClaims{}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, access.UsernameFromClaims(tc.claims))
		})
	}
}
