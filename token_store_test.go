package access_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	access "github.com/homeledger/go-access"
)

func TestTokenStoreSetPublishesToken(t *testing.T) {
	store := access.NewTokenStore()
	expiry := time.Now().Add(time.Hour)

	accepted := store.Set(context.Background(), store.Generation(), access.Credential{
		AccessToken: "tok-1",
		ExpiresAt:   expiry,
	})

	require.True(t, accepted)
	assert.Equal(t, "tok-1", store.Token())

	got, ok := store.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, expiry, got)
}

func TestTokenStoreClearDestroysToken(t *testing.T) {
	store := access.NewTokenStore()
	store.Set(context.Background(), store.Generation(), access.Credential{
		AccessToken: "tok-1",
		ExpiresAt:   time.Now().Add(time.Hour),
	})

	store.Clear(context.Background())

	assert.Empty(t, store.Token())
	_, ok := store.ExpiresAt()
	assert.False(t, ok)
}

func TestTokenStoreDiscardsStaleGenerationWrite(t *testing.T) {
	store := access.NewTokenStore()

	// snapshot taken before an in-flight refresh
	stale := store.Generation()

	// logout fires while the refresh is pending
	store.Clear(context.Background())

	accepted := store.Set(context.Background(), stale, access.Credential{
		AccessToken: "resurrected",
		ExpiresAt:   time.Now().Add(time.Hour),
	})

	assert.False(t, accepted)
	assert.Empty(t, store.Token())
}

func TestTokenStoreGenerationIncreasesMonotonically(t *testing.T) {
	store := access.NewTokenStore()

	first := store.Generation()
	second := store.Clear(context.Background())
	third := store.Clear(context.Background())

	assert.Greater(t, second, first)
	assert.Greater(t, third, second)
}

func TestTokenStorePersistsAcceptedWrites(t *testing.T) {
	persistence := &MockPersistence{}
	store := access.NewTokenStore(access.WithTokenStorePersistence(persistence))

	cred := access.Credential{
		AccessToken:  "tok-1",
		RefreshToken: "ref-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	persistence.On("Save", mock.Anything, cred).Return(nil).Once()

	store.Set(context.Background(), store.Generation(), cred)

	persistence.AssertExpectations(t)
}

func TestTokenStoreClearPurgesPersistence(t *testing.T) {
	persistence := &MockPersistence{}
	store := access.NewTokenStore(access.WithTokenStorePersistence(persistence))

	persistence.On("Purge", mock.Anything).Return(nil).Once()

	store.Clear(context.Background())

	persistence.AssertExpectations(t)
}

func TestTokenStoreStaleWriteIsNotPersisted(t *testing.T) {
	persistence := &MockPersistence{}
	store := access.NewTokenStore(access.WithTokenStorePersistence(persistence))

	stale := store.Generation()
	persistence.On("Purge", mock.Anything).Return(nil).Once()
	store.Clear(context.Background())

	store.Set(context.Background(), stale, access.Credential{AccessToken: "late"})

	persistence.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestTokenStoreRestoreLoadsUnexpiredCredential(t *testing.T) {
	persistence := &MockPersistence{}
	store := access.NewTokenStore(access.WithTokenStorePersistence(persistence))

	cred := &access.Credential{
		AccessToken:  "tok-1",
		RefreshToken: "ref-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	persistence.On("Load", mock.Anything).Return(cred, nil).Once()

	restored, ok := store.Restore(context.Background())

	require.True(t, ok)
	assert.Equal(t, "ref-1", restored.RefreshToken)
	assert.Equal(t, "tok-1", store.Token())
}

func TestTokenStoreRestoreKeepsExpiredTokenOutOfMemory(t *testing.T) {
	persistence := &MockPersistence{}
	store := access.NewTokenStore(access.WithTokenStorePersistence(persistence))

	cred := &access.Credential{
		AccessToken:  "tok-old",
		RefreshToken: "ref-1",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}
	persistence.On("Load", mock.Anything).Return(cred, nil).Once()

	restored, ok := store.Restore(context.Background())

	require.True(t, ok)
	assert.Equal(t, "ref-1", restored.RefreshToken)
	assert.Empty(t, store.Token())
}

func TestTokenStoreRestoreExpiryBoundary(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		expiresAt time.Time
		published bool
	}{
		{"before expiry", now.Add(time.Second), true},
		{"exactly at expiry", now, false},
		{"after expiry", now.Add(-time.Second), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			persistence := &MockPersistence{}
			store := access.NewTokenStore(
				access.WithTokenStorePersistence(persistence),
				access.WithTokenStoreClock(func() time.Time { return now }),
			)

			persistence.On("Load", mock.Anything).Return(&access.Credential{
				AccessToken: "tok-1",
				ExpiresAt:   tc.expiresAt,
			}, nil).Once()

			_, ok := store.Restore(context.Background())

			require.True(t, ok)
			if tc.published {
				assert.Equal(t, "tok-1", store.Token())
			} else {
				assert.Empty(t, store.Token())
			}
		})
	}
}

func TestTokenStoreRestoreWithoutPersistence(t *testing.T) {
	store := access.NewTokenStore()

	restored, ok := store.Restore(context.Background())

	assert.False(t, ok)
	assert.Nil(t, restored)
}
