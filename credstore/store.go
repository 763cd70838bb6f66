// Package credstore persists the session credential in a local SQLite
// database, one record per backend origin. It backs the root package's
// CredentialPersistence contract: the bearer token and its refresh material
// are the only credentials stored client-side, written on every accepted
// token set and purged on logout or a 401.
package credstore

import (
	"context"
	"database/sql"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/homeledger/go-access"
)

// CredentialRecord is the Bun model for the cached session credential.
type CredentialRecord struct {
	bun.BaseModel `bun:"table:credentials,alias:crd"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	Origin       string    `bun:"origin,notnull,unique"`
	AccessToken  string    `bun:"access_token,notnull"`
	RefreshToken string    `bun:"refresh_token"`
	ExpiresAt    time.Time `bun:"expires_at"`
	UpdatedAt    time.Time `bun:"updated_at,default:current_timestamp"`
}

// Store implements access.CredentialPersistence for a single backend origin.
// The record ID is derived deterministically from the origin, so repeated
// runs address the same row.
type Store struct {
	db     *bun.DB
	repo   repository.Repository[*CredentialRecord]
	origin string
	id     uuid.UUID
}

var _ access.CredentialPersistence = (*Store)(nil)

// Open opens (creating if needed) the SQLite cache at path. Use ":memory:"
// for tests.
func Open(path string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to open credential cache")
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// New creates a store for the given origin on top of db.
func New(db *bun.DB, origin string) (*Store, error) {
	id, err := hashid.NewUUID(origin)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive credential record id")
	}

	repo := repository.NewRepository[*CredentialRecord](db, repository.ModelHandlers[*CredentialRecord]{
		NewRecord: func() *CredentialRecord { return &CredentialRecord{} },
		GetID: func(r *CredentialRecord) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *CredentialRecord, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	})

	return &Store{
		db:     db,
		repo:   repo,
		origin: origin,
		id:     id,
	}, nil
}

// Init creates the credentials table when it does not exist yet.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*CredentialRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to initialize credential cache")
	}
	return nil
}

// Load implements access.CredentialPersistence. A missing record is not an
// error; it returns (nil, nil).
func (s *Store) Load(ctx context.Context) (*access.Credential, error) {
	record, err := s.repo.GetByID(ctx, s.id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) || err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load cached credential")
	}
	if record == nil {
		return nil, nil
	}

	return &access.Credential{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		ExpiresAt:    record.ExpiresAt,
	}, nil
}

// Save implements access.CredentialPersistence.
func (s *Store) Save(ctx context.Context, cred access.Credential) error {
	record := &CredentialRecord{
		ID:           s.id,
		Origin:       s.origin,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    cred.ExpiresAt,
		UpdatedAt:    time.Now(),
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("access_token = EXCLUDED.access_token").
		Set("refresh_token = EXCLUDED.refresh_token").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist credential")
	}
	return nil
}

// Purge implements access.CredentialPersistence. Purging an absent record is
// a no-op.
func (s *Store) Purge(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*CredentialRecord)(nil)).
		Where("id = ?", s.id).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to purge credential cache")
	}
	return nil
}
