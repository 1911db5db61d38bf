package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-catalog/internal/domain/auth"
	"github.com/xenking/storefront-catalog/internal/domain/catalog"
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository provides API key lookups backed by PostgreSQL.
type APIKeyRepository struct {
	connGetter
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{connGetter{pool: pool}}
}

// FindByHash looks up an active API key by its HMAC-SHA256 hash.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	const q = `SELECT id, key_hash, name, scopes FROM api_keys WHERE key_hash = $1 AND active`

	var info auth.APIKeyInfo
	err := r.conn(ctx).QueryRow(ctx, q, hash).Scan(&info.ID, &info.KeyHash, &info.Name, &info.Scopes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &catalog.NotFoundError{Entity: "api key", ID: hash}
	}
	if err != nil {
		return nil, errors.Wrap(err, "find api key by hash")
	}
	return &info, nil
}

// CreateAPIKey stores an API key, replacing the name and scopes of an
// existing key with the same hash.
func (r *APIKeyRepository) CreateAPIKey(ctx context.Context, info *auth.APIKeyInfo) error {
	const q = `INSERT INTO api_keys (id, key_hash, name, scopes) VALUES ($1, $2, $3, $4)
		ON CONFLICT (key_hash) DO UPDATE SET name = EXCLUDED.name, scopes = EXCLUDED.scopes, active = TRUE`

	scopes := info.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	if _, err := r.conn(ctx).Exec(ctx, q, info.ID, info.KeyHash, info.Name, scopes); err != nil {
		return errors.Wrap(err, "insert api key")
	}
	return nil
}
