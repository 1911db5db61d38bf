package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-catalog/internal/domain/catalog"
	"github.com/xenking/storefront-catalog/internal/domain/taxonomy"
)

var (
	_ taxonomy.Repository = (*TaxonomyRepository)(nil)
	_ catalog.TaxonLookup = (*TaxonomyRepository)(nil)
)

// TaxonomyRepository stores categories and brands in the taxa table.
type TaxonomyRepository struct {
	connGetter
}

// NewTaxonomyRepository returns a TaxonomyRepository that uses the given pool.
func NewTaxonomyRepository(pool *pgxpool.Pool) *TaxonomyRepository {
	return &TaxonomyRepository{connGetter{pool: pool}}
}

// CreateTaxon inserts t. A case-insensitive name clash within the kind is
// reported as a *catalog.ConflictError.
func (r *TaxonomyRepository) CreateTaxon(ctx context.Context, t *catalog.Taxon) error {
	const q = `INSERT INTO taxa (kind, id, name, status, created_at) VALUES ($1, $2, $3, $4, $5)`

	_, err := r.conn(ctx).Exec(ctx, q, string(t.Kind), t.ID, t.Name, string(t.Status), t.CreatedAt)
	if isUniqueViolation(err) {
		return &catalog.ConflictError{Entity: string(t.Kind), Name: t.Name}
	}
	if err != nil {
		return errors.Wrapf(err, "insert %s", t.Kind)
	}
	return nil
}

// UpdateTaxon replaces name and status of an entry.
func (r *TaxonomyRepository) UpdateTaxon(ctx context.Context, t *catalog.Taxon) error {
	const q = `UPDATE taxa SET name = $3, status = $4 WHERE kind = $1 AND id = $2`

	tag, err := r.conn(ctx).Exec(ctx, q, string(t.Kind), t.ID, t.Name, string(t.Status))
	if isUniqueViolation(err) {
		return &catalog.ConflictError{Entity: string(t.Kind), Name: t.Name}
	}
	if err != nil {
		return errors.Wrapf(err, "update %s", t.Kind)
	}
	if tag.RowsAffected() == 0 {
		return &catalog.NotFoundError{Entity: string(t.Kind), ID: t.ID}
	}
	return nil
}

// GetTaxon returns a category or brand by id.
func (r *TaxonomyRepository) GetTaxon(ctx context.Context, kind catalog.TaxonKind, id string) (*catalog.Taxon, error) {
	return r.one(ctx, kind, id, `SELECT `+taxonColumns+` FROM taxa WHERE kind = $1 AND id = $2`)
}

// FindTaxonByName looks an entry up by name, ignoring case.
func (r *TaxonomyRepository) FindTaxonByName(ctx context.Context, kind catalog.TaxonKind, name string) (*catalog.Taxon, error) {
	return r.one(ctx, kind, name, `SELECT `+taxonColumns+` FROM taxa WHERE kind = $1 AND lower(name) = lower($2)`)
}

// ListTaxa returns every entry of kind, newest first.
func (r *TaxonomyRepository) ListTaxa(ctx context.Context, kind catalog.TaxonKind) ([]catalog.Taxon, error) {
	taxa, err := collect(ctx, r.conn(ctx), scanTaxon,
		`SELECT `+taxonColumns+` FROM taxa WHERE kind = $1 ORDER BY created_at DESC, id`, string(kind))
	if err != nil {
		return nil, errors.Wrapf(err, "query %s list", kind)
	}
	return taxa, nil
}

func (r *TaxonomyRepository) one(ctx context.Context, kind catalog.TaxonKind, key, q string) (*catalog.Taxon, error) {
	taxa, err := collect(ctx, r.conn(ctx), scanTaxon, q, string(kind), key)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", kind)
	}
	if len(taxa) == 0 {
		return nil, &catalog.NotFoundError{Entity: string(kind), ID: key}
	}
	return &taxa[0], nil
}
