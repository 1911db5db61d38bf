package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-catalog/internal/domain/catalog"
)

var _ catalog.Reader = (*CatalogRepository)(nil)

// CatalogRepository reads consistent catalog snapshots for the query engine.
type CatalogRepository struct {
	connGetter
	tx *Transactor
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool, tx *Transactor) *CatalogRepository {
	return &CatalogRepository{connGetter: connGetter{pool: pool}, tx: tx}
}

// Snapshot reads every product, variant and taxon in one read-only
// transaction.
func (r *CatalogRepository) Snapshot(ctx context.Context) (*catalog.Snapshot, error) {
	var snap *catalog.Snapshot
	err := r.tx.ReadSnapshot(ctx, func(ctx context.Context) error {
		q := r.conn(ctx)

		products, err := collect(ctx, q, scanProduct,
			`SELECT `+productColumns+` FROM products ORDER BY seq`)
		if err != nil {
			return errors.Wrap(err, "query products")
		}
		variants, err := collect(ctx, q, scanVariant,
			`SELECT `+variantColumns+` FROM variants`)
		if err != nil {
			return errors.Wrap(err, "query variants")
		}
		taxa, err := collect(ctx, q, scanTaxon,
			`SELECT `+taxonColumns+` FROM taxa`)
		if err != nil {
			return errors.Wrap(err, "query taxa")
		}

		snap = newSnapshot(products, variants, taxa)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot")
	}
	return snap, nil
}

// ProductSnapshot reads one product with its listed variants and taxonomy.
func (r *CatalogRepository) ProductSnapshot(ctx context.Context, id string) (*catalog.Snapshot, error) {
	var snap *catalog.Snapshot
	err := r.tx.ReadSnapshot(ctx, func(ctx context.Context) error {
		q := r.conn(ctx)

		products, err := collect(ctx, q, scanProduct,
			`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
		if err != nil {
			return errors.Wrap(err, "query product")
		}
		if len(products) == 0 {
			return &catalog.NotFoundError{Entity: "product", ID: id}
		}
		p := products[0]

		variants, err := collect(ctx, q, scanVariant,
			`SELECT `+variantColumns+` FROM variants WHERE id = ANY($1)`, p.VariantIDs)
		if err != nil {
			return errors.Wrap(err, "query variants")
		}
		taxa, err := collect(ctx, q, scanTaxon,
			`SELECT `+taxonColumns+` FROM taxa
			 WHERE (kind = 'category' AND id = $1) OR (kind = 'brand' AND id = $2)`,
			p.CategoryID, p.BrandID)
		if err != nil {
			return errors.Wrap(err, "query taxa")
		}

		snap = newSnapshot(products, variants, taxa)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func newSnapshot(products []catalog.Product, variants []catalog.Variant, taxa []catalog.Taxon) *catalog.Snapshot {
	snap := &catalog.Snapshot{
		Products:   products,
		Variants:   make(map[string]catalog.Variant, len(variants)),
		Categories: map[string]catalog.Taxon{},
		Brands:     map[string]catalog.Taxon{},
	}
	for _, v := range variants {
		snap.Variants[v.ID] = v
	}
	for _, t := range taxa {
		switch t.Kind {
		case catalog.KindCategory:
			snap.Categories[t.ID] = t
		case catalog.KindBrand:
			snap.Brands[t.ID] = t
		}
	}
	return snap
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func collect[T any](ctx context.Context, q querier, scan pgx.RowToFunc[T], sql string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}
