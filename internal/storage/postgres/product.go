package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-catalog/internal/domain/catalog"
	"github.com/xenking/storefront-catalog/internal/domain/variant"
)

var (
	_ catalog.ProductRepository = (*ProductRepository)(nil)
	_ variant.Store             = (*ProductRepository)(nil)
)

// ProductRepository stores products and their variants.
type ProductRepository struct {
	connGetter
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{connGetter{pool: pool}}
}

// CreateProduct inserts p and fills in its sequence number.
func (r *ProductRepository) CreateProduct(ctx context.Context, p *catalog.Product) error {
	const q = `INSERT INTO products (id, name, description, category_id, brand_id, variant_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq`

	if p.VariantIDs == nil {
		p.VariantIDs = []string{}
	}
	err := r.conn(ctx).QueryRow(ctx, q,
		p.ID, p.Name, p.Description, p.CategoryID, p.BrandID, p.VariantIDs, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.Seq)
	if err != nil {
		return errors.Wrap(err, "insert product")
	}
	return nil
}

// UpdateProduct replaces the editable fields of a product.
func (r *ProductRepository) UpdateProduct(ctx context.Context, p *catalog.Product) error {
	const q = `UPDATE products
		SET name = $2, description = $3, category_id = $4, brand_id = $5, updated_at = $6
		WHERE id = $1`

	tag, err := r.conn(ctx).Exec(ctx, q, p.ID, p.Name, p.Description, p.CategoryID, p.BrandID, p.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "update product")
	}
	if tag.RowsAffected() == 0 {
		return &catalog.NotFoundError{Entity: "product", ID: p.ID}
	}
	return nil
}

// GetProduct returns a product by id.
func (r *ProductRepository) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	products, err := collect(ctx, r.conn(ctx), scanProduct,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err != nil {
		return nil, errors.Wrap(err, "query product")
	}
	if len(products) == 0 {
		return nil, &catalog.NotFoundError{Entity: "product", ID: id}
	}
	return &products[0], nil
}

// GetVariant returns a variant by id.
func (r *ProductRepository) GetVariant(ctx context.Context, id string) (*catalog.Variant, error) {
	variants, err := collect(ctx, r.conn(ctx), scanVariant,
		`SELECT `+variantColumns+` FROM variants WHERE id = $1`, id)
	if err != nil {
		return nil, errors.Wrap(err, "query variant")
	}
	if len(variants) == 0 {
		return nil, &catalog.NotFoundError{Entity: "variant", ID: id}
	}
	return &variants[0], nil
}

// ListVariants returns the resolvable variants of a product in list order.
func (r *ProductRepository) ListVariants(ctx context.Context, productID string) ([]catalog.Variant, error) {
	const q = `SELECT v.id, v.product_id, v.size, v.color, v.stock, v.price, v.main_image, v.sub_images, v.created_at
		FROM products p
		CROSS JOIN LATERAL unnest(p.variant_ids) WITH ORDINALITY AS ref(id, pos)
		JOIN variants v ON v.id = ref.id
		WHERE p.id = $1
		ORDER BY ref.pos`

	if _, err := r.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	variants, err := collect(ctx, r.conn(ctx), scanVariant, q, productID)
	if err != nil {
		return nil, errors.Wrap(err, "query variants")
	}
	return variants, nil
}

// CreateVariant inserts v.
func (r *ProductRepository) CreateVariant(ctx context.Context, v *catalog.Variant) error {
	const q = `INSERT INTO variants (id, product_id, size, color, stock, price, main_image, sub_images, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	subImages := v.SubImages
	if subImages == nil {
		subImages = []string{}
	}
	_, err := r.conn(ctx).Exec(ctx, q,
		v.ID, v.ProductID, v.Size, v.Color, v.Stock, priceToNumeric(v.Price), v.MainImage, subImages, v.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert variant")
	}
	return nil
}

// DeleteVariant removes a variant record.
func (r *ProductRepository) DeleteVariant(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM variants WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete variant")
	}
	if tag.RowsAffected() == 0 {
		return &catalog.NotFoundError{Entity: "variant", ID: id}
	}
	return nil
}

// AppendVariantRef adds variantID to the end of the product's list.
func (r *ProductRepository) AppendVariantRef(ctx context.Context, productID, variantID string) error {
	const q = `UPDATE products SET variant_ids = array_append(variant_ids, $2), updated_at = now() WHERE id = $1`

	tag, err := r.conn(ctx).Exec(ctx, q, productID, variantID)
	if err != nil {
		return errors.Wrap(err, "append variant ref")
	}
	if tag.RowsAffected() == 0 {
		return &catalog.NotFoundError{Entity: "product", ID: productID}
	}
	return nil
}

// RemoveVariantRef drops variantID from the product's list.
func (r *ProductRepository) RemoveVariantRef(ctx context.Context, productID, variantID string) error {
	const q = `UPDATE products SET variant_ids = array_remove(variant_ids, $2), updated_at = now() WHERE id = $1`

	tag, err := r.conn(ctx).Exec(ctx, q, productID, variantID)
	if err != nil {
		return errors.Wrap(err, "remove variant ref")
	}
	if tag.RowsAffected() == 0 {
		return &catalog.NotFoundError{Entity: "product", ID: productID}
	}
	return nil
}

// FindOrphanVariants returns variants their product does not list.
func (r *ProductRepository) FindOrphanVariants(ctx context.Context) ([]catalog.Variant, error) {
	const q = `SELECT v.id, v.product_id, v.size, v.color, v.stock, v.price, v.main_image, v.sub_images, v.created_at
		FROM variants v
		LEFT JOIN products p ON p.id = v.product_id
		WHERE p.id IS NULL OR NOT (v.id = ANY(p.variant_ids))
		ORDER BY v.id`

	variants, err := collect(ctx, r.conn(ctx), scanVariant, q)
	if err != nil {
		return nil, errors.Wrap(err, "query orphan variants")
	}
	return variants, nil
}

// FindDanglingRefs returns list entries without a variant record.
func (r *ProductRepository) FindDanglingRefs(ctx context.Context) ([]variant.Ref, error) {
	const q = `SELECT p.id, ref.id
		FROM products p
		CROSS JOIN LATERAL unnest(p.variant_ids) AS ref(id)
		LEFT JOIN variants v ON v.id = ref.id
		WHERE v.id IS NULL
		ORDER BY p.seq, ref.id`

	rows, err := r.conn(ctx).Query(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "query dangling refs")
	}
	defer rows.Close()

	var out []variant.Ref
	for rows.Next() {
		var ref variant.Ref
		if err := rows.Scan(&ref.ProductID, &ref.VariantID); err != nil {
			return nil, errors.Wrap(err, "scan dangling ref")
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// ProductNames returns the lower-cased names of every stored product.
func (r *ProductRepository) ProductNames(ctx context.Context) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT lower(name) FROM products`)
	if err != nil {
		return nil, errors.Wrap(err, "query product names")
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "collect product names")
	}
	return names, nil
}

// ProductNameExists reports whether a product with the given name exists,
// ignoring case.
func (r *ProductRepository) ProductNameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE lower(name) = lower($1))`, name,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "query product name")
	}
	return exists, nil
}
