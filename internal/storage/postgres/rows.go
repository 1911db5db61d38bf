package postgres

import (
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-catalog/internal/domain/catalog"
)

const (
	productColumns = `id, seq, name, description, category_id, brand_id, variant_ids, created_at, updated_at`
	variantColumns = `id, product_id, size, color, stock, price, main_image, sub_images, created_at`
	taxonColumns   = `kind, id, name, status, created_at`
)

// priceToNumeric converts minor units to the NUMERIC(14,2) column value.
func priceToNumeric(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

func numericToPrice(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Seq, &p.Name, &p.Description, &p.CategoryID, &p.BrandID,
		&p.VariantIDs, &p.CreatedAt, &p.UpdatedAt)
	if p.VariantIDs == nil {
		p.VariantIDs = []string{}
	}
	return p, err
}

func scanVariant(row pgx.CollectableRow) (catalog.Variant, error) {
	var (
		v     catalog.Variant
		price decimal.Decimal
	)
	err := row.Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.Stock, &price,
		&v.MainImage, &v.SubImages, &v.CreatedAt)
	v.Price = numericToPrice(price)
	return v, err
}

func scanTaxon(row pgx.CollectableRow) (catalog.Taxon, error) {
	var (
		t            catalog.Taxon
		kind, status string
	)
	err := row.Scan(&kind, &t.ID, &t.Name, &status, &t.CreatedAt)
	t.Kind = catalog.TaxonKind(kind)
	t.Status = catalog.Status(status)
	return t, err
}
