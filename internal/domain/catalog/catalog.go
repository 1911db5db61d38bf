// Package catalog holds the storefront catalog model and the query engine that
// turns listing parameters into a page of products.
//
// Filterable attributes (size, price) live on variants, not on products, so
// every query works on JoinedProduct values: a product materialized together
// with its variants and resolved category/brand.
package catalog

import (
	"context"
	"time"
)

// Status is the admin-facing visibility flag of a category or brand.
type Status string

const (
	StatusListed   Status = "listed"
	StatusUnlisted Status = "unlisted"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusListed || s == StatusUnlisted
}

// Toggle returns the opposite status.
func (s Status) Toggle() Status {
	if s == StatusListed {
		return StatusUnlisted
	}
	return StatusListed
}

// TaxonKind distinguishes categories from brands. Both share one shape.
type TaxonKind string

const (
	KindCategory TaxonKind = "category"
	KindBrand    TaxonKind = "brand"
)

// Taxon is a category or a brand. Names are case-insensitively unique within
// a kind.
type Taxon struct {
	Kind      TaxonKind
	ID        string
	Name      string
	Status    Status
	CreatedAt time.Time
}

// Product is a catalog item. VariantIDs is ordered by insertion and is only
// mutated by the variant consistency manager.
type Product struct {
	ID string
	// Seq is the storage insertion sequence, used as the stable tie-break.
	Seq         int64
	Name        string
	Description string
	CategoryID  string
	BrandID     string
	VariantIDs  []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MaxPrice is the largest variant price in minor units that the stored
// NUMERIC(14, 2) column can hold.
const MaxPrice int64 = 99_999_999_999_999

// Variant is a purchasable SKU of a product. Price is in minor currency units.
type Variant struct {
	ID        string
	ProductID string
	Size      string
	Color     string
	Stock     int64
	Price     int64
	MainImage string
	SubImages []string
	CreatedAt time.Time
}

// Ref is a resolved category or brand identity.
type Ref struct {
	ID   string
	Name string
}

// JoinedProduct is a Product with all of its variants and resolved taxonomy.
type JoinedProduct struct {
	Product
	Variants []Variant
	Category Ref
	Brand    Ref
}

// MinPrice returns the lowest variant price. ok is false for a product with no
// variants, whose price is undefined.
func (p *JoinedProduct) MinPrice() (price int64, ok bool) {
	for i, v := range p.Variants {
		if i == 0 || v.Price < price {
			price = v.Price
		}
	}
	return price, len(p.Variants) > 0
}

// Snapshot is a consistent read of everything the join stage needs.
type Snapshot struct {
	// Products are ordered by insertion sequence.
	Products   []Product
	Variants   map[string]Variant
	Categories map[string]Taxon
	Brands     map[string]Taxon
}

// Reader provides consistent catalog snapshots to the query engine.
type Reader interface {
	// Snapshot reads every product with its variants and taxonomy.
	Snapshot(ctx context.Context) (*Snapshot, error)
	// ProductSnapshot reads a single product. It returns a *NotFoundError when
	// the product does not exist.
	ProductSnapshot(ctx context.Context, id string) (*Snapshot, error)
}

// ProductRepository persists product records. It never touches VariantIDs
// on update.
type ProductRepository interface {
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
}

// TaxonLookup resolves a single category or brand.
type TaxonLookup interface {
	GetTaxon(ctx context.Context, kind TaxonKind, id string) (*Taxon, error)
}
