// Package variant keeps Product.VariantIDs and Variant.ProductID in agreement.
//
// Adding a variant creates the record and then appends its id to the parent;
// removing one drops the reference and then deletes the record. Both steps
// run inside one Transactor unit. When the transactor is not atomic, a failed
// second step is reported as a catalog.PartialWriteError and the leftover
// state is fixed by Reconcile.
package variant

import (
	"context"
	"io"

	"github.com/xenking/storefront-catalog/internal/domain/catalog"
)

// Store persists products and variants as one aggregate.
type Store interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	GetVariant(ctx context.Context, id string) (*catalog.Variant, error)
	// ListVariants returns the variants of a product in list order.
	ListVariants(ctx context.Context, productID string) ([]catalog.Variant, error)

	CreateVariant(ctx context.Context, v *catalog.Variant) error
	DeleteVariant(ctx context.Context, id string) error
	AppendVariantRef(ctx context.Context, productID, variantID string) error
	RemoveVariantRef(ctx context.Context, productID, variantID string) error

	// FindOrphanVariants returns variants not listed by their product.
	FindOrphanVariants(ctx context.Context) ([]catalog.Variant, error)
	// FindDanglingRefs returns list entries without a variant record.
	FindDanglingRefs(ctx context.Context) ([]Ref, error)
}

// Ref is a variant id listed by a product.
type Ref struct {
	ProductID string
	VariantID string
}

// Transactor runs fn as one unit of work.
type Transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
	// Atomic reports whether a failed fn leaves no partial writes behind.
	Atomic() bool
}

// Image is a single uploaded file.
type Image struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Images is the full image set of a variant.
type Images struct {
	Main      Image
	Secondary []Image
}

// UploadedImages holds the stored references of an uploaded image set.
type UploadedImages struct {
	Main      string
	Secondary []string
}

// All returns every reference, main image first.
func (u *UploadedImages) All() []string {
	return append([]string{u.Main}, u.Secondary...)
}

// ImageStore uploads and removes variant images.
type ImageStore interface {
	// Upload stores every image or none of them.
	Upload(ctx context.Context, productID string, images Images) (*UploadedImages, error)
	// Remove deletes stored images by reference.
	Remove(ctx context.Context, refs []string) error
}
