package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductInput holds the admin-editable fields of a product.
type ProductInput struct {
	Name        string `json:"name" validate:"notblank"`
	Description string `json:"description" validate:"notblank"`
	CategoryID  string `json:"category" validate:"notblank"`
	BrandID     string `json:"brand" validate:"notblank"`
}

// ProductService creates and edits products. Variant lists are left to the
// variant consistency manager.
type ProductService struct {
	products ProductRepository
	taxa     TaxonLookup
	now      func() time.Time
}

// NewProductService creates a ProductService.
func NewProductService(products ProductRepository, taxa TaxonLookup) *ProductService {
	return &ProductService{
		products: products,
		taxa:     taxa,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create adds a product with an empty variant list.
func (s *ProductService) Create(ctx context.Context, in ProductInput) (*Product, error) {
	in = in.trimmed()
	if err := s.check(ctx, in); err != nil {
		return nil, err
	}

	now := s.now()
	p := &Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		BrandID:     in.BrandID,
		VariantIDs:  []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.CreateProduct(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}

	zctx.From(ctx).Info("Product created",
		zap.String("product_id", p.ID),
		zap.String("name", p.Name),
	)
	return p, nil
}

// Update replaces the editable fields of an existing product.
func (s *ProductService) Update(ctx context.Context, id string, in ProductInput) (*Product, error) {
	in = in.trimmed()
	if err := s.check(ctx, in); err != nil {
		return nil, err
	}

	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}

	p.Name = in.Name
	p.Description = in.Description
	p.CategoryID = in.CategoryID
	p.BrandID = in.BrandID
	p.UpdatedAt = s.now()

	if err := s.products.UpdateProduct(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}

	zctx.From(ctx).Info("Product updated", zap.String("product_id", p.ID))
	return p, nil
}

func (s *ProductService) check(ctx context.Context, in ProductInput) error {
	if err := Validate(in); err != nil {
		return err
	}
	if _, err := s.taxa.GetTaxon(ctx, KindCategory, in.CategoryID); err != nil {
		return errors.Wrap(err, "resolve category")
	}
	if _, err := s.taxa.GetTaxon(ctx, KindBrand, in.BrandID); err != nil {
		return errors.Wrap(err, "resolve brand")
	}
	return nil
}

func (in ProductInput) trimmed() ProductInput {
	return ProductInput{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		CategoryID:  strings.TrimSpace(in.CategoryID),
		BrandID:     strings.TrimSpace(in.BrandID),
	}
}
