package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront-catalog/internal/domain/catalog"
	"github.com/xenking/storefront-catalog/internal/domain/taxonomy"
	"github.com/xenking/storefront-catalog/internal/domain/variant"
)

// variantWriter is the part of the variant store the importer writes through.
type variantWriter interface {
	CreateVariant(ctx context.Context, v *catalog.Variant) error
	AppendVariantRef(ctx context.Context, productID, variantID string) error
}

type stats struct {
	taxa       int
	products   int
	variants   int
	duplicates int
	rejected   int
}

// importer writes decoded dumps. Each product is written together with its
// variants in one transaction.
type importer struct {
	tx       variant.Transactor
	products *catalog.ProductService
	variants variantWriter
	taxa     *taxonomy.Service
	lookup   taxonomy.Repository
	names    *nameSet
	now      func() time.Time

	// ids maps kind and lower-cased name to the taxon id.
	ids   map[catalog.TaxonKind]map[string]string
	stats stats
}

func newImporter(
	tx variant.Transactor,
	products *catalog.ProductService,
	variants variantWriter,
	taxa taxonomy.Repository,
	names *nameSet,
) *importer {
	return &importer{
		tx:       tx,
		products: products,
		variants: variants,
		taxa:     taxonomy.NewService(taxa),
		lookup:   taxa,
		names:    names,
		now:      func() time.Time { return time.Now().UTC() },
		ids: map[catalog.TaxonKind]map[string]string{
			catalog.KindCategory: {},
			catalog.KindBrand:    {},
		},
	}
}

// run imports every taxon first and then every product, in file order.
func (im *importer) run(ctx context.Context, dumps []*dump) error {
	for _, d := range dumps {
		for _, r := range d.taxa {
			if err := im.importTaxon(ctx, catalog.TaxonKind(r.Kind), r.Name); err != nil {
				return errors.Wrapf(err, "%s: %s %q", d.path, r.Kind, r.Name)
			}
		}
	}
	for _, d := range dumps {
		for _, r := range d.products {
			if err := im.importProduct(ctx, r); err != nil {
				if !isRejection(err) {
					return errors.Wrapf(err, "%s: product %q", d.path, r.Name)
				}
				slog.Warn("product rejected",
					slog.String("path", d.path),
					slog.String("name", r.Name),
					slog.String("error", err.Error()),
				)
				im.stats.rejected++
			}
		}
	}
	return nil
}

// importTaxon creates a category or brand, or reuses an existing one with the
// same name.
func (im *importer) importTaxon(ctx context.Context, kind catalog.TaxonKind, name string) error {
	key := normalizeName(name)
	if _, ok := im.ids[kind][key]; ok {
		return nil
	}

	t, err := im.taxa.Create(ctx, kind, name)
	switch {
	case err == nil:
		im.stats.taxa++
	case errors.Is(err, catalog.ErrConflict):
		if t, err = im.lookup.FindTaxonByName(ctx, kind, strings.TrimSpace(name)); err != nil {
			return errors.Wrap(err, "find existing")
		}
	default:
		return err
	}
	im.ids[kind][key] = t.ID
	return nil
}

func (im *importer) resolve(kind catalog.TaxonKind, name string) (string, error) {
	id, ok := im.ids[kind][normalizeName(name)]
	if !ok {
		return "", &catalog.NotFoundError{Entity: string(kind), ID: name}
	}
	return id, nil
}

func (im *importer) importProduct(ctx context.Context, r record) error {
	taken, err := im.names.taken(ctx, r.Name)
	if err != nil {
		return errors.Wrap(err, "check name")
	}
	if taken {
		slog.Debug("skipping duplicate product", slog.String("name", r.Name))
		im.stats.duplicates++
		return nil
	}

	categoryID, err := im.resolve(catalog.KindCategory, r.Category)
	if err != nil {
		return err
	}
	brandID, err := im.resolve(catalog.KindBrand, r.Brand)
	if err != nil {
		return err
	}

	variants := make([]catalog.Variant, 0, len(r.Variants))
	for _, vr := range r.Variants {
		v, err := im.variant(vr)
		if err != nil {
			return err
		}
		variants = append(variants, v)
	}

	err = im.tx.Do(ctx, func(ctx context.Context) error {
		p, err := im.products.Create(ctx, catalog.ProductInput{
			Name:        r.Name,
			Description: r.Description,
			CategoryID:  categoryID,
			BrandID:     brandID,
		})
		if err != nil {
			return err
		}
		for i := range variants {
			v := &variants[i]
			v.ProductID = p.ID
			if err := im.variants.CreateVariant(ctx, v); err != nil {
				return errors.Wrap(err, "create variant")
			}
			if err := im.variants.AppendVariantRef(ctx, p.ID, v.ID); err != nil {
				return errors.Wrap(err, "append variant reference")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	im.names.add(r.Name)
	im.stats.products++
	im.stats.variants += len(variants)
	return nil
}

func (im *importer) variant(vr variantRecord) (catalog.Variant, error) {
	vr.Size = strings.TrimSpace(vr.Size)
	vr.Color = strings.TrimSpace(vr.Color)
	if err := catalog.Validate(vr); err != nil {
		return catalog.Variant{}, err
	}
	price, err := minorUnits(vr.Price)
	if err != nil {
		return catalog.Variant{}, &catalog.ValidationError{Field: "price", Message: err.Error()}
	}
	subImages := vr.SubImages
	if subImages == nil {
		subImages = []string{}
	}
	return catalog.Variant{
		ID:        uuid.NewString(),
		Size:      vr.Size,
		Color:     vr.Color,
		Stock:     vr.Stock,
		Price:     price,
		MainImage: vr.MainImage,
		SubImages: subImages,
		CreatedAt: im.now(),
	}, nil
}

// isRejection reports whether err is caused by the record itself rather than
// by the database.
func isRejection(err error) bool {
	return errors.Is(err, catalog.ErrValidation) || errors.Is(err, catalog.ErrNotFound)
}
