package variant

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront-catalog/internal/domain/catalog"
)

// AddRequest holds the input for adding a variant.
type AddRequest struct {
	ProductID string `json:"product" validate:"notblank"`
	Size      string `json:"size" validate:"notblank"`
	Color     string `json:"color" validate:"notblank"`
	Stock     int64  `json:"stock" validate:"gte=0"`
	Price     int64  `json:"price" validate:"gte=0,lte=99999999999999"`
	Images    Images `json:"-"`
}

// Manager is the only writer of variant records and product variant lists.
type Manager struct {
	store  Store
	tx     Transactor
	images ImageStore
	now    func() time.Time
}

// NewManager creates a Manager.
func NewManager(store Store, tx Transactor, images ImageStore) *Manager {
	return &Manager{
		store:  store,
		tx:     tx,
		images: images,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Add uploads the images, creates the variant and appends it to the product.
//
// The product is resolved before anything is uploaded. A failed or timed out
// upload aborts without creating a variant.
func (m *Manager) Add(ctx context.Context, req AddRequest) (*catalog.Variant, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Size = strings.TrimSpace(req.Size)
	req.Color = strings.TrimSpace(req.Color)
	if err := validateAdd(req); err != nil {
		return nil, err
	}

	if _, err := m.store.GetProduct(ctx, req.ProductID); err != nil {
		return nil, errors.Wrap(err, "get product")
	}

	uploaded, err := m.images.Upload(ctx, req.ProductID, req.Images)
	if err != nil {
		return nil, errors.Wrap(err, "upload images")
	}

	v := &catalog.Variant{
		ID:        uuid.NewString(),
		ProductID: req.ProductID,
		Size:      req.Size,
		Color:     req.Color,
		Stock:     req.Stock,
		Price:     req.Price,
		MainImage: uploaded.Main,
		SubImages: uploaded.Secondary,
		CreatedAt: m.now(),
	}

	lg := zctx.From(ctx).With(
		zap.String("product_id", v.ProductID),
		zap.String("variant_id", v.ID),
	)

	var created bool
	err = m.tx.Do(ctx, func(ctx context.Context) error {
		if err := m.store.CreateVariant(ctx, v); err != nil {
			return errors.Wrap(err, "create variant")
		}
		created = true
		if err := m.store.AppendVariantRef(ctx, v.ProductID, v.ID); err != nil {
			return errors.Wrap(err, "append variant reference")
		}
		return nil
	})
	if err != nil {
		if created && !m.tx.Atomic() {
			lg.Error("Variant created but not referenced by product", zap.Error(err))
			return nil, &catalog.PartialWriteError{
				Op:        "add variant",
				ProductID: v.ProductID,
				VariantID: v.ID,
				Err:       err,
			}
		}
		m.discardImages(ctx, uploaded.All())
		return nil, err
	}

	lg.Info("Variant added")
	return v, nil
}

// Remove drops the variant from its product and deletes it. The removed
// variant is returned.
func (m *Manager) Remove(ctx context.Context, variantID string) (*catalog.Variant, error) {
	v, err := m.store.GetVariant(ctx, variantID)
	if err != nil {
		return nil, errors.Wrap(err, "get variant")
	}

	lg := zctx.From(ctx).With(
		zap.String("product_id", v.ProductID),
		zap.String("variant_id", v.ID),
	)

	var unlinked bool
	err = m.tx.Do(ctx, func(ctx context.Context) error {
		// A missing parent leaves nothing to unlink.
		if err := m.store.RemoveVariantRef(ctx, v.ProductID, v.ID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
			return errors.Wrap(err, "remove variant reference")
		}
		unlinked = true
		if err := m.store.DeleteVariant(ctx, v.ID); err != nil {
			return errors.Wrap(err, "delete variant")
		}
		return nil
	})
	if err != nil {
		if unlinked && !m.tx.Atomic() {
			lg.Error("Variant unlinked from product but not deleted", zap.Error(err))
			return nil, &catalog.PartialWriteError{
				Op:        "remove variant",
				ProductID: v.ProductID,
				VariantID: v.ID,
				Err:       err,
			}
		}
		return nil, err
	}

	lg.Info("Variant removed")
	m.discardImages(ctx, append([]string{v.MainImage}, v.SubImages...))
	return v, nil
}

// List returns the variants of a product in list order.
func (m *Manager) List(ctx context.Context, productID string) ([]catalog.Variant, error) {
	variants, err := m.store.ListVariants(ctx, productID)
	if err != nil {
		return nil, errors.Wrap(err, "list variants")
	}
	return variants, nil
}

// discardImages removes images that no variant references any more. Failures
// only leave unreferenced objects in storage and are logged.
func (m *Manager) discardImages(ctx context.Context, refs []string) {
	if len(refs) == 0 {
		return
	}
	if err := m.images.Remove(context.WithoutCancel(ctx), refs); err != nil {
		zctx.From(ctx).Warn("Remove variant images", zap.Strings("refs", refs), zap.Error(err))
	}
}

func validateAdd(req AddRequest) error {
	var errs catalog.ValidationErrors
	if err := catalog.Validate(req); err != nil {
		if !errors.As(err, &errs) {
			return err
		}
	}
	if req.Images.Main.Body == nil {
		errs = append(errs, &catalog.ValidationError{Field: "mainImage", Message: "is required"})
	}
	if len(req.Images.Secondary) == 0 {
		errs = append(errs, &catalog.ValidationError{Field: "subImages", Message: "must contain at least 1"})
	}
	return errs.Err()
}
