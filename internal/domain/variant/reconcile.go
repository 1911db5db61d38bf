package variant

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-catalog/internal/domain/catalog"
)

// RepairReport summarizes a Reconcile run.
type RepairReport struct {
	OrphansRemoved int
	DanglingPruned int
}

// Reconcile restores bidirectional integrity after partial writes. Orphaned
// variants are deleted and dangling references are pruned from product lists.
func (m *Manager) Reconcile(ctx context.Context) (*RepairReport, error) {
	lg := zctx.From(ctx)

	var (
		report RepairReport
		images []string
	)
	err := m.tx.Do(ctx, func(ctx context.Context) error {
		report, images = RepairReport{}, nil

		orphans, err := m.store.FindOrphanVariants(ctx)
		if err != nil {
			return errors.Wrap(err, "find orphan variants")
		}
		for _, v := range orphans {
			if err := m.store.DeleteVariant(ctx, v.ID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
				return errors.Wrapf(err, "delete orphan %s", v.ID)
			}
			lg.Warn("Deleted orphaned variant",
				zap.String("product_id", v.ProductID),
				zap.String("variant_id", v.ID),
			)
			report.OrphansRemoved++
			images = append(images, v.MainImage)
			images = append(images, v.SubImages...)
		}

		dangling, err := m.store.FindDanglingRefs(ctx)
		if err != nil {
			return errors.Wrap(err, "find dangling references")
		}
		for _, ref := range dangling {
			if err := m.store.RemoveVariantRef(ctx, ref.ProductID, ref.VariantID); err != nil {
				return errors.Wrapf(err, "prune reference %s", ref.VariantID)
			}
			lg.Warn("Pruned dangling variant reference",
				zap.String("product_id", ref.ProductID),
				zap.String("variant_id", ref.VariantID),
			)
			report.DanglingPruned++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.discardImages(ctx, images)
	return &report, nil
}
