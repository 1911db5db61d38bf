package catalog

import (
	"fmt"
	"time"
)

// --- Helpers ---

var baseTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// snapshotBuilder assembles snapshots whose products are created one minute
// apart in the order they are added.
type snapshotBuilder struct {
	snap *Snapshot
	seq  int64
}

func newSnapshot() *snapshotBuilder {
	return &snapshotBuilder{snap: &Snapshot{
		Variants: map[string]Variant{},
		Categories: map[string]Taxon{
			"c1": {Kind: KindCategory, ID: "c1", Name: "Jackets", Status: StatusListed},
			"c2": {Kind: KindCategory, ID: "c2", Name: "Coats", Status: StatusUnlisted},
		},
		Brands: map[string]Taxon{
			"b1": {Kind: KindBrand, ID: "b1", Name: "Northwind", Status: StatusListed},
		},
	}}
}

type variantSpec struct {
	size  string
	price int64
}

func vs(size string, price int64) variantSpec { return variantSpec{size: size, price: price} }

func (b *snapshotBuilder) add(id, name, category string, variants ...variantSpec) *snapshotBuilder {
	b.seq++
	p := Product{
		ID:         id,
		Seq:        b.seq,
		Name:       name,
		CategoryID: category,
		BrandID:    "b1",
		CreatedAt:  baseTime.Add(time.Duration(b.seq) * time.Minute),
		VariantIDs: []string{},
	}
	for i, vs := range variants {
		vid := fmt.Sprintf("%s-v%d", id, i)
		b.snap.Variants[vid] = Variant{
			ID:        vid,
			ProductID: id,
			Size:      vs.size,
			Color:     "black",
			Price:     vs.price,
			MainImage: vid + ".jpg",
		}
		p.VariantIDs = append(p.VariantIDs, vid)
	}
	b.snap.Products = append(b.snap.Products, p)
	return b
}

func (b *snapshotBuilder) joined() []JoinedProduct {
	out, err := Join(b.snap)
	if err != nil {
		panic(err)
	}
	return out
}

func ids(products []JoinedProduct) []string {
	out := make([]string, len(products))
	for i := range products {
		out[i] = products[i].ID
	}
	return out
}
