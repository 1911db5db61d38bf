package catalog

import "github.com/go-faster/errors"

// Join materializes every product of the snapshot with its full variant list
// and resolved category and brand, keeping snapshot order.
//
// A variant id that does not resolve to a variant owned by the product is a
// dangling reference and fails the whole join. A missing category or brand
// resolves to an empty name.
func Join(s *Snapshot) ([]JoinedProduct, error) {
	out := make([]JoinedProduct, 0, len(s.Products))
	for _, p := range s.Products {
		jp, err := joinProduct(s, p)
		if err != nil {
			return nil, errors.Wrapf(err, "join product %s", p.ID)
		}
		out = append(out, jp)
	}
	return out, nil
}

func joinProduct(s *Snapshot, p Product) (JoinedProduct, error) {
	variants := make([]Variant, 0, len(p.VariantIDs))
	for _, id := range p.VariantIDs {
		v, ok := s.Variants[id]
		if !ok || v.ProductID != p.ID {
			return JoinedProduct{}, &NotFoundError{Entity: "variant", ID: id}
		}
		variants = append(variants, v)
	}
	return JoinedProduct{
		Product:  p,
		Variants: variants,
		Category: Ref{ID: p.CategoryID, Name: s.Categories[p.CategoryID].Name},
		Brand:    Ref{ID: p.BrandID, Name: s.Brands[p.BrandID].Name},
	}, nil
}
