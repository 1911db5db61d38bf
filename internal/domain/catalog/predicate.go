package catalog

// Match reports whether p satisfies every constraint of c.
//
// Size and price are independent existential checks over the variant list:
// one variant may satisfy the size constraint and another the price
// constraint. Matching them against the same variant would change which
// products customers see, so it is deliberately not done here.
func (c Criteria) Match(p *JoinedProduct) bool {
	return c.matchCategory(p) &&
		c.matchBrand(p) &&
		c.matchSize(p) &&
		c.matchPrice(p)
}

func (c Criteria) matchCategory(p *JoinedProduct) bool {
	return len(c.Categories) == 0 || c.Categories.Has(p.CategoryID)
}

func (c Criteria) matchBrand(p *JoinedProduct) bool {
	return len(c.Brands) == 0 || c.Brands.Has(p.BrandID)
}

func (c Criteria) matchSize(p *JoinedProduct) bool {
	if len(c.Sizes) == 0 {
		return true
	}
	for _, v := range p.Variants {
		if c.Sizes.Has(v.Size) {
			return true
		}
	}
	return false
}

func (c Criteria) matchPrice(p *JoinedProduct) bool {
	if !c.MinPrice.Set && !c.MaxPrice.Set {
		return true
	}
	for _, v := range p.Variants {
		if c.MinPrice.Set && v.Price < c.MinPrice.Value {
			continue
		}
		if c.MaxPrice.Set && v.Price > c.MaxPrice.Value {
			continue
		}
		return true
	}
	return false
}

// Filter returns the products matching c in their original order. The input
// slice is not modified.
func Filter(products []JoinedProduct, c Criteria) []JoinedProduct {
	out := make([]JoinedProduct, 0, len(products))
	for i := range products {
		if c.Match(&products[i]) {
			out = append(out, products[i])
		}
	}
	return out
}

// Count returns how many products match c. It applies the same predicate as
// Filter over the same input.
func Count(products []JoinedProduct, c Criteria) int {
	n := 0
	for i := range products {
		if c.Match(&products[i]) {
			n++
		}
	}
	return n
}
