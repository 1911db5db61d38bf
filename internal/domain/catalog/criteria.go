package catalog

import (
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// SortKey selects the listing order.
type SortKey string

const (
	SortNewest    SortKey = "newest"
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
	SortNameAsc   SortKey = "a-z"
	SortNameDesc  SortKey = "z-a"
)

// ParseSortKey returns the matching key, or SortNewest for anything unknown.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.TrimSpace(s)); k {
	case SortNewest, SortPriceLow, SortPriceHigh, SortNameAsc, SortNameDesc:
		return k
	default:
		return SortNewest
	}
}

// Query parameter names accepted by Normalize.
const (
	ParamCategory = "category"
	ParamBrand    = "brand"
	ParamSize     = "size"
	ParamMinPrice = "minPrice"
	ParamMaxPrice = "maxPrice"
	ParamSort     = "sort"
	ParamPage     = "page"
	ParamLimit    = "limit"
)

// Set is a set of strings. A nil or empty set places no constraint.
type Set map[string]struct{}

// NewSet builds a set from values.
func NewSet(values ...string) Set {
	if len(values) == 0 {
		return nil
	}
	s := make(Set, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Bound is an optional inclusive price bound in minor units.
type Bound struct {
	Value int64
	Set   bool
}

// At returns a bound fixed at v.
func At(v int64) Bound { return Bound{Value: v, Set: true} }

// Criteria is the normalized, immutable form of a listing request.
type Criteria struct {
	Categories Set
	Brands     Set
	Sizes      Set
	MinPrice   Bound
	MaxPrice   Bound
	Sort       SortKey
	Page       int
	PageSize   int
}

// PageDefaults carries the page size configuration for one listing surface.
// Storefront and admin listings use different defaults.
type PageDefaults struct {
	PageSize int
	// MaxPageSize caps the requested page size when positive.
	MaxPageSize int
}

// Normalize builds Criteria from raw query parameters. It never fails:
// malformed values are defaulted or clamped so that a client may omit or
// garble any dimension.
func Normalize(params url.Values, defaults PageDefaults) Criteria {
	c := Criteria{
		Categories: parseSet(params[ParamCategory]),
		Brands:     parseSet(params[ParamBrand]),
		Sizes:      parseSet(params[ParamSize]),
		MinPrice:   parseBound(params.Get(ParamMinPrice), decimal.Decimal.Ceil),
		MaxPrice:   parseBound(params.Get(ParamMaxPrice), decimal.Decimal.Floor),
		Sort:       ParseSortKey(params.Get(ParamSort)),
		Page:       parsePositive(params.Get(ParamPage), 1),
		PageSize:   parsePositive(params.Get(ParamLimit), max(defaults.PageSize, 1)),
	}
	if defaults.MaxPageSize > 0 && c.PageSize > defaults.MaxPageSize {
		c.PageSize = defaults.MaxPageSize
	}
	return c
}

// parseSet accepts repeated keys as well as comma separated values.
func parseSet(values []string) Set {
	var s Set
	for _, raw := range values {
		for _, v := range strings.Split(raw, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if s == nil {
				s = make(Set)
			}
			s[v] = struct{}{}
		}
	}
	return s
}

var maxBound = decimal.NewFromInt(math.MaxInt64)

// parseBound reads a non-negative number. Fractional values are rounded
// inward by round so the bound stays inclusive over integer prices.
func parseBound(raw string, round func(decimal.Decimal) decimal.Decimal) Bound {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Bound{}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return Bound{}
	}
	d = round(d)
	if d.GreaterThan(maxBound) {
		d = maxBound
	}
	return At(d.IntPart())
}

// parsePositive parses an integer, falling back to def when malformed and
// clamping to 1 from below.
func parsePositive(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return max(n, 1)
}
