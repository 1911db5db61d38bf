package catalog

import (
	"cmp"
	"slices"
	"strings"
)

// Sort orders products in place by key.
//
// Price keys use each product's lowest variant price. Products without
// variants have no price and always come last, for both directions.
// Ties fall back to insertion sequence: descending for SortNewest, ascending
// for every other key.
func Sort(products []JoinedProduct, key SortKey) {
	entries := make([]sortEntry, len(products))
	for i := range products {
		price, ok := products[i].MinPrice()
		entries[i] = sortEntry{p: products[i], price: price, priced: ok}
	}

	slices.SortStableFunc(entries, comparator(key))

	for i := range entries {
		products[i] = entries[i].p
	}
}

type sortEntry struct {
	p      JoinedProduct
	price  int64
	priced bool
}

func comparator(key SortKey) func(a, b sortEntry) int {
	switch key {
	case SortPriceLow:
		return func(a, b sortEntry) int {
			return cmp.Or(comparePrice(a, b, false), bySeq(a, b))
		}
	case SortPriceHigh:
		return func(a, b sortEntry) int {
			return cmp.Or(comparePrice(a, b, true), bySeq(a, b))
		}
	case SortNameAsc:
		return func(a, b sortEntry) int {
			return cmp.Or(strings.Compare(a.p.Name, b.p.Name), bySeq(a, b))
		}
	case SortNameDesc:
		return func(a, b sortEntry) int {
			return cmp.Or(strings.Compare(b.p.Name, a.p.Name), bySeq(a, b))
		}
	default:
		return func(a, b sortEntry) int {
			return cmp.Or(b.p.CreatedAt.Compare(a.p.CreatedAt), bySeq(b, a))
		}
	}
}

// comparePrice orders priced entries by price and puts unpriced ones last.
func comparePrice(a, b sortEntry, desc bool) int {
	switch {
	case !a.priced && !b.priced:
		return 0
	case !a.priced:
		return 1
	case !b.priced:
		return -1
	case desc:
		return cmp.Compare(b.price, a.price)
	default:
		return cmp.Compare(a.price, b.price)
	}
}

func bySeq(a, b sortEntry) int {
	return cmp.Compare(a.p.Seq, b.p.Seq)
}
