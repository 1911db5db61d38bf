package catalog

// Pagination describes where a page sits in the filtered result.
type Pagination struct {
	CurrentPage   int
	TotalPages    int
	TotalProducts int
	HasNextPage   bool
	HasPrevPage   bool
}

// Page is one slice of a sorted, filtered listing.
type Page struct {
	Products   []JoinedProduct
	Pagination Pagination
}

// Paginate slices page out of the sorted set. The total is the length of the
// set itself, so the page contents and the counts cannot disagree. A page
// beyond the end yields an empty, non-nil slice.
func Paginate(sorted []JoinedProduct, page, pageSize int) Page {
	page = max(page, 1)
	pageSize = max(pageSize, 1)

	// Division first: pageSize may be close to math.MaxInt.
	total := len(sorted)
	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}

	products := []JoinedProduct{}
	if page <= totalPages {
		start := (page - 1) * pageSize
		products = sorted[start : start+min(pageSize, total-start)]
	}

	return Page{
		Products: products,
		Pagination: Pagination{
			CurrentPage:   page,
			TotalPages:    totalPages,
			TotalProducts: total,
			HasNextPage:   page < totalPages,
			HasPrevPage:   page > 1,
		},
	}
}
