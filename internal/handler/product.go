package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-catalog/internal/domain/catalog"
)

// CreateProduct adds a product with an empty variant list.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := decodeProductInput(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.products.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeProductRecord(w, http.StatusCreated, p)
}

// UpdateProduct replaces the descriptive fields of a product.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := decodeProductInput(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeProductRecord(w, http.StatusOK, p)
}

func decodeProductInput(w http.ResponseWriter, r *http.Request) (catalog.ProductInput, error) {
	fields, err := decodeStrings(w, r)
	if err != nil {
		return catalog.ProductInput{}, err
	}
	return catalog.ProductInput{
		Name:        fields["name"],
		Description: fields["description"],
		CategoryID:  fields["category"],
		BrandID:     fields["brand"],
	}, nil
}

func writeProductRecord(w http.ResponseWriter, status int, p *catalog.Product) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("product")
		encodeProduct(e, p)
		e.ObjEnd()
	})
}
