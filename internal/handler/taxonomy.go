package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-catalog/internal/domain/catalog"
)

// ListTaxa lists every category or brand, newest first.
func (h *Handler) ListTaxa(kind catalog.TaxonKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taxa, err := h.taxa.List(r.Context(), kind)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart(taxonRoutes[kind])
			e.ArrStart()
			for i := range taxa {
				encodeTaxon(e, &taxa[i])
			}
			e.ArrEnd()
			e.ObjEnd()
		})
	}
}

// CreateTaxon adds a listed category or brand.
func (h *Handler) CreateTaxon(kind catalog.TaxonKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := decodeStrings(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		t, err := h.taxa.Create(r.Context(), kind, fields["name"])
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeTaxon(w, http.StatusCreated, t)
	}
}

// RenameTaxon changes the name of a category or brand.
func (h *Handler) RenameTaxon(kind catalog.TaxonKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := decodeStrings(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		t, err := h.taxa.Rename(r.Context(), kind, chi.URLParam(r, "id"), fields["name"])
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeTaxon(w, http.StatusOK, t)
	}
}

// SetTaxonStatus sets the status given in the body, or toggles it when the
// body has none.
func (h *Handler) SetTaxonStatus(kind catalog.TaxonKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := decodeStrings(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var status *catalog.Status
		if raw, ok := fields["status"]; ok {
			s := catalog.Status(raw)
			status = &s
		}
		t, err := h.taxa.SetStatus(r.Context(), kind, chi.URLParam(r, "id"), status)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeTaxon(w, http.StatusOK, t)
	}
}

func writeTaxon(w http.ResponseWriter, status int, t *catalog.Taxon) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart(string(t.Kind))
		encodeTaxon(e, t)
		e.ObjEnd()
	})
}
