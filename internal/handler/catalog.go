package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-catalog/internal/domain/catalog"
)

// ListProducts serves the storefront listing.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.cfg.Storefront)
}

// AdminListProducts serves the admin listing, which only differs in its page
// size default.
func (h *Handler) AdminListProducts(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.cfg.Admin)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, defaults catalog.PageDefaults) {
	criteria := catalog.Normalize(r.URL.Query(), defaults)

	page, err := h.engine.List(r.Context(), criteria)
	if err != nil {
		writeReadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		h.encodePage(e, page)
	})
}

// GetProduct returns one joined product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeReadError(w, r, err)
		return
	}
	h.writeProduct(w, http.StatusOK, p)
}

func (h *Handler) writeProduct(w http.ResponseWriter, status int, p *catalog.JoinedProduct) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("product")
		h.encodeJoinedProduct(e, p)
		e.ObjEnd()
	})
}
