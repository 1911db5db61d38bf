// Package handler exposes the catalog over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront-catalog/internal/domain/auth"
	"github.com/xenking/storefront-catalog/internal/domain/catalog"
	"github.com/xenking/storefront-catalog/internal/domain/taxonomy"
	"github.com/xenking/storefront-catalog/internal/domain/variant"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to stored image keys in responses.
	// When empty, keys are returned as stored.
	ImageBaseURL string
	// Storefront and Admin are the page size settings of the two listings.
	Storefront catalog.PageDefaults
	Admin      catalog.PageDefaults
	// MaxSecondaryImages limits the subImages files of a new variant.
	MaxSecondaryImages int
	// MaxFileSize limits each uploaded image, in bytes.
	MaxFileSize int64
}

// Handler serves the storefront and admin routes, delegating business logic
// to the domain services.
type Handler struct {
	engine   *catalog.Engine
	products *catalog.ProductService
	variants *variant.Manager
	taxa     *taxonomy.Service
	cfg      HandlerConfig
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	engine *catalog.Engine,
	products *catalog.ProductService,
	variants *variant.Manager,
	taxa *taxonomy.Service,
) *Handler {
	if cfg.Storefront.PageSize <= 0 {
		cfg.Storefront.PageSize = 4
	}
	if cfg.Admin.PageSize <= 0 {
		cfg.Admin.PageSize = 10
	}
	if cfg.MaxSecondaryImages <= 0 {
		cfg.MaxSecondaryImages = 5
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 15 << 20
	}
	return &Handler{
		engine:   engine,
		products: products,
		variants: variants,
		taxa:     taxa,
		cfg:      cfg,
	}
}

// Router returns the API routes. Admin routes require an API key accepted by
// authn.
func (h *Handler) Router(authn *auth.Authenticator) chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorBody(w, http.StatusNotFound, kindNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeErrorBody(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/categories", h.ListTaxa(catalog.KindCategory))
		r.Get("/brands", h.ListTaxa(catalog.KindBrand))

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAPIKey(authn))

			r.Get("/products", h.AdminListProducts)
			r.Post("/products", h.CreateProduct)
			r.Put("/products/{id}", h.UpdateProduct)
			r.Get("/products/{id}/variants", h.ListVariants)

			r.Post("/variants", h.AddVariant)
			r.Delete("/variants/{id}", h.RemoveVariant)

			for kind, plural := range taxonRoutes {
				r.Route("/"+plural, func(r chi.Router) {
					r.Get("/", h.ListTaxa(kind))
					r.Post("/", h.CreateTaxon(kind))
					r.Put("/{id}", h.RenameTaxon(kind))
					r.Put("/{id}/status", h.SetTaxonStatus(kind))
				})
			}

			r.Post("/maintenance/reconcile", h.Reconcile)
		})
	})
	return r
}

var taxonRoutes = map[catalog.TaxonKind]string{
	catalog.KindCategory: "categories",
	catalog.KindBrand:    "brands",
}
