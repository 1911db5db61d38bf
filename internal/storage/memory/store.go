// Package memory is an in-process catalog store. Reads are served from
// consistent copies taken under a read lock; writes are not transactional.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/xenking/storefront-catalog/internal/domain/auth"
	"github.com/xenking/storefront-catalog/internal/domain/catalog"
	"github.com/xenking/storefront-catalog/internal/domain/taxonomy"
	"github.com/xenking/storefront-catalog/internal/domain/variant"
)

var (
	_ catalog.Reader            = (*Store)(nil)
	_ catalog.ProductRepository = (*Store)(nil)
	_ variant.Store             = (*Store)(nil)
	_ taxonomy.Repository       = (*Store)(nil)
	_ auth.Repository           = (*Store)(nil)
)

// Store keeps the whole catalog in maps.
type Store struct {
	mu       sync.RWMutex
	seq      int64
	products map[string]*catalog.Product
	variants map[string]catalog.Variant
	taxa     map[catalog.TaxonKind]map[string]catalog.Taxon
	apikeys  map[string]auth.APIKeyInfo
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		products: map[string]*catalog.Product{},
		variants: map[string]catalog.Variant{},
		taxa: map[catalog.TaxonKind]map[string]catalog.Taxon{
			catalog.KindCategory: {},
			catalog.KindBrand:    {},
		},
		apikeys: map[string]auth.APIKeyInfo{},
	}
}

// Snapshot copies every product, variant and taxon.
func (s *Store) Snapshot(_ context.Context) (*catalog.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, cloneProduct(p))
	}
	slices.SortFunc(products, func(a, b catalog.Product) int { return cmp.Compare(a.Seq, b.Seq) })

	return &catalog.Snapshot{
		Products:   products,
		Variants:   maps.Clone(s.variants),
		Categories: maps.Clone(s.taxa[catalog.KindCategory]),
		Brands:     maps.Clone(s.taxa[catalog.KindBrand]),
	}, nil
}

// ProductSnapshot copies one product and what it references.
func (s *Store) ProductSnapshot(_ context.Context, id string) (*catalog.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, &catalog.NotFoundError{Entity: "product", ID: id}
	}

	snap := &catalog.Snapshot{
		Products:   []catalog.Product{cloneProduct(p)},
		Variants:   make(map[string]catalog.Variant, len(p.VariantIDs)),
		Categories: map[string]catalog.Taxon{},
		Brands:     map[string]catalog.Taxon{},
	}
	for _, vid := range p.VariantIDs {
		if v, ok := s.variants[vid]; ok {
			snap.Variants[vid] = v
		}
	}
	if c, ok := s.taxa[catalog.KindCategory][p.CategoryID]; ok {
		snap.Categories[c.ID] = c
	}
	if b, ok := s.taxa[catalog.KindBrand][p.BrandID]; ok {
		snap.Brands[b.ID] = b
	}
	return snap, nil
}

// CreateProduct stores p and assigns its sequence number.
func (s *Store) CreateProduct(_ context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	p.Seq = s.seq
	stored := cloneProduct(p)
	s.products[p.ID] = &stored
	return nil
}

// UpdateProduct replaces the editable fields of a product.
func (s *Store) UpdateProduct(_ context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.products[p.ID]
	if !ok {
		return &catalog.NotFoundError{Entity: "product", ID: p.ID}
	}
	stored.Name = p.Name
	stored.Description = p.Description
	stored.CategoryID = p.CategoryID
	stored.BrandID = p.BrandID
	stored.UpdatedAt = p.UpdatedAt
	return nil
}

// GetProduct returns a copy of a product.
func (s *Store) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, &catalog.NotFoundError{Entity: "product", ID: id}
	}
	out := cloneProduct(p)
	return &out, nil
}

// GetVariant returns a variant by id.
func (s *Store) GetVariant(_ context.Context, id string) (*catalog.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.variants[id]
	if !ok {
		return nil, &catalog.NotFoundError{Entity: "variant", ID: id}
	}
	return &v, nil
}

// ListVariants returns the resolvable variants of a product in list order.
func (s *Store) ListVariants(_ context.Context, productID string) ([]catalog.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, &catalog.NotFoundError{Entity: "product", ID: productID}
	}
	out := make([]catalog.Variant, 0, len(p.VariantIDs))
	for _, id := range p.VariantIDs {
		if v, ok := s.variants[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// CreateVariant stores v.
func (s *Store) CreateVariant(_ context.Context, v *catalog.Variant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *v
	stored.SubImages = slices.Clone(v.SubImages)
	s.variants[v.ID] = stored
	return nil
}

// DeleteVariant removes a variant record.
func (s *Store) DeleteVariant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.variants[id]; !ok {
		return &catalog.NotFoundError{Entity: "variant", ID: id}
	}
	delete(s.variants, id)
	return nil
}

// AppendVariantRef adds variantID to the end of the product's list.
func (s *Store) AppendVariantRef(_ context.Context, productID, variantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return &catalog.NotFoundError{Entity: "product", ID: productID}
	}
	p.VariantIDs = append(p.VariantIDs, variantID)
	return nil
}

// RemoveVariantRef drops variantID from the product's list.
func (s *Store) RemoveVariantRef(_ context.Context, productID, variantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return &catalog.NotFoundError{Entity: "product", ID: productID}
	}
	p.VariantIDs = slices.DeleteFunc(p.VariantIDs, func(id string) bool { return id == variantID })
	return nil
}

// FindOrphanVariants returns variants their product does not list.
func (s *Store) FindOrphanVariants(_ context.Context) ([]catalog.Variant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []catalog.Variant
	for _, v := range s.variants {
		p, ok := s.products[v.ProductID]
		if !ok || !slices.Contains(p.VariantIDs, v.ID) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b catalog.Variant) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// FindDanglingRefs returns list entries without a variant record.
func (s *Store) FindDanglingRefs(_ context.Context) ([]variant.Ref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []variant.Ref
	for _, p := range s.products {
		for _, id := range p.VariantIDs {
			if _, ok := s.variants[id]; !ok {
				out = append(out, variant.Ref{ProductID: p.ID, VariantID: id})
			}
		}
	}
	return out, nil
}

// CreateTaxon stores t unless its name is taken within the kind.
func (s *Store) CreateTaxon(_ context.Context, t *catalog.Taxon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(t.Kind, t.Name, t.ID) {
		return &catalog.ConflictError{Entity: string(t.Kind), Name: t.Name}
	}
	s.taxa[t.Kind][t.ID] = *t
	return nil
}

// UpdateTaxon replaces name and status of an entry.
func (s *Store) UpdateTaxon(_ context.Context, t *catalog.Taxon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.taxa[t.Kind][t.ID]
	if !ok {
		return &catalog.NotFoundError{Entity: string(t.Kind), ID: t.ID}
	}
	if s.nameTaken(t.Kind, t.Name, t.ID) {
		return &catalog.ConflictError{Entity: string(t.Kind), Name: t.Name}
	}
	stored.Name = t.Name
	stored.Status = t.Status
	s.taxa[t.Kind][t.ID] = stored
	return nil
}

// GetTaxon returns a category or brand by id.
func (s *Store) GetTaxon(_ context.Context, kind catalog.TaxonKind, id string) (*catalog.Taxon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.taxa[kind][id]
	if !ok {
		return nil, &catalog.NotFoundError{Entity: string(kind), ID: id}
	}
	return &t, nil
}

// FindTaxonByName looks an entry up by name, ignoring case.
func (s *Store) FindTaxonByName(_ context.Context, kind catalog.TaxonKind, name string) (*catalog.Taxon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.taxa[kind] {
		if strings.EqualFold(t.Name, name) {
			return &t, nil
		}
	}
	return nil, &catalog.NotFoundError{Entity: string(kind), ID: name}
}

// ListTaxa returns every entry of kind, newest first.
func (s *Store) ListTaxa(_ context.Context, kind catalog.TaxonKind) ([]catalog.Taxon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Collect(maps.Values(s.taxa[kind]))
	slices.SortFunc(out, func(a, b catalog.Taxon) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), strings.Compare(a.ID, b.ID))
	})
	return out, nil
}

// FindByHash looks up an API key by its hash.
func (s *Store) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.apikeys[hash]
	if !ok {
		return nil, &catalog.NotFoundError{Entity: "api key", ID: hash}
	}
	return &info, nil
}

// CreateAPIKey stores an API key.
func (s *Store) CreateAPIKey(_ context.Context, info *auth.APIKeyInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.apikeys[info.KeyHash] = *info
	return nil
}

// nameTaken must be called with s.mu held.
func (s *Store) nameTaken(kind catalog.TaxonKind, name, selfID string) bool {
	for id, t := range s.taxa[kind] {
		if id != selfID && strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

func cloneProduct(p *catalog.Product) catalog.Product {
	out := *p
	out.VariantIDs = slices.Clone(p.VariantIDs)
	if out.VariantIDs == nil {
		out.VariantIDs = []string{}
	}
	return out
}
