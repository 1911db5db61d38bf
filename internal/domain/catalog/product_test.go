package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID    map[string]*Product
	created []*Product
	updated []*Product
}

func (m *mockProductRepo) CreateProduct(_ context.Context, p *Product) error {
	m.created = append(m.created, p)
	m.byID[p.ID] = p
	return nil
}

func (m *mockProductRepo) UpdateProduct(_ context.Context, p *Product) error {
	m.updated = append(m.updated, p)
	return nil
}

func (m *mockProductRepo) GetProduct(_ context.Context, id string) (*Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, &NotFoundError{Entity: "product", ID: id}
	}
	cp := *p
	return &cp, nil
}

type mockTaxa map[string]TaxonKind

func (m mockTaxa) GetTaxon(_ context.Context, kind TaxonKind, id string) (*Taxon, error) {
	if k, ok := m[id]; ok && k == kind {
		return &Taxon{Kind: kind, ID: id, Name: id}, nil
	}
	return nil, &NotFoundError{Entity: string(kind), ID: id}
}

// --- Tests ---

func TestProductService_Create(t *testing.T) {
	repo := &mockProductRepo{byID: map[string]*Product{}}
	svc := NewProductService(repo, mockTaxa{"c1": KindCategory, "b1": KindBrand})

	p, err := svc.Create(context.Background(), ProductInput{
		Name: "  Parka ", Description: "Warm", CategoryID: "c1", BrandID: "b1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Parka", p.Name)
	assert.NotNil(t, p.VariantIDs)
	assert.Empty(t, p.VariantIDs)
	assert.False(t, p.CreatedAt.IsZero())
	require.Len(t, repo.created, 1)
}

func TestProductService_CreateValidation(t *testing.T) {
	svc := NewProductService(&mockProductRepo{byID: map[string]*Product{}}, mockTaxa{})

	_, err := svc.Create(context.Background(), ProductInput{Name: " ", CategoryID: "c1"})
	require.ErrorIs(t, err, ErrValidation)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{"name", "description", "brand"}, fields)
}

func TestProductService_CreateUnknownTaxon(t *testing.T) {
	svc := NewProductService(&mockProductRepo{byID: map[string]*Product{}}, mockTaxa{"c1": KindCategory})

	_, err := svc.Create(context.Background(), ProductInput{
		Name: "Parka", Description: "Warm", CategoryID: "c1", BrandID: "c1",
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestProductService_Update(t *testing.T) {
	repo := &mockProductRepo{byID: map[string]*Product{
		"p1": {ID: "p1", Name: "Old", VariantIDs: []string{"v1", "v2"}},
	}}
	svc := NewProductService(repo, mockTaxa{"c1": KindCategory, "b1": KindBrand})

	p, err := svc.Update(context.Background(), "p1", ProductInput{
		Name: "New", Description: "Desc", CategoryID: "c1", BrandID: "b1",
	})
	require.NoError(t, err)
	assert.Equal(t, "New", p.Name)
	assert.Equal(t, []string{"v1", "v2"}, p.VariantIDs)
	require.Len(t, repo.updated, 1)

	_, err = svc.Update(context.Background(), "missing", ProductInput{
		Name: "New", Description: "Desc", CategoryID: "c1", BrandID: "b1",
	})
	require.ErrorIs(t, err, ErrNotFound)
}
