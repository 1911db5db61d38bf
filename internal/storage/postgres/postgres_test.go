//go:build integration

package postgres

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/storefront-catalog/internal/domain/auth"
	"github.com/xenking/storefront-catalog/internal/domain/catalog"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "catalog",
				"POSTGRES_PASSWORD": "catalog",
				"POSTGRES_DB":       "catalog",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}
	databaseURL := fmt.Sprintf("postgres://catalog:catalog@%s:%s/catalog?sslmode=disable", host, port.Port())

	if err := RunMigrations(ctx, databaseURL); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	// A second run is a no-op.
	if err := RunMigrations(ctx, databaseURL); err != nil {
		log.Fatalf("migrate again: %v", err)
	}

	testPool, err = NewPool(ctx, databaseURL)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	return m.Run()
}

func seedTaxa(t *testing.T, repo *TaxonomyRepository) (category, brand string) {
	t.Helper()
	ctx := context.Background()

	suffix := uuid.NewString()[:8]
	c := &catalog.Taxon{Kind: catalog.KindCategory, ID: uuid.NewString(), Name: "Shoes " + suffix, Status: catalog.StatusListed, CreatedAt: time.Now()}
	b := &catalog.Taxon{Kind: catalog.KindBrand, ID: uuid.NewString(), Name: "Acme " + suffix, Status: catalog.StatusListed, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateTaxon(ctx, c))
	require.NoError(t, repo.CreateTaxon(ctx, b))
	return c.ID, b.ID
}

func seedProduct(t *testing.T, repo *ProductRepository, category, brand string) *catalog.Product {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	p := &catalog.Product{
		ID:         uuid.NewString(),
		Name:       "Runner",
		CategoryID: category,
		BrandID:    brand,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, repo.CreateProduct(context.Background(), p))
	return p
}

func newVariant(productID, size string, price int64) *catalog.Variant {
	return &catalog.Variant{
		ID:        uuid.NewString(),
		ProductID: productID,
		Size:      size,
		Color:     "black",
		Stock:     3,
		Price:     price,
		MainImage: "products/" + productID + "/main.png",
		SubImages: []string{"products/" + productID + "/a.png"},
		CreatedAt: time.Now(),
	}
}

func TestTransactor_AddVariantAndSnapshot(t *testing.T) {
	ctx := context.Background()
	tx := NewTransactor(testPool)
	products := NewProductRepository(testPool)
	taxa := NewTaxonomyRepository(testPool)
	reader := NewCatalogRepository(testPool, tx)

	category, brand := seedTaxa(t, taxa)
	p := seedProduct(t, products, category, brand)
	assert.Positive(t, p.Seq)

	v := newVariant(p.ID, "M", 1999)
	err := tx.Do(ctx, func(ctx context.Context) error {
		if err := products.CreateVariant(ctx, v); err != nil {
			return err
		}
		return products.AppendVariantRef(ctx, p.ID, v.ID)
	})
	require.NoError(t, err)

	snap, err := reader.ProductSnapshot(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, snap.Products, 1)
	assert.Equal(t, []string{v.ID}, snap.Products[0].VariantIDs)
	assert.Equal(t, int64(1999), snap.Variants[v.ID].Price)
	assert.Contains(t, snap.Categories, category)
	assert.Contains(t, snap.Brands, brand)

	full, err := reader.Snapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, full.Variants, v.ID)

	listed, err := products.ListVariants(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, v.SubImages, listed[0].SubImages)
}

func TestTransactor_RollsBackFailedUnit(t *testing.T) {
	ctx := context.Background()
	tx := NewTransactor(testPool)
	products := NewProductRepository(testPool)
	category, brand := seedTaxa(t, NewTaxonomyRepository(testPool))
	p := seedProduct(t, products, category, brand)

	v := newVariant(p.ID, "L", 500)
	boom := errors.New("boom")
	err := tx.Do(ctx, func(ctx context.Context) error {
		if err := products.CreateVariant(ctx, v); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.True(t, tx.Atomic())

	_, err = products.GetVariant(ctx, v.ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestProductSnapshot_NotFound(t *testing.T) {
	reader := NewCatalogRepository(testPool, NewTransactor(testPool))

	_, err := reader.ProductSnapshot(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestConsistencyQueries(t *testing.T) {
	ctx := context.Background()
	products := NewProductRepository(testPool)
	category, brand := seedTaxa(t, NewTaxonomyRepository(testPool))
	p := seedProduct(t, products, category, brand)

	orphan := newVariant(p.ID, "S", 100)
	require.NoError(t, products.CreateVariant(ctx, orphan))
	dangling := uuid.NewString()
	require.NoError(t, products.AppendVariantRef(ctx, p.ID, dangling))

	orphans, err := products.FindOrphanVariants(ctx)
	require.NoError(t, err)
	assert.Contains(t, variantIDs(orphans), orphan.ID)

	refs, err := products.FindDanglingRefs(ctx)
	require.NoError(t, err)
	var found bool
	for _, ref := range refs {
		if ref.ProductID == p.ID && ref.VariantID == dangling {
			found = true
		}
	}
	assert.True(t, found)

	require.NoError(t, products.RemoveVariantRef(ctx, p.ID, dangling))
	require.NoError(t, products.DeleteVariant(ctx, orphan.ID))
	assert.ErrorIs(t, products.DeleteVariant(ctx, orphan.ID), catalog.ErrNotFound)
}

func TestUpdateProduct_KeepsVariantList(t *testing.T) {
	ctx := context.Background()
	products := NewProductRepository(testPool)
	category, brand := seedTaxa(t, NewTaxonomyRepository(testPool))
	p := seedProduct(t, products, category, brand)
	require.NoError(t, products.AppendVariantRef(ctx, p.ID, "v-1"))

	p.Name = "Renamed"
	p.VariantIDs = nil
	require.NoError(t, products.UpdateProduct(ctx, p))

	got, err := products.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, []string{"v-1"}, got.VariantIDs)

	missing := *p
	missing.ID = uuid.NewString()
	assert.ErrorIs(t, products.UpdateProduct(ctx, &missing), catalog.ErrNotFound)
}

func TestTaxonomy_NameConflictIgnoresCase(t *testing.T) {
	ctx := context.Background()
	repo := NewTaxonomyRepository(testPool)
	name := "Outdoor " + uuid.NewString()[:8]

	first := &catalog.Taxon{Kind: catalog.KindCategory, ID: uuid.NewString(), Name: name, Status: catalog.StatusListed, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateTaxon(ctx, first))

	dup := &catalog.Taxon{Kind: catalog.KindCategory, ID: uuid.NewString(), Name: strings.ToUpper(name), Status: catalog.StatusListed, CreatedAt: time.Now()}
	assert.ErrorIs(t, repo.CreateTaxon(ctx, dup), catalog.ErrConflict)

	// Same name is fine under the other kind.
	brand := &catalog.Taxon{Kind: catalog.KindBrand, ID: uuid.NewString(), Name: name, Status: catalog.StatusListed, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateTaxon(ctx, brand))

	found, err := repo.FindTaxonByName(ctx, catalog.KindCategory, strings.ToUpper(name))
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	first.Status = catalog.StatusUnlisted
	require.NoError(t, repo.UpdateTaxon(ctx, first))
	got, err := repo.GetTaxon(ctx, catalog.KindCategory, first.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusUnlisted, got.Status)

	list, err := repo.ListTaxa(ctx, catalog.KindCategory)
	require.NoError(t, err)
	assert.NotEmpty(t, list)
}

func TestAPIKeyRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAPIKeyRepository(testPool)
	pepper := []byte("pepper")
	key := uuid.NewString()

	require.NoError(t, repo.CreateAPIKey(ctx, &auth.APIKeyInfo{
		ID:      uuid.NewString(),
		KeyHash: auth.Hash(pepper, key),
		Name:    "admin",
		Scopes:  []string{"admin"},
	}))

	info, err := auth.NewAuthenticator(repo, pepper).Authenticate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "admin", info.Name)

	_, err = repo.FindByHash(ctx, "missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func variantIDs(vs []catalog.Variant) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.ID)
	}
	return out
}
