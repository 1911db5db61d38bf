package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/storefront-catalog/internal/domain/auth"
	"github.com/xenking/storefront-catalog/internal/domain/catalog"
	"github.com/xenking/storefront-catalog/internal/domain/taxonomy"
	"github.com/xenking/storefront-catalog/internal/domain/variant"
	"github.com/xenking/storefront-catalog/internal/media"
	"github.com/xenking/storefront-catalog/internal/storage/memory"
)

const testAPIKey = "test-admin-key"

// --- Response types ---

type errorBody struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Fields  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"fields"`
}

func (b errorBody) fieldNames() []string {
	out := make([]string, 0, len(b.Fields))
	for _, f := range b.Fields {
		out = append(out, f.Field)
	}
	return out
}

type variantBody struct {
	ID        string   `json:"id"`
	Product   string   `json:"product"`
	Size      string   `json:"size"`
	Price     int64    `json:"price"`
	MainImage string   `json:"mainImage"`
	SubImages []string `json:"subImages"`
}

type productBody struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	MinPrice *int64        `json:"minPrice"`
	Variants []variantBody `json:"variants"`
	Category struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"category"`
}

type listBody struct {
	Products   []productBody `json:"products"`
	Pagination struct {
		CurrentPage   int  `json:"currentPage"`
		TotalPages    int  `json:"totalPages"`
		TotalProducts int  `json:"totalProducts"`
		HasNextPage   bool `json:"hasNextPage"`
		HasPrevPage   bool `json:"hasPrevPage"`
	} `json:"pagination"`
}

// --- Test environment ---

type testEnv struct {
	store    *memory.Store
	objects  *memory.Objects
	products *catalog.ProductService
	variants *variant.Manager
	taxa     *taxonomy.Service
	router   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.New()
	objects := memory.NewObjects()
	engine, err := catalog.NewEngine(store, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	env := &testEnv{
		store:    store,
		objects:  objects,
		products: catalog.NewProductService(store, store),
		variants: variant.NewManager(store, memory.NewTransactor(), media.NewUploader(objects, media.Config{})),
		taxa:     taxonomy.NewService(store),
	}

	pepper := []byte("pepper")
	require.NoError(t, store.CreateAPIKey(context.Background(), &auth.APIKeyInfo{
		ID:      "key-1",
		KeyHash: auth.Hash(pepper, testAPIKey),
		Name:    "test",
	}))

	h := NewHandler(HandlerConfig{
		ImageBaseURL:       "https://cdn.example.com/",
		Storefront:         catalog.PageDefaults{PageSize: 4},
		Admin:              catalog.PageDefaults{PageSize: 10},
		MaxSecondaryImages: 2,
		MaxFileSize:        1 << 10,
	}, engine, env.products, env.variants, env.taxa)
	env.router = h.Router(auth.NewAuthenticator(store, pepper))
	return env
}

func (env *testEnv) taxon(t *testing.T, kind catalog.TaxonKind, name string) string {
	t.Helper()
	tx, err := env.taxa.Create(context.Background(), kind, name)
	require.NoError(t, err)
	return tx.ID
}

func (env *testEnv) product(t *testing.T, name, category, brand string, prices ...int64) string {
	t.Helper()
	ctx := context.Background()

	p, err := env.products.Create(ctx, catalog.ProductInput{Name: name, CategoryID: category, BrandID: brand})
	require.NoError(t, err)
	for _, price := range prices {
		_, err := env.variants.Add(ctx, variant.AddRequest{
			ProductID: p.ID,
			Size:      "M",
			Color:     "red",
			Price:     price,
			Images: variant.Images{
				Main:      testImage("main.png"),
				Secondary: []variant.Image{testImage("side.png")},
			},
		})
		require.NoError(t, err)
	}
	return p.ID
}

func testImage(name string) variant.Image {
	return variant.Image{Filename: name, ContentType: "image/png", Size: 3, Body: strings.NewReader("png")}
}

func (env *testEnv) do(t *testing.T, method, target string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, target, bytes.NewReader(data))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	if admin {
		r.Header.Set(APIKeyHeader, testAPIKey)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type formFile struct {
	field, name, contentType string
	data                     []byte
}

func multipartRequest(t *testing.T, values map[string]string, files []formFile) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/admin/variants", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	r.Header.Set(APIKeyHeader, testAPIKey)
	return r
}

// --- Storefront ---

func TestListProducts_FilterSortPaginate(t *testing.T) {
	env := newTestEnv(t)
	c1 := env.taxon(t, catalog.KindCategory, "C1")
	c2 := env.taxon(t, catalog.KindCategory, "C2")
	brand := env.taxon(t, catalog.KindBrand, "Acme")

	env.product(t, "A", c2, brand, 100)
	expensive := env.product(t, "B", c1, brand, 900)
	env.product(t, "C", c2, brand, 200)
	cheap := env.product(t, "D", c1, brand, 300, 50)
	env.product(t, "E", c2, brand, 400)

	w := env.do(t, http.MethodGet, "/api/products?category="+c1+"&sort=price-low&limit=2&page=1", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decode[listBody](t, w)
	require.Len(t, body.Products, 2)
	assert.Equal(t, cheap, body.Products[0].ID)
	assert.Equal(t, expensive, body.Products[1].ID)
	require.NotNil(t, body.Products[0].MinPrice)
	assert.Equal(t, int64(50), *body.Products[0].MinPrice)
	assert.Equal(t, "C1", body.Products[0].Category.Name)
	assert.Equal(t, 1, body.Pagination.TotalPages)
	assert.Equal(t, 2, body.Pagination.TotalProducts)
	assert.False(t, body.Pagination.HasNextPage)
	assert.False(t, body.Pagination.HasPrevPage)

	v := body.Products[0].Variants[0]
	assert.True(t, strings.HasPrefix(v.MainImage, "https://cdn.example.com/products/"+cheap+"/"), v.MainImage)
}

func TestListProducts_DefaultPageSizeAndPastEnd(t *testing.T) {
	env := newTestEnv(t)
	c := env.taxon(t, catalog.KindCategory, "C")
	b := env.taxon(t, catalog.KindBrand, "B")
	for _, name := range []string{"p1", "p2", "p3", "p4", "p5"} {
		env.product(t, name, c, b, 10)
	}

	body := decode[listBody](t, env.do(t, http.MethodGet, "/api/products", nil, false))
	assert.Len(t, body.Products, 4)
	assert.Equal(t, 2, body.Pagination.TotalPages)
	assert.True(t, body.Pagination.HasNextPage)

	admin := decode[listBody](t, env.do(t, http.MethodGet, "/api/admin/products", nil, true))
	assert.Len(t, admin.Products, 5)

	w := env.do(t, http.MethodGet, "/api/products?page=9", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"products":[]`)
	past := decode[listBody](t, w)
	assert.Equal(t, 9, past.Pagination.CurrentPage)
	assert.False(t, past.Pagination.HasNextPage)
	assert.True(t, past.Pagination.HasPrevPage)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)
	c := env.taxon(t, catalog.KindCategory, "C")
	b := env.taxon(t, catalog.KindBrand, "B")
	id := env.product(t, "Solo", c, b)

	w := env.do(t, http.MethodGet, "/api/products/"+id, nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Product productBody `json:"product"`
	}](t, w)
	assert.Equal(t, "Solo", body.Product.Name)
	assert.Nil(t, body.Product.MinPrice)
	assert.Empty(t, body.Product.Variants)

	w = env.do(t, http.MethodGet, "/api/products/missing", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, kindNotFound, decode[errorBody](t, w).Kind)
}

func TestStorefront_DanglingVariantIsInternalError(t *testing.T) {
	env := newTestEnv(t)
	c := env.taxon(t, catalog.KindCategory, "C")
	b := env.taxon(t, catalog.KindBrand, "B")
	env.product(t, "Healthy", c, b, 10)
	broken := env.product(t, "Broken", c, b, 20)
	require.NoError(t, env.store.AppendVariantRef(context.Background(), broken, "ghost-variant"))

	for _, target := range []string{"/api/products", "/api/admin/products", "/api/products/" + broken} {
		w := env.do(t, http.MethodGet, target, nil, true)
		require.Equal(t, http.StatusInternalServerError, w.Code, target)

		body := decode[errorBody](t, w)
		assert.Equal(t, kindInternal, body.Kind, target)
		assert.Equal(t, "internal error", body.Message, target)
		assert.NotContains(t, w.Body.String(), "ghost-variant", target)
	}

	w := env.do(t, http.MethodGet, "/api/products/missing", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Admin ---

func TestAdmin_RequiresAPIKey(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/admin/products", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, kindUnauthorized, decode[errorBody](t, w).Kind)

	r := httptest.NewRequest(http.MethodGet, "/api/admin/products", nil)
	r.Header.Set(APIKeyHeader, "wrong")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateProduct(t *testing.T) {
	env := newTestEnv(t)
	c := env.taxon(t, catalog.KindCategory, "C")
	b := env.taxon(t, catalog.KindBrand, "B")

	t.Run("Created", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/admin/products", map[string]string{
			"name": "  Runner ", "description": "fast", "category": c, "brand": b,
		}, true)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"name":"Runner"`)
		assert.Contains(t, w.Body.String(), `"variants":[]`)
	})
	t.Run("Validation", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/admin/products", map[string]string{"name": " "}, true)
		require.Equal(t, http.StatusBadRequest, w.Code)
		body := decode[errorBody](t, w)
		assert.Equal(t, kindValidation, body.Kind)
		assert.ElementsMatch(t, []string{"name", "description", "category", "brand"}, body.fieldNames())
	})
	t.Run("UnknownCategory", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/admin/products", map[string]string{
			"name": "X", "description": "d", "category": "nope", "brand": b,
		}, true)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
	t.Run("MalformedBody", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/api/admin/products", strings.NewReader("[1,2"))
		r.Header.Set(APIKeyHeader, testAPIKey)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, r)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpdateProduct_KeepsVariants(t *testing.T) {
	env := newTestEnv(t)
	c := env.taxon(t, catalog.KindCategory, "C")
	b := env.taxon(t, catalog.KindBrand, "B")
	id := env.product(t, "Old", c, b, 100)

	w := env.do(t, http.MethodPut, "/api/admin/products/"+id, map[string]string{
		"name": "New", "description": "d", "category": c, "brand": b,
	}, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	p, err := env.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "New", p.Name)
	assert.Len(t, p.VariantIDs, 1)

	w = env.do(t, http.MethodPut, "/api/admin/products/missing", map[string]string{
		"name": "New", "description": "d", "category": c, "brand": b,
	}, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddAndRemoveVariant(t *testing.T) {
	env := newTestEnv(t)
	c := env.taxon(t, catalog.KindCategory, "C")
	b := env.taxon(t, catalog.KindBrand, "B")
	id := env.product(t, "Shirt", c, b)

	r := multipartRequest(t, map[string]string{
		"product": id, "size": "L", "color": "blue", "stock": "7", "price": "2500",
	}, []formFile{
		{field: formMainImage, name: "front.png", contentType: "image/png", data: []byte("main")},
		{field: formSubImages, name: "back.webp", contentType: "image/webp", data: []byte("sub1")},
		{field: formSubImages, name: "side.jpg", contentType: "application/octet-stream", data: []byte("sub2")},
	})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 3, env.objects.Len())

	created := decode[struct {
		Variant variantBody `json:"variant"`
	}](t, w).Variant
	assert.Equal(t, id, created.Product)
	assert.Equal(t, int64(2500), created.Price)
	assert.Len(t, created.SubImages, 2)

	list := decode[struct {
		Variants []variantBody `json:"variants"`
	}](t, env.do(t, http.MethodGet, "/api/admin/products/"+id+"/variants", nil, true))
	require.Len(t, list.Variants, 1)
	assert.Equal(t, created.ID, list.Variants[0].ID)

	w = env.do(t, http.MethodDelete, "/api/admin/variants/"+created.ID, nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	parent := decode[struct {
		Product productBody `json:"product"`
	}](t, w).Product
	assert.Equal(t, id, parent.ID)
	assert.Empty(t, parent.Variants)
	assert.Zero(t, env.objects.Len())

	w = env.do(t, http.MethodDelete, "/api/admin/variants/"+created.ID, nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddVariant_ReportsEveryField(t *testing.T) {
	env := newTestEnv(t)

	r := multipartRequest(t, map[string]string{"stock": "-1", "price": "abc"}, []formFile{
		{field: formMainImage, name: "main.gif", contentType: "image/gif", data: []byte("gif")},
		{field: formSubImages, name: "a.png", contentType: "image/png", data: []byte("1")},
		{field: formSubImages, name: "b.png", contentType: "image/png", data: []byte("2")},
		{field: formSubImages, name: "c.png", contentType: "image/png", data: []byte("3")},
	})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, kindValidation, body.Kind)
	assert.ElementsMatch(t,
		[]string{"product", "size", "color", "stock", "price", formMainImage, formSubImages},
		body.fieldNames(),
	)
	assert.Zero(t, env.objects.Len())
}

func TestAddVariant_FileTooLarge(t *testing.T) {
	env := newTestEnv(t)
	c := env.taxon(t, catalog.KindCategory, "C")
	b := env.taxon(t, catalog.KindBrand, "B")
	id := env.product(t, "Shirt", c, b)

	r := multipartRequest(t, map[string]string{
		"product": id, "size": "L", "color": "blue", "stock": "1", "price": "1",
	}, []formFile{
		{field: formMainImage, name: "main.png", contentType: "image/png", data: bytes.Repeat([]byte("x"), 2<<10)},
		{field: formSubImages, name: "a.png", contentType: "image/png", data: []byte("1")},
	})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{formMainImage}, decode[errorBody](t, w).fieldNames())
}

func TestAddVariant_UnknownProductUploadsNothing(t *testing.T) {
	env := newTestEnv(t)

	r := multipartRequest(t, map[string]string{
		"product": "missing", "size": "L", "color": "blue", "stock": "1", "price": "1",
	}, []formFile{
		{field: formMainImage, name: "main.png", contentType: "image/png", data: []byte("m")},
		{field: formSubImages, name: "a.png", contentType: "image/png", data: []byte("1")},
	})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, env.objects.Len())
}

func TestReconcile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := env.taxon(t, catalog.KindCategory, "C")
	b := env.taxon(t, catalog.KindBrand, "B")
	id := env.product(t, "P", c, b)

	require.NoError(t, env.store.CreateVariant(ctx, &catalog.Variant{ID: "orphan", ProductID: id, Size: "S"}))
	require.NoError(t, env.store.AppendVariantRef(ctx, id, "ghost"))

	w := env.do(t, http.MethodPost, "/api/admin/maintenance/reconcile", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"orphansRemoved":1,"danglingPruned":1}`, w.Body.String())

	p, err := env.store.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, p.VariantIDs)
}

// --- Taxonomy ---

func TestTaxonomyRoutes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/admin/brands", map[string]string{"name": "Acme"}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	brand := decode[struct {
		Brand struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"brand"`
	}](t, w).Brand
	assert.Equal(t, string(catalog.StatusListed), brand.Status)

	w = env.do(t, http.MethodPost, "/api/admin/brands", map[string]string{"name": "ACME"}, true)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, kindConflict, decode[errorBody](t, w).Kind)

	// Same name under the other kind is allowed.
	w = env.do(t, http.MethodPost, "/api/admin/categories", map[string]string{"name": "Acme"}, true)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPut, "/api/admin/brands/"+brand.ID+"/status", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unlisted"`)

	w = env.do(t, http.MethodPut, "/api/admin/brands/"+brand.ID+"/status", map[string]string{"status": "listed"}, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"listed"`)

	w = env.do(t, http.MethodPut, "/api/admin/brands/"+brand.ID+"/status", map[string]string{"status": "hidden"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/admin/brands/"+brand.ID, map[string]string{"name": "acme"}, true)
	require.Equal(t, http.StatusOK, w.Code, "renaming to own name in another case")

	w = env.do(t, http.MethodGet, "/api/brands", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"acme"`)

	w = env.do(t, http.MethodGet, "/api/admin/categories", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"categories":[`)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/nope", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, kindNotFound, decode[errorBody](t, w).Kind)
}
