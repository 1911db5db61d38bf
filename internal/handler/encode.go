package handler

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront-catalog/internal/domain/catalog"
	"github.com/xenking/storefront-catalog/internal/domain/variant"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	encode(e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func (h *Handler) imageURL(key string) string {
	if h.cfg.ImageBaseURL == "" || key == "" {
		return key
	}
	return strings.TrimRight(h.cfg.ImageBaseURL, "/") + "/" + key
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func encodeRef(e *jx.Encoder, ref catalog.Ref) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(ref.ID)
	e.FieldStart("name")
	e.Str(ref.Name)
	e.ObjEnd()
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}

func (h *Handler) encodeVariant(e *jx.Encoder, v *catalog.Variant) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(v.ID)
	e.FieldStart("product")
	e.Str(v.ProductID)
	e.FieldStart("size")
	e.Str(v.Size)
	e.FieldStart("color")
	e.Str(v.Color)
	e.FieldStart("stock")
	e.Int64(v.Stock)
	e.FieldStart("price")
	e.Int64(v.Price)
	e.FieldStart("mainImage")
	e.Str(h.imageURL(v.MainImage))
	e.FieldStart("subImages")
	e.ArrStart()
	for _, key := range v.SubImages {
		e.Str(h.imageURL(key))
	}
	e.ArrEnd()
	e.FieldStart("createdAt")
	encodeTime(e, v.CreatedAt)
	e.ObjEnd()
}

func (h *Handler) encodeJoinedProduct(e *jx.Encoder, p *catalog.JoinedProduct) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("category")
	encodeRef(e, p.Category)
	e.FieldStart("brand")
	encodeRef(e, p.Brand)
	e.FieldStart("minPrice")
	if price, ok := p.MinPrice(); ok {
		e.Int64(price)
	} else {
		e.Null()
	}
	e.FieldStart("variants")
	e.ArrStart()
	for i := range p.Variants {
		h.encodeVariant(e, &p.Variants[i])
	}
	e.ArrEnd()
	e.FieldStart("createdAt")
	encodeTime(e, p.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, p.UpdatedAt)
	e.ObjEnd()
}

// encodeProduct writes a product record as stored, with variant ids only.
func encodeProduct(e *jx.Encoder, p *catalog.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("category")
	e.Str(p.CategoryID)
	e.FieldStart("brand")
	e.Str(p.BrandID)
	e.FieldStart("variants")
	encodeStrings(e, p.VariantIDs)
	e.FieldStart("createdAt")
	encodeTime(e, p.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, p.UpdatedAt)
	e.ObjEnd()
}

func encodeTaxon(e *jx.Encoder, t *catalog.Taxon) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(t.ID)
	e.FieldStart("kind")
	e.Str(string(t.Kind))
	e.FieldStart("name")
	e.Str(t.Name)
	e.FieldStart("status")
	e.Str(string(t.Status))
	e.FieldStart("createdAt")
	encodeTime(e, t.CreatedAt)
	e.ObjEnd()
}

func (h *Handler) encodePage(e *jx.Encoder, page *catalog.Page) {
	e.ObjStart()
	e.FieldStart("products")
	e.ArrStart()
	for i := range page.Products {
		h.encodeJoinedProduct(e, &page.Products[i])
	}
	e.ArrEnd()

	p := page.Pagination
	e.FieldStart("pagination")
	e.ObjStart()
	e.FieldStart("currentPage")
	e.Int(p.CurrentPage)
	e.FieldStart("totalPages")
	e.Int(p.TotalPages)
	e.FieldStart("totalProducts")
	e.Int(p.TotalProducts)
	e.FieldStart("hasNextPage")
	e.Bool(p.HasNextPage)
	e.FieldStart("hasPrevPage")
	e.Bool(p.HasPrevPage)
	e.ObjEnd()
	e.ObjEnd()
}

func encodeRepairReport(e *jx.Encoder, r *variant.RepairReport) {
	e.ObjStart()
	e.FieldStart("orphansRemoved")
	e.Int(r.OrphansRemoved)
	e.FieldStart("danglingPruned")
	e.Int(r.DanglingPruned)
	e.ObjEnd()
}

// decodeStrings reads a flat JSON object and keeps its string members.
// An empty body decodes to an empty map.
func decodeStrings(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		return nil, &catalog.ValidationError{Field: "body", Message: "could not be read"}
	}
	out := map[string]string{}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}

	d := jx.DecodeBytes(data)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		if d.Next() != jx.String {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return err
		}
		out[key] = v
		return nil
	})
	if err != nil {
		return nil, &catalog.ValidationError{Field: "body", Message: "must be a JSON object"}
	}
	return out, nil
}
