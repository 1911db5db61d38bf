package handler

import (
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-catalog/internal/domain/catalog"
	"github.com/xenking/storefront-catalog/internal/domain/variant"
	"github.com/xenking/storefront-catalog/internal/media"
)

const (
	formMainImage = "mainImage"
	formSubImages = "subImages"

	// multipartMemory is kept in memory while parsing; larger files spill
	// to temporary files.
	multipartMemory = 32 << 20
)

// ListVariants returns the variants of a product in list order.
func (h *Handler) ListVariants(w http.ResponseWriter, r *http.Request) {
	variants, err := h.variants.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("variants")
		e.ArrStart()
		for i := range variants {
			h.encodeVariant(e, &variants[i])
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

// AddVariant creates a variant from a multipart form with its images.
func (h *Handler) AddVariant(w http.ResponseWriter, r *http.Request) {
	maxBody := h.cfg.MaxFileSize*int64(h.cfg.MaxSecondaryImages+1) + multipartMemory
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, r, &catalog.ValidationError{Field: "body", Message: "must be a valid multipart form"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req, closeFiles, err := h.parseAddRequest(r.MultipartForm)
	defer closeFiles()
	if err != nil {
		writeError(w, r, err)
		return
	}

	v, err := h.variants.Add(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("variant")
		h.encodeVariant(e, v)
		e.ObjEnd()
	})
}

// RemoveVariant deletes a variant and returns its updated parent product.
func (h *Handler) RemoveVariant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	v, err := h.variants.Remove(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.engine.Get(ctx, v.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeProduct(w, http.StatusOK, p)
}

// Reconcile runs the variant repair pass.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.variants.Reconcile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeRepairReport(e, report)
	})
}

// parseAddRequest collects every form problem into one ValidationErrors.
// The returned func closes the opened files and is safe to call on error.
func (h *Handler) parseAddRequest(form *multipart.Form) (variant.AddRequest, func(), error) {
	var (
		errs   catalog.ValidationErrors
		opened []multipart.File
	)
	closeFiles := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	value := func(key string) string {
		if vs := form.Value[key]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	req := variant.AddRequest{
		ProductID: value("product"),
		Size:      value("size"),
		Color:     value("color"),
	}
	if err := catalog.Validate(req); err != nil {
		var fieldErrs catalog.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return req, closeFiles, err
		}
		errs = append(errs, fieldErrs...)
	}

	var ok bool
	if req.Stock, ok = parseCount(value("stock")); !ok {
		errs = append(errs, &catalog.ValidationError{Field: "stock", Message: "must be a non-negative integer"})
	}
	if req.Price, ok = parseCount(value("price")); !ok {
		errs = append(errs, &catalog.ValidationError{Field: "price", Message: "must be a non-negative integer"})
	}

	open := func(field string, fh *multipart.FileHeader) (variant.Image, bool) {
		img := variant.Image{Filename: fh.Filename, Size: fh.Size, ContentType: imageContentType(fh)}
		if !media.AllowedContentType(img.ContentType) {
			errs = append(errs, &catalog.ValidationError{Field: field, Message: "must be a jpg, jpeg, png, webp or avif image"})
			return img, false
		}
		if fh.Size > h.cfg.MaxFileSize {
			errs = append(errs, &catalog.ValidationError{
				Field:   field,
				Message: "must not exceed " + strconv.FormatInt(h.cfg.MaxFileSize, 10) + " bytes",
			})
			return img, false
		}
		f, err := fh.Open()
		if err != nil {
			errs = append(errs, &catalog.ValidationError{Field: field, Message: "could not be read"})
			return img, false
		}
		opened = append(opened, f)
		img.Body = f
		return img, true
	}

	switch mains := form.File[formMainImage]; len(mains) {
	case 1:
		if img, ok := open(formMainImage, mains[0]); ok {
			req.Images.Main = img
		}
	default:
		errs = append(errs, &catalog.ValidationError{Field: formMainImage, Message: "must contain exactly 1 file"})
	}

	subs := form.File[formSubImages]
	switch {
	case len(subs) == 0:
		errs = append(errs, &catalog.ValidationError{Field: formSubImages, Message: "must contain at least 1"})
	case len(subs) > h.cfg.MaxSecondaryImages:
		errs = append(errs, &catalog.ValidationError{
			Field:   formSubImages,
			Message: "must contain at most " + strconv.Itoa(h.cfg.MaxSecondaryImages),
		})
	default:
		for _, fh := range subs {
			if img, ok := open(formSubImages, fh); ok {
				req.Images.Secondary = append(req.Images.Secondary, img)
			}
		}
	}

	return req, closeFiles, errs.Err()
}

func parseCount(raw string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	return n, err == nil && n >= 0
}

// imageContentType prefers the part's declared type and falls back to the
// file extension.
func imageContentType(fh *multipart.FileHeader) string {
	if ct, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type")); err == nil && ct != "application/octet-stream" {
		return strings.ToLower(ct)
	}
	return imageExtensions[strings.ToLower(path.Ext(fh.Filename))]
}

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".avif": "image/avif",
}
