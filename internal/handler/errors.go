package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-catalog/internal/domain/auth"
	"github.com/xenking/storefront-catalog/internal/domain/catalog"
)

const (
	kindValidation   = "validation_error"
	kindNotFound     = "not_found"
	kindConflict     = "conflict"
	kindPartialWrite = "partial_write_failure"
	kindTimeout      = "upstream_timeout"
	kindUnauthorized = "unauthorized"
	kindInternal     = "internal_error"
)

// writeError maps a domain error to its status code and error body.
// Partial writes wrap the failing step's error, so they are matched first.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status  int
		kind    string
		message = err.Error()
		fields  catalog.ValidationErrors
	)
	switch {
	case errors.Is(err, catalog.ErrPartialWrite):
		status, kind = http.StatusInternalServerError, kindPartialWrite
	case errors.Is(err, catalog.ErrValidation):
		status, kind = http.StatusBadRequest, kindValidation
		fields = validationFields(err)
		message = "invalid request"
	case errors.Is(err, catalog.ErrUpstreamTimeout):
		status, kind = http.StatusGatewayTimeout, kindTimeout
	case errors.Is(err, catalog.ErrNotFound):
		status, kind = http.StatusNotFound, kindNotFound
	case errors.Is(err, catalog.ErrConflict):
		status, kind = http.StatusConflict, kindConflict
	case errors.Is(err, auth.ErrUnauthorized):
		status, kind = http.StatusUnauthorized, kindUnauthorized
		message = "missing or invalid api key"
	default:
		status, kind = http.StatusInternalServerError, kindInternal
		message = "internal error"
	}

	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
	writeErrorBody(w, status, kind, message, fields)
}

// writeReadError is writeError for storefront reads. Those take no variant
// ids, so a missing variant means a product's stored list is corrupt: it is a
// server fault, not a 404 for the caller.
func writeReadError(w http.ResponseWriter, r *http.Request, err error) {
	var nf *catalog.NotFoundError
	if errors.As(err, &nf) && nf.Entity == "variant" {
		zctx.From(r.Context()).Error("Dangling variant reference",
			zap.String("variant_id", nf.ID),
			zap.Error(err),
		)
		writeErrorBody(w, http.StatusInternalServerError, kindInternal, "internal error", nil)
		return
	}
	writeError(w, r, err)
}

func validationFields(err error) catalog.ValidationErrors {
	var many catalog.ValidationErrors
	if errors.As(err, &many) {
		return many
	}
	var one *catalog.ValidationError
	if errors.As(err, &one) {
		return catalog.ValidationErrors{one}
	}
	return nil
}

func writeErrorBody(w http.ResponseWriter, status int, kind, message string, fields catalog.ValidationErrors) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("kind")
		e.Str(kind)
		e.FieldStart("message")
		e.Str(message)
		if len(fields) > 0 {
			e.FieldStart("fields")
			e.ArrStart()
			for _, f := range fields {
				e.ObjStart()
				e.FieldStart("field")
				e.Str(f.Field)
				e.FieldStart("message")
				e.Str(f.Message)
				e.ObjEnd()
			}
			e.ArrEnd()
		}
		e.ObjEnd()
	})
}
