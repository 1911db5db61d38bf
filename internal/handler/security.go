package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-catalog/internal/domain/auth"
)

// APIKeyHeader carries the admin API key.
const APIKeyHeader = "api_key"

// RequireAPIKey rejects requests whose api_key header does not resolve to a
// stored key. The matched key name is added to the request logger.
func RequireAPIKey(authn *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			info, err := authn.Authenticate(ctx, r.Header.Get(APIKeyHeader))
			if err != nil {
				zctx.From(ctx).Debug("Rejected admin request", zap.Error(err))
				writeError(w, r, auth.ErrUnauthorized)
				return
			}
			ctx = zctx.With(ctx, zap.String("api_key_name", info.Name))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
