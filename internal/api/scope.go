package api

import (
	"context"
	"net/http"
	"strings"

	apperrors "safety-rating/internal/common/errors"
)

// CompanyIDHeader carries the company identity resolved by the gateway.
const CompanyIDHeader = "X-Company-ID"

type contextKey string

const companyIDKey contextKey = "companyID"

// companyScope rejects requests without a company identity.
func companyScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		companyID := strings.TrimSpace(r.Header.Get(CompanyIDHeader))
		if companyID == "" {
			writeError(w, apperrors.NewInvalidCompanyIDError(CompanyIDHeader+" header is required"))
			return
		}
		ctx := context.WithValue(r.Context(), companyIDKey, companyID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CompanyIDFromContext returns the company scoped by companyScope.
func CompanyIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(companyIDKey).(string)
	return id
}
