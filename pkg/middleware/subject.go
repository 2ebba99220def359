package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/lucerna-ai/lucerna/pkg/composables"
	"github.com/lucerna-ai/lucerna/pkg/configuration"
	"github.com/lucerna-ai/lucerna/pkg/httpapi"
)

// ProvideSubject resolves the caller identity from the headers injected by
// the auth gateway in front of this service. Requests without a valid
// subject are rejected before reaching any chat handler.
func ProvideSubject() mux.MiddlewareFunc {
	conf := configuration.Use()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawID := r.Header.Get(conf.SubjectIDHeader)
			if rawID == "" {
				_ = httpapi.WriteError(w, http.StatusUnauthorized,
					"UNAUTHENTICATED", "missing subject identity", nil)
				return
			}
			id, err := uuid.Parse(rawID)
			if err != nil {
				_ = httpapi.WriteError(w, http.StatusUnauthorized,
					"UNAUTHENTICATED", "invalid subject identity", nil)
				return
			}

			kind := composables.SubjectKind(r.Header.Get(conf.SubjectKindHeader))
			switch kind {
			case composables.SubjectAdmin:
			default:
				kind = composables.SubjectUser
			}

			ctx := composables.WithSubject(r.Context(), composables.Subject{ID: id, Kind: kind})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
