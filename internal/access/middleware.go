package access

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazo-app/hazo-auth/internal/shared"
)

// Middleware wires hierarchical access checks for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireScopeAccess guards a route whose URL carries a scope ID in the
// named chi parameter. The current user must reach that scope through an
// exact or ancestor assignment.
func (m Middleware) RequireScopeAccess(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := shared.UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			scopeID := chi.URLParam(r, param)
			if scopeID == "" {
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			decision, err := m.Service.CheckAccess(r.Context(), userID, scopeID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("access check", slog.Any("error", err), slog.String("scope_id", scopeID))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !decision.Granted {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
