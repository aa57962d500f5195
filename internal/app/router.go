package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hazo-app/hazo-auth/internal/access"
	"github.com/hazo-app/hazo-auth/internal/assignments"
	"github.com/hazo-app/hazo-auth/internal/auth"
	"github.com/hazo-app/hazo-auth/internal/invitations"
	"github.com/hazo-app/hazo-auth/internal/observability"
	"github.com/hazo-app/hazo-auth/internal/onboarding"
	"github.com/hazo-app/hazo-auth/internal/roles"
	"github.com/hazo-app/hazo-auth/internal/scopes"
	"github.com/hazo-app/hazo-auth/internal/shared"
	"github.com/hazo-app/hazo-auth/internal/users"
	"github.com/hazo-app/hazo-auth/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler        *auth.Handler
	ScopesHandler      *scopes.Handler
	AssignmentsHandler *assignments.Handler
	AccessHandler      *access.Handler
	OnboardingHandler  *onboarding.Handler
	InvitationsHandler *invitations.Handler
	RolesHandler       *roles.Handler
	UsersHandler       *users.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.ScopesHandler != nil {
		r.Route("/scopes", params.ScopesHandler.MountRoutes)
	}
	if params.AssignmentsHandler != nil {
		r.Route("/assignments", params.AssignmentsHandler.MountRoutes)
	}
	if params.AccessHandler != nil {
		r.Route("/access", params.AccessHandler.MountRoutes)
	}
	if params.OnboardingHandler != nil {
		r.Route("/onboarding", params.OnboardingHandler.MountRoutes)
	}
	if params.InvitationsHandler != nil {
		r.Route("/invitations", params.InvitationsHandler.MountRoutes)
	}
	if params.RolesHandler != nil {
		r.Route("/roles", params.RolesHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
