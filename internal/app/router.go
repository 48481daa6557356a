package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/havenlink/havenlink/internal/access"
	"github.com/havenlink/havenlink/internal/audit"
	"github.com/havenlink/havenlink/internal/auth"
	"github.com/havenlink/havenlink/internal/catalog"
	"github.com/havenlink/havenlink/internal/consent"
	"github.com/havenlink/havenlink/internal/invites"
	"github.com/havenlink/havenlink/internal/observability"
	"github.com/havenlink/havenlink/internal/orgs"
	"github.com/havenlink/havenlink/internal/profiles"
	"github.com/havenlink/havenlink/internal/records"
	"github.com/havenlink/havenlink/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	AccessMW        access.Middleware
	AuthHandler     *auth.Handler
	CatalogHandler  *catalog.Handler
	OrgsHandler     *orgs.Handler
	ProfilesHandler *profiles.Handler
	ConsentHandler  *consent.Handler
	RecordsHandler  *records.Handler
	InvitesHandler  *invites.Handler
	AuditHandler    *audit.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with HavenLink defaults. Router
// middleware provides the coarse gates (session, authentication, approval);
// the per-operation permission checks run inside the services.
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
	r.Use(params.AccessMW.Resolve)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Registration and self-service run pre-approval; everything else in the
	// profiles subtree requires an approved profile.
	r.Route("/profiles", func(pr chi.Router) {
		pr.Use(access.RequireAuthenticated)
		params.ProfilesHandler.MountRoutes(pr)
	})

	r.Route("/invites", func(ir chi.Router) {
		ir.Use(access.RequireAuthenticated)
		params.InvitesHandler.MountRoutes(ir)
	})

	approved := func(mount func(chi.Router), extra ...func(http.Handler) http.Handler) func(chi.Router) {
		return func(sub chi.Router) {
			sub.Use(access.RequireAuthenticated)
			sub.Use(access.RequireApproved)
			for _, mw := range extra {
				sub.Use(mw)
			}
			mount(sub)
		}
	}

	r.Route("/catalog", approved(params.CatalogHandler.MountRoutes,
		access.RequirePermission(shared.PermRolesView)))
	r.Route("/orgs", approved(params.OrgsHandler.MountRoutes,
		access.RequirePermission(shared.PermOrgsView)))
	r.Route("/consent", approved(params.ConsentHandler.MountRoutes,
		access.RequirePermission(shared.PermConsentView)))
	r.Route("/records", approved(params.RecordsHandler.MountRoutes))
	r.Route("/audit", approved(params.AuditHandler.MountRoutes,
		access.RequirePermission(shared.PermAuditView)))

	return r
}
