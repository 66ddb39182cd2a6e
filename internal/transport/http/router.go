// Package httptransport is the thin HTTP layer. Handlers decode and
// validate, delegate to the domain services, and translate coded errors to
// statuses; no business rule lives here.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custodia/internal/audit"
	"custodia/internal/casefile"
	"custodia/internal/comment"
	"custodia/internal/custody"
	"custodia/internal/evidence"
	"custodia/internal/principal"
	"custodia/internal/ratelimit"
	"custodia/internal/tag"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
	"custodia/pkg/requestcontext"
)

// Handler bundles the domain services the routes delegate to.
type Handler struct {
	principals *principal.Service
	cases      *casefile.Service
	evidence   *evidence.Service
	custody    *custody.Ledger
	comments   *comment.Service
	tags       *tag.Service
	auditQuery *audit.Query
	logger     *slog.Logger
}

// NewHandler wires the transport handler.
func NewHandler(
	principals *principal.Service,
	cases *casefile.Service,
	evidenceSvc *evidence.Service,
	custodyLedger *custody.Ledger,
	comments *comment.Service,
	tags *tag.Service,
	auditQuery *audit.Query,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		principals: principals,
		cases:      cases,
		evidence:   evidenceSvc,
		custody:    custodyLedger,
		comments:   comments,
		tags:       tags,
		auditQuery: auditQuery,
		logger:     logger,
	}
}

// NewRouter builds the full route tree. Health and metrics stay outside the
// auth gate; everything else requires a valid token. The auth endpoints are
// rate limited per client IP.
func NewRouter(h *Handler, validator TokenValidator, authLimiter *ratelimit.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestTime)
	r.Use(ClientMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(authLimiter, h.logger))
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/login", h.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(validator, h.logger))

		r.Route("/cases", func(r chi.Router) {
			r.Post("/", h.handleCreateCase)
			r.Get("/", h.handleListCases)
			r.Get("/{caseID}", h.handleGetCase)
			r.Patch("/{caseID}", h.handleUpdateCase)
			r.Post("/{caseID}/evidence", h.handleAddEvidence)
			r.Get("/{caseID}/evidence", h.handleListEvidence)
			r.Get("/{caseID}/comments", h.handleListCaseComments)
		})

		r.Route("/evidence/{evidenceID}", func(r chi.Router) {
			r.Get("/", h.handleGetEvidence)
			r.Patch("/status", h.handleUpdateEvidenceStatus)
			r.Post("/custody", h.handleAppendCustody)
			r.Get("/custody", h.handleListCustody)
			r.Get("/custody/verify", h.handleVerifyCustody)
			r.Get("/comments", h.handleListEvidenceComments)
			r.Get("/tags", h.handleListEvidenceTags)
			r.Put("/tags/{tagID}", h.handleTagEvidence)
			r.Delete("/tags/{tagID}", h.handleUntagEvidence)
		})

		r.Post("/comments", h.handleAddComment)
		r.Get("/comments/{commentID}", h.handleGetComment)

		r.Post("/tags", h.handleCreateTag)
		r.Get("/tags", h.handleListTags)

		r.Get("/audit", h.handleListAudit)
	})

	return r
}

// callerPrincipal pulls the authenticated principal set by RequireAuth. A
// missing principal on a gated route is a wiring bug, reported as 401 rather
// than a panic.
func callerPrincipal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := requestcontext.Principal(r.Context())
	if !ok {
		writeError(w, dErrors.New(dErrors.CodeUnauthenticated, "no authenticated principal"))
		return domain.Principal{}, false
	}
	return p, true
}
