package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"spmigrate/application"
	"spmigrate/domain/contracts"
	"spmigrate/domain/principal"
	"spmigrate/interfaces/web/presenters"
	"spmigrate/logging"
)

// maxBatchSize caps the principals accepted by one resolve request
const maxBatchSize = 1000

// PrincipalResolver remaps raw principal strings
type PrincipalResolver interface {
	RemapAll(ctx context.Context, principals []string, workers int) ([]principal.ResolutionResult, error)
}

// DomainLookup resolves friendly domain names
type DomainLookup interface {
	ResolveFriendlyDomainToLdap(ctx context.Context, friendly string) (string, error)
}

// HealthChecker reports the health of a dependency
type HealthChecker interface {
	Health(ctx context.Context) (map[string]any, error)
}

// ResolveHandlers serves principal resolution, domain lookup and the unresolved report.
type ResolveHandlers struct {
	resolver  PrincipalResolver
	domains   DomainLookup
	journal   contracts.ResolutionJournalRepository
	health    HealthChecker
	presenter *presenters.ResolutionPresenter
	workers   int
	logger    *logging.Logger
}

// NewResolveHandlers creates the handlers. journal and health may be nil.
func NewResolveHandlers(
	resolver PrincipalResolver,
	domains DomainLookup,
	journal contracts.ResolutionJournalRepository,
	health HealthChecker,
	workers int,
) *ResolveHandlers {
	return &ResolveHandlers{
		resolver:  resolver,
		domains:   domains,
		journal:   journal,
		health:    health,
		presenter: presenters.NewResolutionPresenter(),
		workers:   workers,
		logger:    logging.Default().WithComponent("resolve_handler"),
	}
}

// Routes registers the API endpoints
func (h *ResolveHandlers) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/resolve", h.Resolve)
		r.Get("/domains/{name}", h.GetDomain)
		r.Get("/runs/{runID}/unresolved", h.GetUnresolved)
	})
}

type resolveRequest struct {
	Principal  string   `json:"principal"`
	Principals []string `json:"principals"`
}

// Resolve remaps the principals of the request body
func (h *ResolveHandlers) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		RenderError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	principals := req.Principals
	if req.Principal != "" {
		principals = append([]string{req.Principal}, principals...)
	}
	if len(principals) == 0 {
		RenderError(w, http.StatusBadRequest, "missing principal or principals")
		return
	}
	if len(principals) > maxBatchSize {
		RenderError(w, http.StatusRequestEntityTooLarge, "too many principals")
		return
	}

	ctx := r.Context()
	results, err := h.resolver.RemapAll(ctx, principals, h.workers)
	if err != nil {
		h.logger.WithContext(ctx).Error("Principal resolution failed", "count", len(principals), "error", err)
		RenderError(w, statusForError(err), err.Error())
		return
	}

	runID, _ := logging.RunIDFromContext(ctx)
	RenderJSON(w, http.StatusOK, h.presenter.ToResolutionListView(runID, results))
}

// GetDomain resolves a friendly domain name
func (h *ResolveHandlers) GetDomain(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		RenderError(w, http.StatusBadRequest, "missing domain name")
		return
	}

	fqdn, err := h.domains.ResolveFriendlyDomainToLdap(r.Context(), name)
	if err != nil {
		h.logger.Warn("Domain lookup failed", "name", name, "error", err)
		RenderError(w, statusForError(err), err.Error())
		return
	}

	RenderJSON(w, http.StatusOK, presenters.DomainView{
		Name:             name,
		FQDN:             fqdn,
		ConnectionString: application.LdapScheme + fqdn,
	})
}

// GetUnresolved reports what a run left unresolved
func (h *ResolveHandlers) GetUnresolved(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		RenderError(w, http.StatusNotImplemented, "resolution journal disabled")
		return
	}

	runID := chi.URLParam(r, "runID")
	summary, err := h.journal.GetRunSummary(r.Context(), runID)
	if err != nil {
		RenderError(w, statusForError(err), err.Error())
		return
	}

	entries, err := h.journal.ListUnresolved(r.Context(), runID)
	if err != nil {
		h.logger.Error("Failed to list unresolved principals", "run_id", runID, "error", err)
		RenderError(w, http.StatusInternalServerError, "failed to list unresolved principals")
		return
	}

	RenderJSON(w, http.StatusOK, h.presenter.ToRunReportView(summary, entries))
}

// Health reports liveness and, when configured, database health
func (h *ResolveHandlers) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if h.health != nil {
		stats, err := h.health.Health(r.Context())
		if err != nil {
			RenderJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "error": err.Error()})
			return
		}
		body["database"] = stats
	}
	RenderJSON(w, http.StatusOK, body)
}
