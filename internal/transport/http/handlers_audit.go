package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"custodia/internal/audit"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
)

type auditEntryResponse struct {
	ID           string            `json:"id"`
	Principal    string            `json:"principal"`
	Action       string            `json:"action"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	Details      map[string]string `json:"details,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	filters := audit.ListFilters{
		ResourceType: domain.ResourceType(r.URL.Query().Get("resource_type")),
		Action:       domain.AuditAction(r.URL.Query().Get("action")),
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, dErrors.New(dErrors.CodeValidation, "limit must be an integer"))
			return
		}
		limit = n
	}
	entries, err := h.auditQuery.ListRecent(r.Context(), p, filters, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:           e.ID.String(),
			Principal:    e.Principal.String(),
			Action:       string(e.Action),
			ResourceType: string(e.ResourceType),
			ResourceID:   e.ResourceID,
			Details:      e.Details,
			Timestamp:    e.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}
