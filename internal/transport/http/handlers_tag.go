package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"custodia/internal/tag"
	dErrors "custodia/pkg/domainerrors"
)

type tagResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	Creator   string    `json:"creator"`
	CreatedAt time.Time `json:"created_at"`
}

func toTagResponse(t tag.Tag) tagResponse {
	return tagResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		Color:     t.Color,
		Creator:   t.Creator.String(),
		CreatedAt: t.CreatedAt,
	}
}

type createTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (h *Handler) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	var req createTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	t, err := h.tags.Create(r.Context(), p, req.Name, req.Color)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTagResponse(t))
}

func (h *Handler) handleListTags(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerPrincipal(w, r); !ok {
		return
	}
	tags, err := h.tags.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]tagResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, toTagResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": out})
}
