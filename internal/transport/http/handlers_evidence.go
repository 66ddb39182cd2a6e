package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/evidence"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
)

type evidenceResponse struct {
	ID          string    `json:"id"`
	CaseID      string    `json:"case_id"`
	Uploader    string    `json:"uploader"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ContentHash string    `json:"content_hash"`
	FileRef     string    `json:"file_ref,omitempty"`
	Status      string    `json:"status"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toEvidenceResponse(item evidence.Item) evidenceResponse {
	return evidenceResponse{
		ID:          item.ID.String(),
		CaseID:      item.CaseID.String(),
		Uploader:    item.Uploader.String(),
		Name:        item.Name,
		Description: item.Description,
		ContentHash: item.ContentHash,
		FileRef:     item.FileRef,
		Status:      string(item.Status),
		Version:     item.Version,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

type addEvidenceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ContentHash string `json:"content_hash"`
	FileRef     string `json:"file_ref"`
	Location    string `json:"location"`
}

func (h *Handler) handleAddEvidence(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	caseID, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid case id"))
		return
	}
	var req addEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	item, err := h.evidence.Add(r.Context(), p, evidence.AddInput{
		CaseID:      caseID,
		Name:        req.Name,
		Description: req.Description,
		ContentHash: req.ContentHash,
		FileRef:     req.FileRef,
		Location:    req.Location,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEvidenceResponse(item))
}

func (h *Handler) handleGetEvidence(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid evidence id"))
		return
	}
	item, err := h.evidence.Get(r.Context(), p, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEvidenceResponse(item))
}

func (h *Handler) handleListEvidence(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	caseID, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid case id"))
		return
	}
	items, err := h.evidence.ListForCase(r.Context(), p, caseID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]evidenceResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toEvidenceResponse(item))
	}
	writeJSON(w, http.StatusOK, map[string]any{"evidence": out})
}

type updateEvidenceStatusRequest struct {
	Status  string `json:"status"`
	Version int64  `json:"version"`
}

func (h *Handler) handleUpdateEvidenceStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid evidence id"))
		return
	}
	var req updateEvidenceStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	item, err := h.evidence.UpdateStatus(r.Context(), p, id, domain.EvidenceStatus(req.Status), req.Version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEvidenceResponse(item))
}

func (h *Handler) handleTagEvidence(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	id, tagID, err := evidenceTagParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.evidence.Tag(r.Context(), p, id, tagID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUntagEvidence(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	id, tagID, err := evidenceTagParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.evidence.Untag(r.Context(), p, id, tagID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListEvidenceTags(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid evidence id"))
		return
	}
	tagIDs, err := h.evidence.TagsFor(r.Context(), p, id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]string, 0, len(tagIDs))
	for _, tagID := range tagIDs {
		out = append(out, tagID.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{"tag_ids": out})
}

func evidenceTagParams(r *http.Request) (domain.EvidenceID, domain.TagID, error) {
	id, err := domain.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		return domain.EvidenceID{}, domain.TagID{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid evidence id")
	}
	tagID, err := domain.ParseTagID(chi.URLParam(r, "tagID"))
	if err != nil {
		return domain.EvidenceID{}, domain.TagID{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid tag id")
	}
	return id, tagID, nil
}
