package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/comment"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
)

type commentResponse struct {
	ID         string    `json:"id"`
	CaseID     string    `json:"case_id,omitempty"`
	EvidenceID string    `json:"evidence_id,omitempty"`
	Author     string    `json:"author"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

func toCommentResponse(c comment.Comment) commentResponse {
	resp := commentResponse{
		ID:        c.ID.String(),
		Author:    c.Author.String(),
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
	if c.CaseID != nil {
		resp.CaseID = c.CaseID.String()
	}
	if c.EvidenceID != nil {
		resp.EvidenceID = c.EvidenceID.String()
	}
	return resp
}

type addCommentRequest struct {
	CaseID     *string `json:"case_id"`
	EvidenceID *string `json:"evidence_id"`
	Body       string  `json:"body"`
}

func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	in := comment.AddInput{Body: req.Body}
	if req.CaseID != nil {
		caseID, err := domain.ParseCaseID(*req.CaseID)
		if err != nil {
			writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid case id"))
			return
		}
		in.CaseID = &caseID
	}
	if req.EvidenceID != nil {
		evidenceID, err := domain.ParseEvidenceID(*req.EvidenceID)
		if err != nil {
			writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid evidence id"))
			return
		}
		in.EvidenceID = &evidenceID
	}
	c, err := h.comments.Add(r.Context(), p, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentResponse(c))
}

func (h *Handler) handleGetComment(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseCommentID(chi.URLParam(r, "commentID"))
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid comment id"))
		return
	}
	c, err := h.comments.Get(r.Context(), p, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentResponse(c))
}

func (h *Handler) handleListCaseComments(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	caseID, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid case id"))
		return
	}
	comments, err := h.comments.ListForCase(r.Context(), p, caseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCommentList(w, comments)
}

func (h *Handler) handleListEvidenceComments(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	evidenceID, err := domain.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid evidence id"))
		return
	}
	comments, err := h.comments.ListForEvidence(r.Context(), p, evidenceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeCommentList(w, comments)
}

func writeCommentList(w http.ResponseWriter, comments []comment.Comment) {
	out := make([]commentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, toCommentResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": out})
}
