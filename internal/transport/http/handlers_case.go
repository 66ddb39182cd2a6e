package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/casefile"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
)

type caseResponse struct {
	ID               string    `json:"id"`
	Number           string    `json:"number"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Creator          string    `json:"creator"`
	LeadInvestigator string    `json:"lead_investigator,omitempty"`
	AssignedTo       string    `json:"assigned_to,omitempty"`
	Status           string    `json:"status"`
	Priority         string    `json:"priority"`
	Version          int64     `json:"version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toCaseResponse(c casefile.Case) caseResponse {
	resp := caseResponse{
		ID:          c.ID.String(),
		Number:      c.Number,
		Title:       c.Title,
		Description: c.Description,
		Creator:     c.Creator.String(),
		Status:      string(c.Status),
		Priority:    string(c.Priority),
		Version:     c.Version,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.LeadInvestigator != nil {
		resp.LeadInvestigator = c.LeadInvestigator.String()
	}
	if c.AssignedTo != nil {
		resp.AssignedTo = c.AssignedTo.String()
	}
	return resp
}

type createCaseRequest struct {
	Number           string  `json:"number"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Priority         string  `json:"priority"`
	LeadInvestigator *string `json:"lead_investigator"`
	AssignedTo       *string `json:"assigned_to"`
}

func (h *Handler) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	var req createCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	in := casefile.CreateInput{
		Number:      req.Number,
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.CasePriority(req.Priority),
	}
	var err error
	if in.LeadInvestigator, err = optionalPrincipalID(req.LeadInvestigator); err != nil {
		writeError(w, err)
		return
	}
	if in.AssignedTo, err = optionalPrincipalID(req.AssignedTo); err != nil {
		writeError(w, err)
		return
	}
	c, err := h.cases.Create(r.Context(), p, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCaseResponse(c))
}

func (h *Handler) handleGetCase(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid case id"))
		return
	}
	c, err := h.cases.Get(r.Context(), p, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseResponse(c))
}

func (h *Handler) handleListCases(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	cases, err := h.cases.List(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]caseResponse, 0, len(cases))
	for _, c := range cases {
		out = append(out, toCaseResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cases": out})
}

type updateCaseRequest struct {
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	Status           *string `json:"status"`
	Priority         *string `json:"priority"`
	LeadInvestigator *string `json:"lead_investigator"`
	AssignedTo       *string `json:"assigned_to"`
	Version          int64   `json:"version"`
}

func (h *Handler) handleUpdateCase(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	id, err := domain.ParseCaseID(chi.URLParam(r, "caseID"))
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid case id"))
		return
	}
	var req updateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	in := casefile.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Version:     req.Version,
	}
	if req.Status != nil {
		status := domain.CaseStatus(*req.Status)
		in.Status = &status
	}
	if req.Priority != nil {
		priority := domain.CasePriority(*req.Priority)
		in.Priority = &priority
	}
	if in.LeadInvestigator, err = optionalPrincipalID(req.LeadInvestigator); err != nil {
		writeError(w, err)
		return
	}
	if in.AssignedTo, err = optionalPrincipalID(req.AssignedTo); err != nil {
		writeError(w, err)
		return
	}
	c, err := h.cases.Update(r.Context(), p, id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseResponse(c))
}

func optionalPrincipalID(s *string) (*domain.PrincipalID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := domain.ParsePrincipalID(*s)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid principal id")
	}
	return &id, nil
}
