package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custodia/internal/custody"
	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
)

type custodyEntryResponse struct {
	ID            string    `json:"id"`
	EvidenceID    string    `json:"evidence_id"`
	Action        string    `json:"action"`
	FromPrincipal string    `json:"from_principal,omitempty"`
	ToPrincipal   string    `json:"to_principal,omitempty"`
	Location      string    `json:"location"`
	Notes         string    `json:"notes,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	PrevHash      string    `json:"prev_hash,omitempty"`
	EntryHash     string    `json:"entry_hash"`
}

func toCustodyEntryResponse(e custody.Entry) custodyEntryResponse {
	resp := custodyEntryResponse{
		ID:         e.ID.String(),
		EvidenceID: e.EvidenceID.String(),
		Action:     string(e.Action),
		Location:   e.Location,
		Notes:      e.Notes,
		Timestamp:  e.Timestamp,
		PrevHash:   e.PrevHash,
		EntryHash:  e.EntryHash,
	}
	if e.FromPrincipal != nil {
		resp.FromPrincipal = e.FromPrincipal.String()
	}
	if e.ToPrincipal != nil {
		resp.ToPrincipal = e.ToPrincipal.String()
	}
	return resp
}

type appendCustodyRequest struct {
	Action        string  `json:"action"`
	FromPrincipal *string `json:"from_principal"`
	ToPrincipal   *string `json:"to_principal"`
	Location      string  `json:"location"`
	Notes         string  `json:"notes"`
}

func (h *Handler) handleAppendCustody(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	evidenceID, err := domain.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid evidence id"))
		return
	}
	var req appendCustodyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	in := custody.AppendRequest{
		EvidenceID: evidenceID,
		Action:     domain.CustodyAction(req.Action),
		Location:   req.Location,
		Notes:      req.Notes,
	}
	if in.From, err = optionalPrincipalID(req.FromPrincipal); err != nil {
		writeError(w, err)
		return
	}
	if in.To, err = optionalPrincipalID(req.ToPrincipal); err != nil {
		writeError(w, err)
		return
	}
	entry, err := h.custody.Append(r.Context(), p, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustodyEntryResponse(entry))
}

func (h *Handler) handleListCustody(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	evidenceID, err := domain.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid evidence id"))
		return
	}
	entries, err := h.custody.ListFor(r.Context(), p, evidenceID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]custodyEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toCustodyEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

type verifyCustodyResponse struct {
	Intact   bool   `json:"intact"`
	Entries  int    `json:"entries"`
	BrokenAt string `json:"broken_at,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func (h *Handler) handleVerifyCustody(w http.ResponseWriter, r *http.Request) {
	p, ok := callerPrincipal(w, r)
	if !ok {
		return
	}
	evidenceID, err := domain.ParseEvidenceID(chi.URLParam(r, "evidenceID"))
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid evidence id"))
		return
	}
	report, err := h.custody.Verify(r.Context(), p, evidenceID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := verifyCustodyResponse{
		Intact:  report.Intact,
		Entries: report.Entries,
		Reason:  report.Reason,
	}
	if report.BrokenAt != nil {
		resp.BrokenAt = report.BrokenAt.String()
	}
	writeJSON(w, http.StatusOK, resp)
}
