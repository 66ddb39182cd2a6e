package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"custodia/pkg/domain"
	dErrors "custodia/pkg/domainerrors"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type registerResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid role"))
		return
	}
	// Admins bypass every policy rule, so the open registration route never
	// mints one; admin principals come from seeding.
	if role == domain.RoleAdmin {
		writeError(w, dErrors.New(dErrors.CodeForbidden, "admin principals cannot be self-registered"))
		return
	}
	record, err := h.principals.Register(r.Context(), req.Username, req.Password, role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		ID:        record.ID.String(),
		Username:  record.Username,
		Role:      string(record.Role),
		CreatedAt: record.CreatedAt,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	PrincipalID string `json:"principal_id"`
	Role        string `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "malformed request body"))
		return
	}
	token, p, err := h.principals.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		PrincipalID: p.ID.String(),
		Role:        string(p.Role),
	})
}
