package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/auth"
)

var adminOnly = auth.Policy{RequiredRoles: []auth.Role{auth.RoleAdmin}}

type createAccountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

func (a *API) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listAccounts(w, r)
	case http.MethodPost:
		a.createAccount(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// Listing every account is role-gated only; no per-record ownership lookup
// runs for it.
func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authorize(w, r, adminOnly); !ok {
		return
	}
	accounts, err := a.auth.ListAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list accounts failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (a *API) createAccount(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.authorize(w, r, adminOnly); !ok {
		return
	}

	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	role := auth.Role(req.Role)
	if req.Role == "" {
		role = auth.RoleUser
	}

	account, err := a.auth.Register(r.Context(), req.Email, req.Password, req.Name, role)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, account)
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "create account failed")
	}
}

type updateAccountRequest struct {
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// handleAccountByID serves /v1/accounts/{id}: PATCH for role/active edits
// (admin only), GET for the record itself (self or admin via the account
// ownership rule).
func (a *API) handleAccountByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/accounts/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getAccount(w, r, id)
	case http.MethodPatch:
		a.updateAccount(w, r, id)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request, id string) {
	pol := auth.Policy{
		Resource: &auth.ResourceRef{Type: auth.ResourceAccount, ID: id, Action: auth.ActionRead},
	}
	account, ok := a.authorize(w, r, pol)
	if !ok {
		return
	}
	if account.ID == id {
		writeJSON(w, http.StatusOK, account)
		return
	}
	// Admin reading someone else's record.
	accounts, err := a.auth.ListAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "find account failed")
		return
	}
	for _, acc := range accounts {
		if acc.ID == id {
			writeJSON(w, http.StatusOK, acc)
			return
		}
	}
	writeError(w, http.StatusNotFound, "account not found")
}

func (a *API) updateAccount(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.authorize(w, r, adminOnly); !ok {
		return
	}

	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Role != nil {
		role, ok := auth.ParseRole(*req.Role)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown role")
			return
		}
		if err := a.auth.SetAccountRole(r.Context(), id, role); err != nil {
			writeAccountUpdateError(w, err)
			return
		}
	}
	if req.IsActive != nil {
		if err := a.auth.SetAccountActive(r.Context(), id, *req.IsActive); err != nil {
			writeAccountUpdateError(w, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeAccountUpdateError(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrNotFound) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "update account failed")
}
