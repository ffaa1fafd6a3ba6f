package httpapi

import (
	"net/http"
	"strings"

	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/auth"
)

// handleProposalByID is the enforcement gate in front of the proposal
// endpoints. The pricing payloads themselves live in the CRUD layer; this
// handler decides whether the caller may touch the record at all and hands
// back the authorized identity.
func (a *API) handleProposalByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/proposals/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	var action auth.Action
	switch r.Method {
	case http.MethodGet:
		action = auth.ActionRead
	case http.MethodPut:
		action = auth.ActionWrite
	case http.MethodDelete:
		action = auth.ActionDelete
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		return
	}

	pol := auth.Policy{
		Resource: &auth.ResourceRef{Type: auth.ResourceProposal, ID: id, Action: action},
	}
	account, ok := a.authorize(w, r, pol)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"proposal_id": id,
		"action":      action,
		"actor":       account.ID,
	})
}
