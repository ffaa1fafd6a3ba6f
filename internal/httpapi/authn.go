package httpapi

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/auth"
)

const (
	authHeader        = "Authorization"
	bearerPrefix      = "Bearer "
	sessionCookieName = "session"
)

// tokenFromRequest pulls the bearer token from the accepted locations:
// Authorization header first, session cookie as fallback. Empty string means
// no credentials were presented.
func tokenFromRequest(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if header != "" && strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerPrefix)) {
		if token := strings.TrimSpace(header[len(bearerPrefix):]); token != "" {
			return token
		}
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

func provenanceFromRequest(r *http.Request) auth.Provenance {
	return auth.Provenance{
		IPAddress: clientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// authorize runs the gateway for one request and writes the failure response
// itself. It reports the authorized account and whether the handler should
// proceed. Deny reasons are only echoed to callers that presented a valid
// token; missing or bad tokens get the generic unauthenticated response.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, pol auth.Policy) (*auth.PublicAccount, bool) {
	token := tokenFromRequest(r)
	decision, account, err := a.auth.Authorize(r.Context(), token, pol, provenanceFromRequest(r))
	if err != nil {
		if errors.Is(err, auth.ErrResourceNotFound) {
			writeError(w, http.StatusNotFound, "resource not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "authorization error")
		return nil, false
	}
	if decision.Allowed {
		return account, true
	}

	switch decision.Code {
	case auth.DenyTokenMissing:
		w.Header().Set("WWW-Authenticate", `Bearer realm="simuladores"`)
		writeError(w, http.StatusUnauthorized, "authentication required")
	case auth.DenyTokenInvalid:
		w.Header().Set("WWW-Authenticate", `Bearer realm="simuladores", error="invalid_token"`)
		writeError(w, http.StatusUnauthorized, "invalid token")
	default:
		writeError(w, http.StatusForbidden, decision.Reason)
	}
	return nil, false
}

func clientIP(r *http.Request) string {
	// X-Forwarded-For support (first IP)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
