package auth

import (
	"strings"
	"time"
)

// Role is the closed set of account roles. Anything outside this set is
// rejected at the edges so the policy matrix stays exhaustive.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDirector Role = "director"
	RoleUser     Role = "user"
)

// ParseRole normalizes and validates a role string.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleDirector:
		return RoleDirector, true
	case RoleUser:
		return RoleUser, true
	default:
		return "", false
	}
}

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// ResourceType identifies what kind of record an access check targets.
type ResourceType string

const (
	ResourceProposal ResourceType = "proposal"
	ResourceAccount  ResourceType = "account"
)

// Action is the operation requested on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// Account is the identity record backing authentication and authorization.
// Exactly one active account exists per email at any time.
type Account struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"-"`
	Name               string    `json:"name"`
	Role               Role      `json:"role"`
	IsActive           bool      `json:"is_active"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Public strips the credential material for responses and context storage.
func (a *Account) Public() *PublicAccount {
	if a == nil {
		return nil
	}
	return &PublicAccount{
		ID:                 a.ID,
		Email:              a.Email,
		Name:               a.Name,
		Role:               a.Role,
		MustChangePassword: a.MustChangePassword,
	}
}

// PublicAccount is the externally visible projection of an Account. It never
// carries the password hash.
type PublicAccount struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	Role               Role   `json:"role"`
	MustChangePassword bool   `json:"must_change_password,omitempty"`
}

// Session is the result of a successful authentication: a signed bearer
// token plus the claims it carries. Nothing is persisted server-side; the
// token's validity window is fixed at issuance.
type Session struct {
	Token  string `json:"token"`
	Claims Claims `json:"claims"`
}

// ResourceRef names one record an access check must consider.
type ResourceRef struct {
	Type   ResourceType `json:"type"`
	ID     string       `json:"id"`
	Action Action       `json:"action"`
}

// Policy is the caller-declared requirement for one request: an optional
// coarse role gate and an optional per-record resource check.
type Policy struct {
	RequiredRoles []Role       `json:"required_roles,omitempty"`
	Resource      *ResourceRef `json:"resource,omitempty"`
}

// DenyCode classifies a denial for callers that must map it onto a
// transport response. Empty on allows.
type DenyCode string

const (
	DenyTokenMissing     DenyCode = "token_missing"
	DenyTokenInvalid     DenyCode = "token_invalid"
	DenyInsufficientRole DenyCode = "insufficient_role"
	DenyOwnership        DenyCode = "ownership_denied"
)

// Decision is the outcome of one access evaluation. Reason is safe to show
// to authenticated callers; unauthenticated callers only ever see the
// generic token messages.
type Decision struct {
	Allowed bool     `json:"allowed"`
	Code    DenyCode `json:"code,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

func allow() Decision { return Decision{Allowed: true} }

func deny(code DenyCode, reason string) Decision {
	return Decision{Allowed: false, Code: code, Reason: reason}
}

// Provenance carries request metadata recorded alongside every decision.
type Provenance struct {
	IPAddress string
	UserAgent string
}
