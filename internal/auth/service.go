package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/audit"
	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/ids"
	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/obs"
)

// AuditRecorder receives one entry per access evaluation, best-effort.
// Implementations must not propagate failures into the caller.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, audit.Entry) {}

// Service is the authentication gateway: it orchestrates the credential
// store, password verifier, token codec, access evaluator and audit sink
// behind Authenticate and Authorize. All operations are request-scoped and
// safe for concurrent use.
type Service struct {
	store     Store
	codec     *TokenCodec
	evaluator *Evaluator
	audit     AuditRecorder
	now       func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithAuditRecorder wires the audit sink. Without it decisions are still
// made, just not recorded.
func WithAuditRecorder(rec AuditRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.audit = rec
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the gateway.
func NewService(store Store, codec *TokenCodec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	svc := &Service{
		store:     store,
		codec:     codec,
		evaluator: NewEvaluator(store.Ownership(context.Background())),
		audit:     nopRecorder{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Authenticate verifies email/password credentials and issues a session
// token. Every failure collapses into ErrInvalidCredentials so the response
// shape never reveals whether the email exists; the audit entry keeps the
// real reason.
func (s *Service) Authenticate(ctx context.Context, email, password string, prov Provenance) (Session, *PublicAccount, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		s.recordLogin(ctx, "", false, "missing credentials", prov)
		return Session{}, nil, ErrInvalidCredentials
	}

	account, err := s.store.Accounts(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.recordLogin(ctx, "", false, "unknown email", prov)
			return Session{}, nil, ErrInvalidCredentials
		}
		return Session{}, nil, fmt.Errorf("find account: %w", err)
	}
	if !account.IsActive {
		s.recordLogin(ctx, account.ID, false, "inactive account", prov)
		return Session{}, nil, ErrInvalidCredentials
	}
	if !VerifyPassword(account.PasswordHash, password) {
		s.recordLogin(ctx, account.ID, false, "wrong password", prov)
		return Session{}, nil, ErrInvalidCredentials
	}

	claims := Claims{
		AccountID:          account.ID,
		Email:              account.Email,
		Role:               account.Role,
		MustChangePassword: account.MustChangePassword,
	}
	token, err := s.codec.Encode(&claims)
	if err != nil {
		return Session{}, nil, fmt.Errorf("encode token: %w", err)
	}

	s.recordLogin(ctx, account.ID, true, "", prov)
	return Session{Token: token, Claims: claims}, account.Public(), nil
}

// Authorize verifies the bearer token, re-fetches the live account so role
// changes and deactivations take effect immediately, delegates to the
// evaluator, and records exactly one audit entry for the outcome whatever it
// is. Expired and malformed tokens yield the same external decision; only
// the audit reason distinguishes them.
func (s *Service) Authorize(ctx context.Context, token string, pol Policy, prov Provenance) (Decision, *PublicAccount, error) {
	if strings.TrimSpace(token) == "" {
		decision := deny(DenyTokenMissing, "token not provided")
		s.recordDecision(ctx, "", pol, decision, decision.Reason, prov)
		return decision, nil, nil
	}

	claims, err := s.codec.Decode(token)
	if err != nil {
		auditReason := "token invalid"
		if errors.Is(err, ErrTokenExpired) {
			auditReason = "token expired"
		}
		decision := deny(DenyTokenInvalid, "invalid token")
		s.recordDecision(ctx, "", pol, decision, auditReason, prov)
		return decision, nil, nil
	}

	// The token is a capability hint; the store is ground truth for role
	// and active state.
	account, err := s.store.Accounts(ctx).Find(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			decision := deny(DenyTokenInvalid, "invalid token")
			s.recordDecision(ctx, claims.AccountID, pol, decision, "account not found", prov)
			return decision, nil, nil
		}
		return Decision{}, nil, fmt.Errorf("find account: %w", err)
	}
	if !account.IsActive {
		decision := deny(DenyTokenInvalid, "invalid token")
		s.recordDecision(ctx, account.ID, pol, decision, "account inactive", prov)
		return decision, nil, nil
	}

	decision, err := s.evaluator.Authorize(ctx, account, pol)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			s.recordDecision(ctx, account.ID, pol, Decision{}, "resource not found", prov)
			return Decision{}, account.Public(), err
		}
		return Decision{}, nil, err
	}

	auditReason := decision.Reason
	s.recordDecision(ctx, account.ID, pol, decision, auditReason, prov)
	return decision, account.Public(), nil
}

// Register creates a new account. Duplicate emails surface ErrAlreadyExists
// via the store's unique constraint, which also enforces the one active
// account per email invariant.
func (s *Service) Register(ctx context.Context, email, password, name string, role Role) (*PublicAccount, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	account := &Account{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Role:         role,
		IsActive:     true,
	}
	if err := s.store.Accounts(ctx).Create(ctx, account); err != nil {
		return nil, err
	}
	return account.Public(), nil
}

// ChangePassword verifies the current password and stores the new hash,
// clearing the must-change flag in the same statement.
func (s *Service) ChangePassword(ctx context.Context, accountID, current, next string) error {
	if len(next) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	account, err := s.store.Accounts(ctx).Find(ctx, accountID)
	if err != nil {
		return err
	}
	if !VerifyPassword(account.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.Accounts(ctx).UpdatePassword(ctx, accountID, hash, false)
}

// ListAccounts returns the public projection of every account.
func (s *Service) ListAccounts(ctx context.Context) ([]*PublicAccount, error) {
	accounts, err := s.store.Accounts(ctx).List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*PublicAccount, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.Public())
	}
	return out, nil
}

// SetAccountRole changes an account's role. The next Authorize call picks it
// up because roles are always re-read from the store.
func (s *Service) SetAccountRole(ctx context.Context, accountID string, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	return s.store.Accounts(ctx).SetRole(ctx, accountID, role)
}

// SetAccountActive activates or deactivates an account. Deactivation is the
// only way to cut off outstanding tokens before they expire.
func (s *Service) SetAccountActive(ctx context.Context, accountID string, active bool) error {
	return s.store.Accounts(ctx).SetActive(ctx, accountID, active)
}

func (s *Service) recordLogin(ctx context.Context, actorID string, allowed bool, reason string, prov Provenance) {
	outcome := "rejected"
	if allowed {
		outcome = "ok"
	}
	obs.CountLogin(outcome)
	s.audit.Record(ctx, audit.Entry{
		ActorID:   actorID,
		Action:    "auth.login",
		Allowed:   allowed,
		Reason:    reason,
		IPAddress: prov.IPAddress,
		UserAgent: prov.UserAgent,
	})
}

func (s *Service) recordDecision(ctx context.Context, actorID string, pol Policy, decision Decision, auditReason string, prov Provenance) {
	obs.CountDecision(decision.Allowed, string(decision.Code))
	entry := audit.Entry{
		ActorID:   actorID,
		Action:    "auth.authorize",
		Allowed:   decision.Allowed,
		Reason:    auditReason,
		IPAddress: prov.IPAddress,
		UserAgent: prov.UserAgent,
	}
	if pol.Resource != nil {
		entry.Action = string(pol.Resource.Type) + "." + string(pol.Resource.Action)
		entry.ResourceType = string(pol.Resource.Type)
		entry.ResourceID = pol.Resource.ID
	}
	s.audit.Record(ctx, entry)
}

// NormalizeEmail lower-cases and trims an email for the case-insensitive
// uniqueness rule.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
