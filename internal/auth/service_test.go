package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/audit"
)

// fakeStore is an in-memory Store for gateway scenarios.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	owners   map[string]string // proposal id -> owner id
	findErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[string]*Account),
		owners:   make(map[string]string),
	}
}

func (f *fakeStore) Accounts(context.Context) AccountStore    { return f }
func (f *fakeStore) Ownership(context.Context) OwnershipStore { return f }

func (f *fakeStore) Create(_ context.Context, a *Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.accounts {
		if existing.Email == a.Email {
			return fmt.Errorf("%w: email %s", ErrAlreadyExists, a.Email)
		}
	}
	cp := *a
	f.accounts[a.ID] = &cp
	return nil
}

func (f *fakeStore) Find(_ context.Context, id string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	a, ok := f.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) List(context.Context) ([]*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, id, hash string, mustChange bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.PasswordHash = hash
	a.MustChangePassword = mustChange
	return nil
}

func (f *fakeStore) SetRole(_ context.Context, id string, role Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Role = role
	return nil
}

func (f *fakeStore) SetActive(_ context.Context, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.IsActive = active
	return nil
}

func (f *fakeStore) FindResourceOwner(_ context.Context, rt ResourceType, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rt != ResourceProposal {
		return "", ErrNotFound
	}
	owner, ok := f.owners[id]
	if !ok {
		return "", ErrNotFound
	}
	return owner, nil
}

// memRecorder captures audit entries for assertions.
type memRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memRecorder) Record(_ context.Context, e audit.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
}

func (m *memRecorder) last(t *testing.T) audit.Entry {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		t.Fatal("no audit entries recorded")
	}
	return m.entries[len(m.entries)-1]
}

func (m *memRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestService(t *testing.T, store *fakeStore, rec *memRecorder) *Service {
	t.Helper()
	codec, err := NewTokenCodec("service-test-secret", DefaultSessionTTL)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	opts := []ServiceOption{}
	if rec != nil {
		opts = append(opts, WithAuditRecorder(rec))
	}
	svc, err := NewService(store, codec, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedAccount(store *fakeStore, id, email, password string, role Role, active bool) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	store.accounts[id] = &Account{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
		Name:         id,
		Role:         role,
		IsActive:     active,
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	store := newFakeStore()
	rec := &memRecorder{}
	seedAccount(store, "u1", "maria@example.com", "senha-segura", RoleUser, true)
	svc := newTestService(t, store, rec)

	session, account, err := svc.Authenticate(context.Background(), "  MARIA@Example.com ", "senha-segura", Provenance{IPAddress: "10.0.0.5"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected a token")
	}
	if account == nil || account.ID != "u1" || account.Role != RoleUser {
		t.Fatalf("unexpected account: %+v", account)
	}
	if session.Claims.AccountID != "u1" || session.Claims.Email != "maria@example.com" {
		t.Fatalf("unexpected claims: %+v", session.Claims)
	}
	if session.Claims.ExpiresAt <= session.Claims.IssuedAt {
		t.Fatalf("expiry must follow issuance: %+v", session.Claims)
	}

	entry := rec.last(t)
	if entry.Action != "auth.login" || !entry.Allowed || entry.ActorID != "u1" {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
	if entry.IPAddress != "10.0.0.5" {
		t.Fatalf("provenance not recorded: %+v", entry)
	}
}

func TestAuthenticateEnumerationResistance(t *testing.T) {
	store := newFakeStore()
	seedAccount(store, "u1", "maria@example.com", "senha-segura", RoleUser, true)
	seedAccount(store, "u2", "inactive@example.com", "senha-segura", RoleUser, false)
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	// Unknown email, wrong password and inactive account are externally
	// identical.
	_, _, errUnknown := svc.Authenticate(ctx, "ghost@example.com", "whatever", Provenance{})
	_, _, errWrongPw := svc.Authenticate(ctx, "maria@example.com", "wrong", Provenance{})
	_, _, errInactive := svc.Authenticate(ctx, "inactive@example.com", "senha-segura", Provenance{})

	for _, err := range []error{errUnknown, errWrongPw, errInactive} {
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	}
	if errUnknown.Error() != errWrongPw.Error() || errWrongPw.Error() != errInactive.Error() {
		t.Fatal("credential failures must share one external shape")
	}
}

func TestAuthorizeOwnershipScenario(t *testing.T) {
	store := newFakeStore()
	rec := &memRecorder{}
	seedAccount(store, "u1", "u1@example.com", "senha-segura", RoleUser, true)
	seedAccount(store, "u2", "u2@example.com", "senha-segura", RoleUser, true)
	store.owners["p1"] = "u1"
	store.owners["p2"] = "u2"
	svc := newTestService(t, store, rec)
	ctx := context.Background()

	session, _, err := svc.Authenticate(ctx, "u1@example.com", "senha-segura", Provenance{})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	deletePolicy := func(id string) Policy {
		return Policy{Resource: &ResourceRef{Type: ResourceProposal, ID: id, Action: ActionDelete}}
	}

	decision, account, err := svc.Authorize(ctx, session.Token, deletePolicy("p1"), Provenance{})
	if err != nil {
		t.Fatalf("Authorize p1: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("u1 must delete own proposal: %+v", decision)
	}
	if account == nil || account.ID != "u1" {
		t.Fatalf("unexpected identity: %+v", account)
	}

	decision, _, err = svc.Authorize(ctx, session.Token, deletePolicy("p2"), Provenance{})
	if err != nil {
		t.Fatalf("Authorize p2: %v", err)
	}
	if decision.Allowed || decision.Code != DenyOwnership {
		t.Fatalf("u1 must not delete u2's proposal: %+v", decision)
	}
	if decision.Reason == "" {
		t.Fatal("ownership denial must explain itself")
	}

	entry := rec.last(t)
	if entry.Allowed || entry.ResourceID != "p2" || entry.ResourceType != "proposal" {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
}

func TestAuthorizeAuditCompleteness(t *testing.T) {
	store := newFakeStore()
	rec := &memRecorder{}
	seedAccount(store, "u1", "u1@example.com", "senha-segura", RoleUser, true)
	store.owners["p1"] = "u1"
	svc := newTestService(t, store, rec)
	ctx := context.Background()

	session, _, err := svc.Authenticate(ctx, "u1@example.com", "senha-segura", Provenance{})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	before := rec.count()

	calls := []struct {
		token   string
		pol     Policy
		allowed bool
	}{
		{session.Token, Policy{Resource: &ResourceRef{Type: ResourceProposal, ID: "p1", Action: ActionRead}}, true},
		{session.Token, Policy{RequiredRoles: []Role{RoleAdmin}}, false},
		{"", Policy{}, false},
		{"garbage.token.value", Policy{}, false},
	}
	for i, call := range calls {
		decision, _, err := svc.Authorize(ctx, call.token, call.pol, Provenance{})
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if decision.Allowed != call.allowed {
			t.Fatalf("call %d: got allowed=%v want %v", i, decision.Allowed, call.allowed)
		}
		if got := rec.count() - before; got != i+1 {
			t.Fatalf("call %d: expected %d audit entries, got %d", i, i+1, got)
		}
		if rec.last(t).Allowed != call.allowed {
			t.Fatalf("call %d: audit allowed flag mismatch", i)
		}
	}
}

func TestAuthorizeLiveAccountRecheck(t *testing.T) {
	store := newFakeStore()
	seedAccount(store, "d1", "dir@example.com", "senha-segura", RoleDirector, true)
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	session, _, err := svc.Authenticate(ctx, "dir@example.com", "senha-segura", Provenance{})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	adminGate := Policy{RequiredRoles: []Role{RoleAdmin}}
	decision, _, err := svc.Authorize(ctx, session.Token, adminGate, Provenance{})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if decision.Allowed || decision.Code != DenyInsufficientRole {
		t.Fatalf("director must fail the admin gate: %+v", decision)
	}

	// Promote after issuance: the token still works and carries the new role
	// because role is re-read from the store.
	if err := svc.SetAccountRole(ctx, "d1", RoleAdmin); err != nil {
		t.Fatalf("SetAccountRole: %v", err)
	}
	decision, account, err := svc.Authorize(ctx, session.Token, adminGate, Provenance{})
	if err != nil {
		t.Fatalf("Authorize after promotion: %v", err)
	}
	if !decision.Allowed || account.Role != RoleAdmin {
		t.Fatalf("promotion not picked up: %+v %+v", decision, account)
	}

	// Deactivation cuts the token off immediately.
	if err := svc.SetAccountActive(ctx, "d1", false); err != nil {
		t.Fatalf("SetAccountActive: %v", err)
	}
	decision, _, err = svc.Authorize(ctx, session.Token, adminGate, Provenance{})
	if err != nil {
		t.Fatalf("Authorize after deactivation: %v", err)
	}
	if decision.Allowed || decision.Code != DenyTokenInvalid {
		t.Fatalf("deactivated account must be denied: %+v", decision)
	}
}

func TestAuthorizeExpiredToken(t *testing.T) {
	store := newFakeStore()
	rec := &memRecorder{}
	seedAccount(store, "u1", "u1@example.com", "senha-segura", RoleUser, true)
	svc := newTestService(t, store, rec)
	ctx := context.Background()

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.codec.now = func() time.Time { return issued }
	session, _, err := svc.Authenticate(ctx, "u1@example.com", "senha-segura", Provenance{})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	svc.codec.now = func() time.Time { return issued.Add(DefaultSessionTTL + time.Hour) }
	decision, _, err := svc.Authorize(ctx, session.Token, Policy{}, Provenance{})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if decision.Allowed || decision.Code != DenyTokenInvalid || decision.Reason != "invalid token" {
		t.Fatalf("expired token must look like any invalid token: %+v", decision)
	}
	// Only the audit trail distinguishes expiry from tampering.
	if rec.last(t).Reason != "token expired" {
		t.Fatalf("audit must record expiry: %+v", rec.last(t))
	}
}

func TestAuthorizeStoreFailure(t *testing.T) {
	store := newFakeStore()
	rec := &memRecorder{}
	seedAccount(store, "u1", "u1@example.com", "senha-segura", RoleUser, true)
	svc := newTestService(t, store, rec)
	ctx := context.Background()

	session, _, err := svc.Authenticate(ctx, "u1@example.com", "senha-segura", Provenance{})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	before := rec.count()

	storeErr := errors.New("connection refused")
	store.mu.Lock()
	store.findErr = storeErr
	store.mu.Unlock()

	// Infrastructure failure is an error, never a silent deny.
	_, _, err = svc.Authorize(ctx, session.Token, Policy{}, Provenance{})
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
	if rec.count() != before {
		t.Fatal("no decision was made, so nothing should be audited")
	}
}

func TestAuthorizeResourceNotFound(t *testing.T) {
	store := newFakeStore()
	seedAccount(store, "u1", "u1@example.com", "senha-segura", RoleUser, true)
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	session, _, err := svc.Authenticate(ctx, "u1@example.com", "senha-segura", Provenance{})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	_, _, err = svc.Authorize(ctx, session.Token, Policy{
		Resource: &ResourceRef{Type: ResourceProposal, ID: "missing", Action: ActionWrite},
	}, Provenance{})
	if !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
}

func TestRegisterAndDuplicate(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	account, err := svc.Register(ctx, "Nova@Example.com", "senha-segura", "Nova", RoleDirector)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if account.Email != "nova@example.com" || account.Role != RoleDirector {
		t.Fatalf("unexpected account: %+v", account)
	}

	if _, err := svc.Register(ctx, "nova@example.com", "outra-senha", "Clone", RoleUser); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if _, err := svc.Register(ctx, "bad-email", "senha-segura", "X", RoleUser); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad email, got %v", err)
	}
	if _, err := svc.Register(ctx, "short@example.com", "curta", "X", RoleUser); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short password, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	store := newFakeStore()
	seedAccount(store, "u1", "u1@example.com", "senha-antiga", RoleUser, true)
	store.accounts["u1"].MustChangePassword = true
	svc := newTestService(t, store, nil)
	ctx := context.Background()

	if err := svc.ChangePassword(ctx, "u1", "errada", "senha-nova-123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, "u1", "senha-antiga", "senha-nova-123"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	updated, err := store.Find(ctx, "u1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if updated.MustChangePassword {
		t.Fatal("must-change flag not cleared with the new hash")
	}
	if !VerifyPassword(updated.PasswordHash, "senha-nova-123") {
		t.Fatal("new password does not verify")
	}
	if VerifyPassword(updated.PasswordHash, "senha-antiga") {
		t.Fatal("old password still verifies")
	}
}

func TestAuthenticateNeverReturnsHash(t *testing.T) {
	store := newFakeStore()
	seedAccount(store, "u1", "u1@example.com", "senha-segura", RoleAdmin, true)
	svc := newTestService(t, store, nil)

	_, account, err := svc.Authenticate(context.Background(), "u1@example.com", "senha-segura", Provenance{})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	// PublicAccount has no hash field at all; make sure the projection
	// carries what callers need and nothing else.
	if account.ID != "u1" || account.Role != RoleAdmin || account.MustChangePassword {
		t.Fatalf("unexpected public account: %+v", account)
	}
}
