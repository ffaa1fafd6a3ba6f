package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ Store = (*PGStore)(nil)

const uniqueViolation = "23505"

// PGStore implements Store over PostgreSQL. It issues single-statement
// queries only; concurrency safety is the database's.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Accounts(ctx context.Context) AccountStore    { return &accountStore{db: s.db} }
func (s *PGStore) Ownership(ctx context.Context) OwnershipStore { return &ownershipStore{db: s.db} }

// Account store ------------------------------------------------------------
type accountStore struct{ db *sql.DB }

const accountColumns = `id, email, password_hash, name, role, is_active, must_change_password, created_at, updated_at`

func (s *accountStore) Create(ctx context.Context, a *Account) error {
	_, err := s.db.ExecContext(ctx,
		`insert into accounts(id, email, password_hash, name, role, is_active, must_change_password)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.Email, a.PasswordHash, a.Name, a.Role, a.IsActive, a.MustChangePassword,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: email %s", ErrAlreadyExists, a.Email)
	}
	return err
}

func (s *accountStore) Find(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where id=$1`, id)
	return scanAccount(row)
}

func (s *accountStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where lower(email)=lower($1)`, email)
	return scanAccount(row)
}

func (s *accountStore) List(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+accountColumns+` from accounts order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.Role, &a.IsActive, &a.MustChangePassword, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

// UpdatePassword writes hash and must-change flag in one statement; a
// concurrent reader sees either the old pair or the new pair, never a mix.
func (s *accountStore) UpdatePassword(ctx context.Context, accountID, passwordHash string, mustChange bool) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set password_hash=$2, must_change_password=$3, updated_at=now() where id=$1`,
		accountID, passwordHash, mustChange,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *accountStore) SetRole(ctx context.Context, accountID string, role Role) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set role=$2, updated_at=now() where id=$1`, accountID, role)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *accountStore) SetActive(ctx context.Context, accountID string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set is_active=$2, updated_at=now() where id=$1`, accountID, active)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.Role, &a.IsActive, &a.MustChangePassword, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ownership store ----------------------------------------------------------
type ownershipStore struct{ db *sql.DB }

// FindResourceOwner resolves the single-column owner lookup per resource
// type. The evaluator short-circuits account resources before reaching here.
func (s *ownershipStore) FindResourceOwner(ctx context.Context, resourceType ResourceType, resourceID string) (string, error) {
	switch resourceType {
	case ResourceProposal:
		var owner string
		err := s.db.QueryRowContext(ctx,
			`select owner_id from proposals where id=$1`, resourceID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		if err != nil {
			return "", err
		}
		return owner, nil
	case ResourceAccount:
		var id string
		err := s.db.QueryRowContext(ctx,
			`select id from accounts where id=$1`, resourceID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		if err != nil {
			return "", err
		}
		return id, nil
	default:
		return "", ErrNotFound
	}
}
