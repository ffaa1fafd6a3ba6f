package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/auth"
	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/ids"
)

// BootstrapAdmin creates the first admin account when no admin exists yet.
// The account is flagged must_change_password so the initial credential
// never survives first use. Returns false when an admin was already present.
func BootstrapAdmin(ctx context.Context, db *sql.DB, email, password string) (bool, error) {
	email = auth.NormalizeEmail(email)
	if email == "" || password == "" {
		return false, errors.New("bootstrap: email and password are required")
	}

	var existing string
	err := db.QueryRowContext(ctx,
		`select id from accounts where role=$1 limit 1`, auth.RoleAdmin).Scan(&existing)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("bootstrap: hash password: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`insert into accounts(id, email, password_hash, name, role, is_active, must_change_password)
		 values($1,$2,$3,$4,$5,true,true)`,
		ids.New(), email, hash, "Administrator", auth.RoleAdmin,
	)
	if err != nil {
		return false, fmt.Errorf("bootstrap: create admin: %w", err)
	}
	return true, nil
}
