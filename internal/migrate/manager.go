package migrate

import (
	"context"
	"database/sql"
	"fmt"
)

const migrationsTable = "schema_migrations"

// migration is one ordered, idempotently tracked DDL step. The schema the
// auth core touches is small enough to carry embedded instead of as files
// on disk.
type migration struct {
	Name string
	SQL  string
}

var migrations = []migration{
	{
		Name: "0001_accounts",
		SQL: `
			create table if not exists accounts (
				id text primary key,
				email text not null,
				password_hash text not null,
				name text not null default '',
				role text not null default 'user',
				is_active boolean not null default true,
				must_change_password boolean not null default false,
				created_at timestamptz not null default now(),
				updated_at timestamptz not null default now()
			);
			create unique index if not exists accounts_email_key on accounts (lower(email));`,
	},
	{
		Name: "0002_proposals",
		SQL: `
			create table if not exists proposals (
				id text primary key,
				owner_id text not null references accounts(id),
				title text not null default '',
				created_at timestamptz not null default now(),
				updated_at timestamptz not null default now()
			);
			create index if not exists proposals_owner_idx on proposals (owner_id);`,
	},
	{
		Name: "0003_audit_log",
		SQL: `
			create table if not exists audit_log (
				id text primary key,
				occurred_at timestamptz not null,
				actor_id text not null default '',
				action text not null,
				resource_type text not null default '',
				resource_id text not null default '',
				allowed boolean not null,
				reason text not null default '',
				ip_address text not null default '',
				user_agent text not null default '',
				request_id text not null default ''
			);
			create index if not exists audit_log_actor_idx on audit_log (actor_id, occurred_at);`,
	},
}

// Manager applies the embedded schema steps in order, tracking them in a
// bookkeeping table so reruns are no-ops.
type Manager struct {
	db *sql.DB
}

func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// Up applies all pending migrations.
func (m *Manager) Up(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	for _, mig := range migrations {
		if applied[mig.Name] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("apply migration %s: %w", mig.Name, err)
		}
	}
	return nil
}

// Status returns applied migrations in order.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	rows, err := m.db.QueryContext(ctx,
		`select name from `+migrationsTable+` order by applied_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (m *Manager) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		create table if not exists `+migrationsTable+` (
			name text primary key,
			applied_at timestamptz not null default now()
		)`)
	return err
}

func (m *Manager) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `select name from `+migrationsTable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		result[name] = true
	}
	return result, rows.Err()
}

func (m *Manager) apply(ctx context.Context, mig migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`insert into `+migrationsTable+`(name) values ($1)`, mig.Name); err != nil {
		return err
	}
	return tx.Commit()
}
