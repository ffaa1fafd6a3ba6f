package audit

import (
	"context"
	"database/sql"
)

var _ Store = (*PGStore)(nil)

// PGStore appends entries to the audit_log table. Writes are single-row
// inserts; a write that outlives its caller at worst produces a duplicate,
// never corrupt state.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Append(ctx context.Context, entry *Entry) error {
	_, err := s.db.ExecContext(ctx,
		`insert into audit_log(id, occurred_at, actor_id, action, resource_type, resource_id, allowed, reason, ip_address, user_agent, request_id)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		entry.ID, entry.OccurredAt, entry.ActorID, entry.Action,
		entry.ResourceType, entry.ResourceID, entry.Allowed, entry.Reason,
		entry.IPAddress, entry.UserAgent, entry.RequestID,
	)
	return err
}
