package audit

import (
	"context"
	"strings"
	"time"

	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/ids"
	"github.com/Chorst09/Simuladores-Dlouble-TI-sub002/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context so every
// entry recorded under it carries provenance.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Entry is one immutable record of an access decision. Entries are appended
// once and never mutated or deleted by this subsystem.
type Entry struct {
	ID           string    `json:"id"`
	ActorID      string    `json:"actor_id,omitempty"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	Allowed      bool      `json:"allowed"`
	Reason       string    `json:"reason,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Store appends immutable entries. ErrNotFound semantics do not apply here;
// any error is an infrastructure failure.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
}

// Recorder writes entries best-effort: a failed append is logged and
// dropped, never surfaced into the decision it describes. Duplicate entries
// are harmless, so no retry or idempotency machinery exists.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder builds a recorder over the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record fills in identity and provenance defaults and appends the entry.
// It never returns an error.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.store == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = r.now().UTC()
	}
	if entry.RequestID == "" {
		entry.RequestID = RequestIDFromContext(ctx)
	}
	if err := r.store.Append(ctx, &entry); err != nil {
		obs.LogRequest(map[string]any{
			"ts":     r.now().UTC().Format(time.RFC3339Nano),
			"level":  "error",
			"msg":    "audit append failed",
			"action": entry.Action,
			"error":  err.Error(),
		})
	}
}
