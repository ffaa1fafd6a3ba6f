package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type captureStore struct {
	entries []*Entry
	err     error
}

func (c *captureStore) Append(_ context.Context, entry *Entry) error {
	if c.err != nil {
		return c.err
	}
	c.entries = append(c.entries, entry)
	return nil
}

func TestRecorderFillsDefaults(t *testing.T) {
	store := &captureStore{}
	rec := NewRecorder(store)
	fixed := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	ctx := WithRequestID(context.Background(), "req-42")
	rec.Record(ctx, Entry{
		ActorID: "u1",
		Action:  "auth.login",
		Allowed: true,
	})

	if len(store.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(store.entries))
	}
	got := store.entries[0]
	if got.ID == "" {
		t.Fatal("ID not assigned")
	}
	if !got.OccurredAt.Equal(fixed) {
		t.Fatalf("OccurredAt = %v, want %v", got.OccurredAt, fixed)
	}
	if got.RequestID != "req-42" {
		t.Fatalf("RequestID = %q", got.RequestID)
	}
}

func TestRecorderKeepsCallerValues(t *testing.T) {
	store := &captureStore{}
	rec := NewRecorder(store)

	when := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	rec.Record(context.Background(), Entry{
		ID:         "fixed-id",
		Action:     "proposal.delete",
		OccurredAt: when,
		RequestID:  "req-set",
	})

	got := store.entries[0]
	if got.ID != "fixed-id" || got.RequestID != "req-set" || !got.OccurredAt.Equal(when) {
		t.Fatalf("caller values overwritten: %+v", got)
	}
}

func TestRecorderSwallowsStoreFailure(t *testing.T) {
	store := &captureStore{err: errors.New("disk full")}
	rec := NewRecorder(store)

	// Must not panic or surface the failure in any way.
	rec.Record(context.Background(), Entry{Action: "auth.authorize", Allowed: false})
	if len(store.entries) != 0 {
		t.Fatal("entry should not be stored")
	}
}

func TestRecorderNilStore(t *testing.T) {
	var rec *Recorder
	rec.Record(context.Background(), Entry{Action: "auth.login"})

	rec = NewRecorder(nil)
	rec.Record(context.Background(), Entry{Action: "auth.login"})
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("empty context must yield empty id, got %q", got)
	}
	if got := RequestIDFromContext(WithRequestID(ctx, "  ")); got != "" {
		t.Fatalf("blank id must not be attached, got %q", got)
	}
	if got := RequestIDFromContext(WithRequestID(ctx, "req-1")); got != "req-1" {
		t.Fatalf("got %q", got)
	}
}
