package audit

import (
	"context"
	"fmt"
	"testing"

	"github.com/ziadkadry99/classrag/internal/access"
	"github.com/ziadkadry99/classrag/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	store.Record(ctx, Event{
		ActorID:   "s1",
		ActorRole: access.RoleStudent,
		Action:    ActionChunkDenied,
		Subject:   "doc1#0003",
		Reason:    "teacher_only content",
	})
	store.Record(ctx, Event{
		ActorID:   "t1",
		ActorRole: access.RoleTeacher,
		Action:    ActionQuery,
		Subject:   "what is on the exam",
		Reason:    "3 results",
	})

	events, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Recent: %d events, want 2", len(events))
	}

	byAction := make(map[Action]Event)
	for _, e := range events {
		if e.ID == "" {
			t.Error("event stored without an ID")
		}
		if e.Timestamp.IsZero() {
			t.Error("event stored without a timestamp")
		}
		byAction[e.Action] = e
	}

	denied := byAction[ActionChunkDenied]
	if denied.ActorID != "s1" || denied.ActorRole != access.RoleStudent || denied.Subject != "doc1#0003" {
		t.Errorf("denial event: %+v", denied)
	}
	query := byAction[ActionQuery]
	if query.ActorID != "t1" || query.Subject != "what is on the exam" {
		t.Errorf("query event: %+v", query)
	}
}

func TestRecentLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		store.Record(ctx, Event{
			ActorID:   "s1",
			ActorRole: access.RoleStudent,
			Action:    ActionQuery,
			Subject:   fmt.Sprintf("question %d", i),
		})
	}

	events, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("Recent(3): %d events", len(events))
	}

	// Non-positive limit falls back to the default rather than nothing.
	events, err = store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent(0): %v", err)
	}
	if len(events) != 5 {
		t.Errorf("Recent(0): %d events, want all 5", len(events))
	}
}
