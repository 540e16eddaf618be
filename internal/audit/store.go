package audit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/classrag/internal/access"
	"github.com/ziadkadry99/classrag/internal/db"
)

// Store is a SQLite-backed Recorder.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Record inserts an audit event. If event.ID is empty a UUID is
// generated. Failures are logged, not returned: audit is an observer of
// access decisions, not a participant.
func (s *Store) Record(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, actor_id, actor_role, action, subject, reason)
		VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.ActorID,
		string(event.ActorRole),
		string(event.Action),
		event.Subject,
		event.Reason,
	)
	if err != nil {
		log.Printf("audit: recording %s event for %s: %v", event.Action, event.ActorID, err)
	}
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, actor_id, actor_role, action, subject, reason
		FROM audit_events ORDER BY timestamp DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e      Event
			ts     string
			role   string
			action string
		)
		if err := rows.Scan(&e.ID, &ts, &e.ActorID, &role, &action, &e.Subject, &e.Reason); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		e.ActorRole = access.Role(role)
		e.Action = Action(action)
		if t, err := time.Parse("2006-01-02 15:04:05", ts); err == nil {
			e.Timestamp = t
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

var _ Recorder = (*Store)(nil)
