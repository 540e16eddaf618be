package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ziadkadry99/classrag/internal/access"
	"github.com/ziadkadry99/classrag/internal/db"
)

// Store persists document metadata and class memberships in SQLite.
// It implements access.MembershipLookup.
type Store struct {
	db *db.DB
}

// NewStore creates a catalog store over an opened database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// PutDocument inserts or replaces a document's metadata. The metadata row
// must be durable before the document's chunks become discoverable, so
// ingestion calls this before any vector-store write.
func (s *Store) PutDocument(ctx context.Context, doc Document) error {
	allowed, err := json.Marshal(doc.AllowedStudentIDs)
	if err != nil {
		return fmt.Errorf("encoding allowed student ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, access_level, allowed_student_ids, class_group, owner_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			access_level = excluded.access_level,
			allowed_student_ids = excluded.allowed_student_ids,
			class_group = excluded.class_group,
			owner_id = excluded.owner_id`,
		doc.ID, doc.Filename, string(doc.AccessLevel), string(allowed), doc.ClassGroup, doc.OwnerID)
	if err != nil {
		return fmt.Errorf("storing document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument returns a document by ID, or (nil, nil) if it does not exist.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, access_level, allowed_student_ids, class_group, owner_id, created_at
		FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", id, err)
	}
	return doc, nil
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, access_level, allowed_student_ids, class_group, owner_id, created_at
		FROM documents ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc       Document
		level     string
		allowed   string
		createdAt string
	)
	if err := row.Scan(&doc.ID, &doc.Filename, &level, &allowed, &doc.ClassGroup, &doc.OwnerID, &createdAt); err != nil {
		return nil, err
	}
	doc.AccessLevel = access.AccessLevel(level)
	if err := json.Unmarshal([]byte(allowed), &doc.AllowedStudentIDs); err != nil {
		return nil, fmt.Errorf("decoding allowed student ids: %w", err)
	}
	if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
		doc.CreatedAt = t
	}
	return &doc, nil
}

// AddMembership records that a student belongs to a class group.
func (s *Store) AddMembership(ctx context.Context, studentID, classGroup string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO class_memberships (student_id, class_group) VALUES (?, ?)
		ON CONFLICT(student_id, class_group) DO NOTHING`,
		studentID, classGroup)
	if err != nil {
		return fmt.Errorf("adding membership %s -> %s: %w", studentID, classGroup, err)
	}
	return nil
}

// Memberships returns the set of class groups the student belongs to.
// An error means the answer is unknown; callers must treat that as a
// denial of class_group content, never as an empty set.
func (s *Store) Memberships(ctx context.Context, principalID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT class_group FROM class_memberships WHERE student_id = ?`, principalID)
	if err != nil {
		return nil, fmt.Errorf("looking up memberships for %s: %w", principalID, err)
	}
	defer rows.Close()

	groups := make(map[string]bool)
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scanning membership: %w", err)
		}
		groups[g] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading memberships for %s: %w", principalID, err)
	}
	return groups, nil
}

var _ access.MembershipLookup = (*Store)(nil)
