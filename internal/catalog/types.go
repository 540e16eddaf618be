package catalog

import (
	"time"

	"github.com/ziadkadry99/classrag/internal/access"
)

// Document is the durable metadata record for an uploaded document.
// Documents are immutable after creation; OwnerID is kept for audit
// purposes only and never participates in access decisions.
type Document struct {
	ID                string
	Filename          string
	AccessLevel       access.AccessLevel
	AllowedStudentIDs []string
	ClassGroup        string
	OwnerID           string
	CreatedAt         time.Time
}

// Policy returns the document's access policy in the form the policy
// evaluator consumes.
func (d Document) Policy() access.Policy {
	return access.Policy{
		Level:             d.AccessLevel,
		AllowedStudentIDs: d.AllowedStudentIDs,
		ClassGroup:        d.ClassGroup,
	}
}
