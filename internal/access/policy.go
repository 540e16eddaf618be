package access

import (
	"fmt"

	"github.com/ziadkadry99/classrag/internal/vectordb"
)

// AccessLevel declares who may read a document and all chunks derived
// from it.
type AccessLevel string

const (
	LevelPublic           AccessLevel = "public"
	LevelTeacherOnly      AccessLevel = "teacher_only"
	LevelSpecificStudents AccessLevel = "specific_students"
	LevelClassGroup       AccessLevel = "class_group"
)

// Valid reports whether l is a recognized access level.
func (l AccessLevel) Valid() bool {
	switch l {
	case LevelPublic, LevelTeacherOnly, LevelSpecificStudents, LevelClassGroup:
		return true
	}
	return false
}

// Policy is the access metadata of a document or chunk, independent of
// how the retrieval backend encodes it. AllowedStudentIDs is meaningful
// only for LevelSpecificStudents, ClassGroup only for LevelClassGroup.
type Policy struct {
	Level             AccessLevel
	AllowedStudentIDs []string
	ClassGroup        string
}

// PolicyOf extracts the access policy from stored chunk metadata.
func PolicyOf(m vectordb.ChunkMetadata) Policy {
	return Policy{
		Level:             AccessLevel(m.AccessLevel),
		AllowedStudentIDs: m.AllowedStudentIDs,
		ClassGroup:        m.ClassGroup,
	}
}

// Memberships carries the result of a class-membership lookup for one
// principal. Err records a lookup failure; Evaluate treats a failed
// lookup as a denial of the class_group branch (fail closed), never as
// an empty allow.
type Memberships struct {
	Groups map[string]bool
	Err    error
}

// Decision is the outcome of an access check. Reason is for audit logs
// only and never feeds back into the decision.
type Decision struct {
	Allow  bool
	Reason string
}

// Evaluate answers whether the principal may read content governed by
// the policy. It is pure and total: every input yields a decision,
// unknown access levels are a deny rather than an error. Rules are
// evaluated in order, first match wins.
func Evaluate(p Principal, pol Policy, m Memberships) Decision {
	if p.Role.Elevated() {
		return Decision{Allow: true, Reason: "elevated role"}
	}

	switch pol.Level {
	case LevelPublic:
		return Decision{Allow: true, Reason: "public"}

	case LevelSpecificStudents:
		for _, id := range pol.AllowedStudentIDs {
			if id == p.ID {
				return Decision{Allow: true, Reason: "principal in allowed list"}
			}
		}
		return Decision{Allow: false, Reason: "principal not in allowed list"}

	case LevelClassGroup:
		if m.Err != nil {
			return Decision{Allow: false, Reason: fmt.Sprintf("membership lookup unavailable: %v", m.Err)}
		}
		if pol.ClassGroup != "" && m.Groups[pol.ClassGroup] {
			return Decision{Allow: true, Reason: "member of class group " + pol.ClassGroup}
		}
		return Decision{Allow: false, Reason: "not a member of class group " + pol.ClassGroup}

	case LevelTeacherOnly:
		return Decision{Allow: false, Reason: "teacher-only content"}

	default:
		// Unrecognized levels deny rather than error so a single bad
		// chunk cannot abort a whole query.
		return Decision{Allow: false, Reason: fmt.Sprintf("unrecognized access level %q", pol.Level)}
	}
}
