package access

import "context"

// Role is the coarse permission tier of an authenticated user.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a recognized role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// Elevated reports whether the role bypasses per-document access checks.
func (r Role) Elevated() bool {
	return r == RoleTeacher || r == RoleAdmin
}

// Principal is an authenticated identity. It is supplied per request by
// the authenticator and never persisted by the retrieval layer.
type Principal struct {
	ID   string
	Role Role
}

// MembershipLookup resolves the class groups a principal belongs to.
// Implementations must return an error when the answer is unknown;
// callers treat that error as a denial of every class_group predicate,
// never as an empty (allow-nothing-but-harmless) set.
type MembershipLookup interface {
	Memberships(ctx context.Context, principalID string) (map[string]bool, error)
}
