// Package audit records access-control events for later review: every
// query a principal runs and every chunk the residual filter withholds
// from one. Writes are best-effort; an audit failure never changes or
// blocks an access decision.
package audit

import (
	"context"
	"time"

	"github.com/ziadkadry99/classrag/internal/access"
)

// Action describes what was done.
type Action string

const (
	ActionQuery       Action = "query"
	ActionChunkDenied Action = "chunk_denied"
	ActionDocCreated  Action = "doc_created"
)

// Event is a single audit trail record.
type Event struct {
	ID        string
	Timestamp time.Time
	ActorID   string
	ActorRole access.Role
	Action    Action
	Subject   string // chunk or document ID; query text for ActionQuery
	Reason    string
}

// Recorder accepts audit events. Implementations must be safe for
// concurrent use and must not return authorization-relevant errors.
type Recorder interface {
	Record(ctx context.Context, event Event)
}
