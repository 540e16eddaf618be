package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/classrag/internal/access"
	"github.com/ziadkadry99/classrag/internal/audit"
	"github.com/ziadkadry99/classrag/internal/vectordb"
)

// ErrBackendUnavailable marks retrieval failures caused by the vector
// search backend or the embedding service, as opposed to an empty result.
var ErrBackendUnavailable = errors.New("retrieval backend unavailable")

// RankedChunk is one retrieval result: a chunk the principal is allowed
// to read, its similarity to the query, and the partition it came from
// (kept as access-level provenance for citations).
type RankedChunk struct {
	Chunk      vectordb.Chunk
	Similarity float32
	Partition  vectordb.Partition
}

// Retriever fans a query out across the partitions a principal may
// search, re-applies the access policy to every candidate, and merges
// the survivors into one ranked list.
type Retriever struct {
	store       vectordb.Store
	memberships access.MembershipLookup
	auditor     audit.Recorder // optional
}

// NewRetriever creates a Retriever. auditor may be nil.
func NewRetriever(store vectordb.Store, memberships access.MembershipLookup, auditor audit.Recorder) *Retriever {
	return &Retriever{
		store:       store,
		memberships: memberships,
		auditor:     auditor,
	}
}

// Retrieve returns the topK chunks most similar to the query that the
// principal is allowed to read. An empty result is not an error: it is
// the defined outcome when nothing relevant survives the access filter.
//
// Each partition search over-fetches topK candidates on its own, since
// the residual filter may discard an arbitrary share of them. The
// residual check is the authoritative gate: it runs on every candidate,
// including ones a native filter already vetted, because results pulled
// from the teacher partition for a student were not filtered at the
// source. A deny removes that one chunk and is recorded for audit; it
// never aborts the rest of the query.
func (r *Retriever) Retrieve(ctx context.Context, query string, principal access.Principal, topK int) ([]RankedChunk, error) {
	if topK <= 0 {
		topK = 5
	}

	plan := access.Compile(principal)

	// One membership lookup per request. A lookup failure is carried
	// into the policy evaluation, which denies every class_group
	// predicate for it — fail closed, but only for that branch.
	var memberships access.Memberships
	if plan.Residual() {
		groups, err := r.memberships.Memberships(ctx, principal.ID)
		memberships = access.Memberships{Groups: groups, Err: err}
		if err != nil {
			log.Printf("retrieval: membership lookup for %s failed, class_group content withheld: %v", principal.ID, err)
		}
	}

	// Partition searches are independent; run them concurrently and
	// join before filtering. Order does not matter, the merge re-sorts.
	perPlan := make([][]vectordb.SearchResult, len(plan.Plans))
	g, gctx := errgroup.WithContext(ctx)
	for i, pp := range plan.Plans {
		g.Go(func() error {
			results, err := r.store.Search(gctx, pp.Partition, query, topK, pp.Native)
			if err != nil {
				return fmt.Errorf("%w: searching partition %s: %v", ErrBackendUnavailable, pp.Partition, err)
			}
			perPlan[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Residual filter, then dedupe keeping the best score per chunk.
	best := make(map[string]RankedChunk)
	for i, pp := range plan.Plans {
		for _, res := range perPlan[i] {
			if pp.Residual {
				decision := access.Evaluate(principal, access.PolicyOf(res.Chunk.Metadata), memberships)
				if !decision.Allow {
					r.recordDenial(ctx, principal, res.Chunk.ID, decision.Reason)
					continue
				}
			}
			if prev, ok := best[res.Chunk.ID]; !ok || res.Similarity > prev.Similarity {
				best[res.Chunk.ID] = RankedChunk{
					Chunk:      res.Chunk,
					Similarity: res.Similarity,
					Partition:  res.Partition,
				}
			}
		}
	}

	ranked := make([]RankedChunk, 0, len(best))
	for _, rc := range best {
		ranked = append(ranked, rc)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Similarity != ranked[j].Similarity {
			return ranked[i].Similarity > ranked[j].Similarity
		}
		return ranked[i].Chunk.ID < ranked[j].Chunk.ID
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	if r.auditor != nil {
		r.auditor.Record(ctx, audit.Event{
			ActorID:   principal.ID,
			ActorRole: principal.Role,
			Action:    audit.ActionQuery,
			Subject:   query,
			Reason:    fmt.Sprintf("%d results", len(ranked)),
		})
	}

	return ranked, nil
}

// Empty reports whether the corpus has no chunks in any partition. The
// caller uses this to distinguish "no documents at all" from "nothing
// relevant or permitted".
func (r *Retriever) Empty() bool {
	return r.store.Count(vectordb.PartitionTeacher) == 0 &&
		r.store.Count(vectordb.PartitionStudent) == 0
}

func (r *Retriever) recordDenial(ctx context.Context, principal access.Principal, chunkID, reason string) {
	if r.auditor == nil {
		return
	}
	r.auditor.Record(ctx, audit.Event{
		ActorID:   principal.ID,
		ActorRole: principal.Role,
		Action:    audit.ActionChunkDenied,
		Subject:   chunkID,
		Reason:    reason,
	})
}
