package access

import "github.com/ziadkadry99/classrag/internal/vectordb"

// PartitionPlan describes one partition search of a compiled query: the
// partition to search, the filter the backend can evaluate natively, and
// whether results still require the in-process residual check.
type PartitionPlan struct {
	Partition vectordb.Partition

	// Native is the metadata filter pushed down to the vector store.
	// Nil means the partition is searched unfiltered.
	Native map[string]string

	// Residual marks that Evaluate must be applied to every result of
	// this search before it may enter the result set. The backend's
	// primitive filter language cannot express list-membership or
	// class-group predicates, so any access level other than public is
	// only ever enforced in process.
	Residual bool
}

// QueryPlan is the set of partition searches to run for one principal.
type QueryPlan struct {
	Plans []PartitionPlan
}

// Residual reports whether any partition search needs the in-process check.
func (q QueryPlan) Residual() bool {
	for _, p := range q.Plans {
		if p.Residual {
			return true
		}
	}
	return false
}

// Compile translates a principal into the partition searches and filters
// that retrieval must run for it.
//
// Teachers and admins see everything, so they search only the teacher
// partition (which holds every chunk) with no filter and no residual
// check. Students search the student partition with a native
// access_level=public filter, plus the teacher partition unfiltered to
// reach specific_students and class_group content; results from the
// teacher partition were not filtered at the source, so the residual
// check is mandatory there.
func Compile(p Principal) QueryPlan {
	if p.Role.Elevated() {
		return QueryPlan{Plans: []PartitionPlan{
			{Partition: vectordb.PartitionTeacher},
		}}
	}

	return QueryPlan{Plans: []PartitionPlan{
		{
			Partition: vectordb.PartitionStudent,
			Native:    map[string]string{vectordb.MetaAccessLevel: string(LevelPublic)},
			Residual:  true,
		},
		{
			Partition: vectordb.PartitionTeacher,
			Residual:  true,
		},
	}}
}
