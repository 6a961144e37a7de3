package grading

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolverFindAcrossSets(t *testing.T) {
	r := NewResolver(
		SetSnapshot{ID: "a", Questions: []Question{{ID: "q1", Type: TypeMCQ}}},
		SetSnapshot{ID: "b", Questions: []Question{{ID: "q2", Type: TypeCQ}}},
	)

	q, ok := r.Find("q2")
	require.True(t, ok)
	require.Equal(t, TypeCQ, q.Type)

	_, ok = r.Find("missing")
	require.False(t, ok)

	require.True(t, r.HasSubjective())
}

func TestResolverBaseQuestionChain(t *testing.T) {
	setA := SetSnapshot{ID: "a", Questions: []Question{{ID: "q1", Type: TypeMCQ}}}
	setB := SetSnapshot{ID: "b", Questions: []Question{{ID: "q2", Type: TypeMCQ}}}

	r := NewResolver(setA, setB)

	questions, strategy := r.BaseQuestions("b", "")
	require.Equal(t, StrategyAssignedSet, strategy)
	require.Equal(t, "q2", questions[0].ID)

	questions, strategy = r.BaseQuestions("", "")
	require.Equal(t, StrategyFirstCachedSet, strategy)
	require.Equal(t, "q1", questions[0].ID)

	// With no cached sets the submitter's set is consulted, then the
	// union.
	empty := NewResolver(SetSnapshot{ID: "x"}, SetSnapshot{ID: "y"})
	_, strategy = empty.BaseQuestions("", "y")
	require.Equal(t, StrategyUnion, strategy)
}

func TestResolverUnionDeduplicates(t *testing.T) {
	r := NewResolver(
		SetSnapshot{ID: "a", Questions: []Question{{ID: "q1"}, {ID: "q2"}}},
		SetSnapshot{ID: "b", Questions: []Question{{ID: "q2"}, {ID: "q3"}}},
	)

	questions := r.union()
	require.Len(t, questions, 3)
}
