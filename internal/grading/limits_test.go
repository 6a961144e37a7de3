package grading

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func limitsResolver() *Resolver {
	return NewResolver(
		SetSnapshot{ID: "set-a", Questions: []Question{
			{ID: "cq1", Type: TypeCQ, Marks: 10},
			{ID: "cq2", Type: TypeCQ, Marks: 10},
			{ID: "sq1", Type: TypeSQ, Marks: 5},
			{ID: "mcq1", Type: TypeMCQ, Marks: 1},
		}},
		SetSnapshot{ID: "set-b", Questions: []Question{
			{ID: "cq3", Type: TypeCQ, Marks: 10},
		}},
	)
}

func TestCountAnsweredWrittenAndImages(t *testing.T) {
	answers := ParseAnswers(map[string]interface{}{
		"cq1":        "an essay",
		"cq2":        NoAnswerSentinel,
		"cq2_images": []interface{}{"https://cdn.example.com/page1.jpg"},
		// Answered against a set the student was never mapped to; the
		// cross-set lookup must still count it.
		"cq3":  "another essay",
		"sq1":  "short answer",
		"mcq1": "A",
	})

	counts := CountAnswered(answers, limitsResolver())
	require.Equal(t, 3, counts.CQ)
	require.Equal(t, 1, counts.SQ)
}

func TestCountAnsweredNoDoubleCount(t *testing.T) {
	answers := ParseAnswers(map[string]interface{}{
		"cq1":        "written",
		"cq1_images": []interface{}{"https://cdn.example.com/extra.jpg"},
	})

	counts := CountAnswered(answers, limitsResolver())
	require.Equal(t, 1, counts.CQ)
}

func TestCapsExceeded(t *testing.T) {
	two := 2
	zero := 0

	require.True(t, Caps{CQ: &two}.Exceeded(AnsweredCounts{CQ: 3}))
	require.False(t, Caps{CQ: &two}.Exceeded(AnsweredCounts{CQ: 2}))
	require.True(t, Caps{SQ: &two}.Exceeded(AnsweredCounts{SQ: 3}))

	// Nil and zero caps mean unlimited.
	require.False(t, Caps{}.Exceeded(AnsweredCounts{CQ: 50, SQ: 50}))
	require.False(t, Caps{CQ: &zero, SQ: &zero}.Exceeded(AnsweredCounts{CQ: 50, SQ: 50}))
}
