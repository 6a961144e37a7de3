package grading

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mcqQuestion(marks float64) Question {
	return Question{
		ID:    "q1",
		Type:  TypeMCQ,
		Marks: marks,
		Options: []Option{
			{Text: "Dhaka", IsCorrect: true},
			{Text: "Chittagong"},
			{Text: "Sylhet"},
		},
	}
}

func TestGradeMCQCorrectOption(t *testing.T) {
	res, err := Grade(mcqQuestion(4), AnswerEntry{Value: "  DHAKA "}, Policy{})
	require.NoError(t, err)
	require.True(t, res.IsCorrect)
	require.Equal(t, 4.0, res.Earned)
	require.Zero(t, res.Deduction)
}

func TestGradeMCQNegativeMarking(t *testing.T) {
	res, err := Grade(mcqQuestion(4), AnswerEntry{Value: "Sylhet"}, Policy{NegativeMarkingPercent: 25})
	require.NoError(t, err)
	require.False(t, res.IsCorrect)
	require.Equal(t, -1.0, res.Earned)
	require.Equal(t, 1.0, res.Deduction)
}

func TestGradeMCQBlankNotPenalized(t *testing.T) {
	for _, value := range []interface{}{nil, "", NoAnswerSentinel} {
		res, err := Grade(mcqQuestion(4), AnswerEntry{Value: value}, Policy{NegativeMarkingPercent: 25})
		require.NoError(t, err)
		require.Zero(t, res.Earned)
		require.Zero(t, res.Deduction)
		require.False(t, res.Answered)
	}
}

func TestGradeMCQCorrectAnswerFallbacks(t *testing.T) {
	base := Question{ID: "q2", Type: TypeMCQ, Marks: 2}

	scalar := base
	scalar.CorrectAnswer = "42"
	res, err := Grade(scalar, AnswerEntry{Value: "42"}, Policy{})
	require.NoError(t, err)
	require.True(t, res.IsCorrect)

	object := base
	object.CorrectAnswer = map[string]interface{}{"text": "Oxygen"}
	res, err = Grade(object, AnswerEntry{Value: "oxygen"}, Policy{})
	require.NoError(t, err)
	require.True(t, res.IsCorrect)

	anyOf := base
	anyOf.CorrectAnswer = []interface{}{"HCl", "hydrochloric acid"}
	res, err = Grade(anyOf, AnswerEntry{Value: "Hydrochloric Acid"}, Policy{})
	require.NoError(t, err)
	require.True(t, res.IsCorrect)

	legacy := base
	legacy.Correct = "nitrogen"
	res, err = Grade(legacy, AnswerEntry{Value: "Nitrogen"}, Policy{})
	require.NoError(t, err)
	require.True(t, res.IsCorrect)
}

func TestGradeMCQFlaggedOptionWinsOverFallbacks(t *testing.T) {
	q := mcqQuestion(4)
	q.CorrectAnswer = "Sylhet"

	// The flagged option failed to match, so the explicit field is
	// consulted as a fallback.
	res, err := Grade(q, AnswerEntry{Value: "Sylhet"}, Policy{})
	require.NoError(t, err)
	require.True(t, res.IsCorrect)

	res, err = Grade(q, AnswerEntry{Value: "Dhaka"}, Policy{})
	require.NoError(t, err)
	require.True(t, res.IsCorrect)
}

func TestGradeSubjectiveNeedsManual(t *testing.T) {
	q := Question{ID: "cq1", Type: TypeCQ, Marks: 10}

	res, err := Grade(q, AnswerEntry{Value: "long essay"}, Policy{})
	require.NoError(t, err)
	require.True(t, res.NeedsManual)
	require.Zero(t, res.Earned)

	marks := 7.5
	res, err = Grade(q, AnswerEntry{Value: "long essay", ManualMarks: &marks}, Policy{})
	require.NoError(t, err)
	require.True(t, res.NeedsManual)
	require.Equal(t, 7.5, res.Earned)
}

func TestGradeUnknownTypeFails(t *testing.T) {
	_, err := Grade(Question{ID: "x", Type: "essay"}, AnswerEntry{Value: "hi"}, Policy{})
	require.Error(t, err)
}

func TestNormalizeAnswerUnicode(t *testing.T) {
	// NFD vs NFC forms of the same accented string must compare equal.
	require.Equal(t, normalizeAnswer("Café"), normalizeAnswer("Café"))
}
