package grading

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Policy carries the exam-level grading configuration.
type Policy struct {
	// NegativeMarkingPercent is deducted per wrong MCQ answer as a
	// percentage of the question's marks. Blank answers are never
	// penalized.
	NegativeMarkingPercent float64
	// PartialCredit enables proportional scoring for MC and MTF
	// questions. Both default to all-or-nothing.
	PartialCredit bool
}

// QuestionResult is the grading outcome for a single question.
type QuestionResult struct {
	QuestionID  string       `json:"question_id"`
	Type        QuestionType `json:"type"`
	MaxMarks    float64      `json:"max_marks"`
	Earned      float64      `json:"earned"`
	Deduction   float64      `json:"deduction"`
	IsCorrect   bool         `json:"is_correct"`
	Answered    bool         `json:"answered"`
	NeedsManual bool         `json:"needs_manual"`
}

// Grade evaluates one question against one answer entry. Subjective
// questions report NeedsManual and contribute only their evaluator-supplied
// marks. A non-nil error means this question's grading logic failed on
// malformed data; callers skip the question and continue.
func Grade(q Question, entry AnswerEntry, pol Policy) (QuestionResult, error) {
	res := QuestionResult{
		QuestionID: q.ID,
		Type:       q.Type,
		MaxMarks:   q.Marks,
		Answered:   entry.Answered(),
	}

	switch q.Type {
	case TypeMCQ:
		gradeMCQ(q, entry, pol, &res)
	case TypeMC:
		gradeMC(q, entry, pol, &res)
	case TypeINT:
		gradeINT(q, entry, &res)
	case TypeAR:
		gradeAR(q, entry, &res)
	case TypeMTF:
		gradeMTF(q, entry, pol, &res)
	case TypeCQ, TypeSQ:
		res.NeedsManual = true
		if entry.ManualMarks != nil {
			res.Earned = *entry.ManualMarks
		}
	default:
		return res, fmt.Errorf("unknown question type %q for question %s", q.Type, q.ID)
	}

	return res, nil
}

// normalizeAnswer makes textual comparison robust against casing,
// surrounding whitespace and Unicode composition differences.
func normalizeAnswer(s string) string {
	return norm.NFC.String(strings.ToLower(strings.TrimSpace(s)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
