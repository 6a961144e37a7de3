package grading

// Totals are the aggregated marks for one submission. MCQ carries every
// auto-graded objective contribution; CQ and SQ carry evaluator-supplied
// marks. Total is clamped at zero after all negative-marking deductions,
// while Deductions preserves the raw penalty sum for audit.
type Totals struct {
	MCQ        float64
	CQ         float64
	SQ         float64
	Total      float64
	Deductions float64
	// NeedsManual is set when at least one subjective question still
	// awaits evaluator marks.
	NeedsManual bool
}

// HasSubjective reports whether a question list contains CQ or SQ items.
func HasSubjective(questions []Question) bool {
	for _, q := range questions {
		if q.Type.IsSubjective() {
			return true
		}
	}
	return false
}

// EvaluateAll grades a student's question list and folds in manual marks.
// Manual marks awarded against question ids outside the student's own list
// (evaluators sometimes grade against a sibling set) are still credited,
// typed via the cross-set resolver and defaulting to CQ. A single
// malformed question is skipped rather than voiding the submission.
func EvaluateAll(questions []Question, answers AnswerSet, resolver *Resolver, pol Policy) ([]QuestionResult, Totals) {
	var totals Totals
	results := make([]QuestionResult, 0, len(questions))
	graded := map[string]struct{}{}

	for _, q := range questions {
		entry := answers[q.ID]
		res, err := Grade(q, entry, pol)
		if err != nil {
			continue
		}
		graded[q.ID] = struct{}{}
		results = append(results, res)

		switch {
		case res.NeedsManual:
			if entry.ManualMarks == nil {
				totals.NeedsManual = true
			}
			switch q.Type {
			case TypeSQ:
				totals.SQ += res.Earned
			default:
				totals.CQ += res.Earned
			}
		default:
			totals.MCQ += res.Earned
			totals.Deductions += res.Deduction
		}
	}

	for id, entry := range answers {
		if entry.ManualMarks == nil {
			continue
		}
		if _, done := graded[id]; done {
			continue
		}
		t, ok := resolver.TypeOf(id)
		if ok && !t.IsSubjective() {
			continue
		}
		if t == TypeSQ {
			totals.SQ += *entry.ManualMarks
		} else {
			totals.CQ += *entry.ManualMarks
		}
	}

	totals.Total = totals.MCQ + totals.CQ + totals.SQ
	if totals.Total < 0 {
		totals.Total = 0
	}

	return results, totals
}
