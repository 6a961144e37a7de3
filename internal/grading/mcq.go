package grading

import "fmt"

// gradeMCQ scores a single-choice question. The canonical answer is
// resolved in strict order: an option flagged isCorrect, then the explicit
// correctAnswer field (scalar, object with text, or array where any element
// matches), then the legacy correct field. Later rules apply only when the
// earlier ones are absent or fail to match.
func gradeMCQ(q Question, entry AnswerEntry, pol Policy, res *QuestionResult) {
	if !entry.HasWritten() {
		return
	}

	userAns := normalizeAnswer(entry.Text())
	isCorrect := false

	for _, opt := range q.Options {
		if opt.IsCorrect {
			isCorrect = userAns == normalizeAnswer(opt.Text)
			break
		}
	}

	if !isCorrect && q.CorrectAnswer != nil {
		isCorrect = matchesCorrectAnswer(q.CorrectAnswer, userAns)
	}

	if !isCorrect && q.Correct != "" {
		isCorrect = userAns == normalizeAnswer(q.Correct)
	}

	if isCorrect {
		res.IsCorrect = true
		res.Earned = q.Marks
		return
	}

	if pol.NegativeMarkingPercent > 0 {
		res.Deduction = (q.Marks * pol.NegativeMarkingPercent) / 100
		res.Earned = -res.Deduction
	}
}

func matchesCorrectAnswer(correct interface{}, userAns string) bool {
	switch v := correct.(type) {
	case []interface{}:
		for _, candidate := range v {
			if normalizeAnswer(fmt.Sprintf("%v", candidate)) == userAns {
				return true
			}
		}
		return false
	case map[string]interface{}:
		if text, ok := v["text"]; ok {
			return normalizeAnswer(fmt.Sprintf("%v", text)) == userAns
		}
		return false
	default:
		return normalizeAnswer(fmt.Sprintf("%v", v)) == userAns
	}
}
