package grading

// Caps holds the per-type answer limits for an exam. Nil or non-positive
// caps mean unlimited and never trigger suspension.
type Caps struct {
	CQ *int
	SQ *int
}

// AnsweredCounts is the number of subjective items a student actually
// answered, split by type.
type AnsweredCounts struct {
	CQ int
	SQ int
}

// CountAnswered tallies how many CQ and SQ questions carry an answer:
// either non-placeholder written text or at least one attached image. A
// question with both counts once. Question types are resolved across every
// set available to the exam because a student may answer against a set
// they were never mapped to.
func CountAnswered(answers AnswerSet, resolver *Resolver) AnsweredCounts {
	var counts AnsweredCounts

	for id, entry := range answers {
		if !entry.Answered() {
			continue
		}
		switch t, _ := resolver.TypeOf(id); t {
		case TypeCQ:
			counts.CQ++
		case TypeSQ:
			counts.SQ++
		}
	}

	return counts
}

// Exceeded reports whether either answered count is over its cap.
func (c Caps) Exceeded(counts AnsweredCounts) bool {
	if c.CQ != nil && *c.CQ > 0 && counts.CQ > *c.CQ {
		return true
	}
	if c.SQ != nil && *c.SQ > 0 && counts.SQ > *c.SQ {
		return true
	}
	return false
}
