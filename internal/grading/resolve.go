package grading

// SetSnapshot is the decoded question list of one exam set.
type SetSnapshot struct {
	ID        string
	Questions []Question
}

// Resolver locates questions by id across every set available to an exam.
// Sets differ per student, so lookups search the union rather than any one
// set; a student without a set mapping still resolves correctly.
type Resolver struct {
	sets  []SetSnapshot
	index map[string]Question
}

// NewResolver builds a resolver over the given set snapshots. The first
// occurrence of a question id wins, mirroring the first-set-scan order used
// by the legacy clients.
func NewResolver(sets ...SetSnapshot) *Resolver {
	index := map[string]Question{}
	for _, set := range sets {
		for _, q := range set.Questions {
			if _, exists := index[q.ID]; !exists {
				index[q.ID] = q
			}
		}
	}
	return &Resolver{sets: sets, index: index}
}

// Find returns the question with the given id, searching all sets.
func (r *Resolver) Find(id string) (Question, bool) {
	q, ok := r.index[id]
	return q, ok
}

// TypeOf resolves the question type for an id.
func (r *Resolver) TypeOf(id string) (QuestionType, bool) {
	q, ok := r.index[id]
	return q.Type, ok
}

// Set returns the snapshot for a set id.
func (r *Resolver) Set(id string) (SetSnapshot, bool) {
	for _, set := range r.sets {
		if set.ID == id {
			return set, true
		}
	}
	return SetSnapshot{}, false
}

// Sets returns every snapshot known to the resolver.
func (r *Resolver) Sets() []SetSnapshot {
	return r.sets
}

// HasSubjective reports whether any set contains a CQ or SQ question. An
// exam with none is pure objective and can be auto-graded and published on
// submit.
func (r *Resolver) HasSubjective() bool {
	for _, q := range r.index {
		if q.Type.IsSubjective() {
			return true
		}
	}
	return false
}

// BaseQuestionStrategy names one step of the base-question fallback chain.
type BaseQuestionStrategy string

const (
	// StrategyAssignedSet uses the set explicitly mapped to the student.
	StrategyAssignedSet BaseQuestionStrategy = "assigned_set"
	// StrategyFirstCachedSet uses any set carrying a question snapshot.
	StrategyFirstCachedSet BaseQuestionStrategy = "first_cached_set"
	// StrategyFirstSubmitter borrows the set of a student who already
	// submitted.
	StrategyFirstSubmitter BaseQuestionStrategy = "first_submitter"
	// StrategyUnion falls back to a de-duplicated union across all sets.
	StrategyUnion BaseQuestionStrategy = "union"
)

// BaseQuestions resolves the default question list when a student has no
// set mapping. Set assignment is not guaranteed to precede submission in
// every flow, so the chain is deliberately defensive; each step is tried in
// order and the one that produced the list is reported.
func (r *Resolver) BaseQuestions(assignedSetID, firstSubmitterSetID string) ([]Question, BaseQuestionStrategy) {
	if assignedSetID != "" {
		if set, ok := r.Set(assignedSetID); ok && len(set.Questions) > 0 {
			return set.Questions, StrategyAssignedSet
		}
	}

	for _, set := range r.sets {
		if len(set.Questions) > 0 {
			return set.Questions, StrategyFirstCachedSet
		}
	}

	if firstSubmitterSetID != "" {
		if set, ok := r.Set(firstSubmitterSetID); ok && len(set.Questions) > 0 {
			return set.Questions, StrategyFirstSubmitter
		}
	}

	return r.union(), StrategyUnion
}

func (r *Resolver) union() []Question {
	seen := map[string]struct{}{}
	var questions []Question
	for _, set := range r.sets {
		for _, q := range set.Questions {
			if _, dup := seen[q.ID]; dup {
				continue
			}
			seen[q.ID] = struct{}{}
			questions = append(questions, q)
		}
	}
	return questions
}
