package grading

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionType identifies one of the supported question variants.
type QuestionType string

const (
	TypeMCQ QuestionType = "mcq"
	TypeMC  QuestionType = "mc"
	TypeINT QuestionType = "int"
	TypeAR  QuestionType = "ar"
	TypeMTF QuestionType = "mtf"
	TypeCQ  QuestionType = "cq"
	TypeSQ  QuestionType = "sq"
)

// IsSubjective reports whether the variant requires human judgment.
func (t QuestionType) IsSubjective() bool {
	return t == TypeCQ || t == TypeSQ
}

// Option is a selectable choice on an MCQ or MC question.
type Option struct {
	Text        string `json:"text"`
	IsCorrect   bool   `json:"isCorrect"`
	Explanation string `json:"explanation,omitempty"`
}

// MatchItem is one entry of an MTF column.
type MatchItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SubQuestion is a human-graded item nested inside a CQ or SQ question.
type SubQuestion struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	Marks       float64 `json:"marks"`
	ModelAnswer string  `json:"modelAnswer,omitempty"`
}

// Question is a snapshot of one question as serialized into an exam set.
// The zero values of the variant-specific fields are ignored by grading
// functions for other variants.
type Question struct {
	ID    string       `json:"id"`
	Type  QuestionType `json:"type"`
	Text  string       `json:"text"`
	Marks float64      `json:"marks"`

	// MCQ / MC
	Options       []Option    `json:"options,omitempty"`
	CorrectAnswer interface{} `json:"correctAnswer,omitempty"`
	// Correct is the oldest answer-key field, kept as a last-resort
	// fallback for sets snapshotted before the options schema existed.
	Correct string `json:"correct,omitempty"`

	// INT
	ModelAnswer string `json:"modelAnswer,omitempty"`

	// AR
	Assertion     string `json:"assertion,omitempty"`
	Reason        string `json:"reason,omitempty"`
	CorrectOption int    `json:"correctOption,omitempty"`

	// MTF
	LeftColumn  []MatchItem       `json:"leftColumn,omitempty"`
	RightColumn []MatchItem       `json:"rightColumn,omitempty"`
	Matches     map[string]string `json:"matches,omitempty"`

	// CQ / SQ
	SubQuestions []SubQuestion `json:"subQuestions,omitempty"`
}

// questionAlias mirrors the loose snapshot schema, including the legacy
// field aliases still present in older exam sets.
type questionAlias struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	QuestionType  string          `json:"questionType"`
	Text          string          `json:"text"`
	QuestionText  string          `json:"questionText"`
	Marks         float64         `json:"marks"`
	Options       []Option        `json:"options"`
	CorrectAnswer interface{}     `json:"correctAnswer"`
	Correct       interface{}     `json:"correct"`
	ModelAnswer   string          `json:"modelAnswer"`
	Answer        interface{}     `json:"answer"`
	Assertion     string          `json:"assertion"`
	Reason        string          `json:"reason"`
	CorrectOption int             `json:"correctOption"`
	LeftColumn    []MatchItem     `json:"leftColumn"`
	RightColumn   []MatchItem     `json:"rightColumn"`
	Matches       map[string]string `json:"matches"`
	SubQuestions  json.RawMessage `json:"subQuestions"`
}

// UnmarshalJSON accepts both the current and the legacy snapshot field
// names. Sub-question lists may arrive doubly encoded as a JSON string.
func (q *Question) UnmarshalJSON(data []byte) error {
	var alias questionAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	typeName := alias.Type
	if typeName == "" {
		typeName = alias.QuestionType
	}

	text := alias.Text
	if text == "" {
		text = alias.QuestionText
	}

	modelAnswer := alias.ModelAnswer
	if modelAnswer == "" && alias.Answer != nil {
		modelAnswer = fmt.Sprintf("%v", alias.Answer)
	}

	correct := ""
	if alias.Correct != nil {
		correct = fmt.Sprintf("%v", alias.Correct)
	}

	*q = Question{
		ID:            alias.ID,
		Type:          QuestionType(strings.ToLower(strings.TrimSpace(typeName))),
		Text:          text,
		Marks:         alias.Marks,
		Options:       alias.Options,
		CorrectAnswer: alias.CorrectAnswer,
		Correct:       correct,
		ModelAnswer:   modelAnswer,
		Assertion:     alias.Assertion,
		Reason:        alias.Reason,
		CorrectOption: alias.CorrectOption,
		LeftColumn:    alias.LeftColumn,
		RightColumn:   alias.RightColumn,
		Matches:       alias.Matches,
	}

	if len(alias.SubQuestions) > 0 {
		raw := alias.SubQuestions
		var nested string
		if err := json.Unmarshal(raw, &nested); err == nil {
			raw = []byte(nested)
		}
		var subs []SubQuestion
		if err := json.Unmarshal(raw, &subs); err == nil {
			q.SubQuestions = subs
		}
	}

	return nil
}

// ParseQuestions decodes an exam-set snapshot. The snapshot may itself be
// doubly encoded as a JSON string. A snapshot that cannot be decoded at all
// is an error; individually malformed entries are skipped so one corrupt
// question never voids a whole set.
func ParseQuestions(snapshot []byte) ([]Question, error) {
	if len(snapshot) == 0 {
		return nil, nil
	}

	raw := snapshot
	var nested string
	if err := json.Unmarshal(raw, &nested); err == nil {
		raw = []byte(nested)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("invalid question snapshot: %w", err)
	}

	questions := make([]Question, 0, len(items))
	for _, item := range items {
		var q Question
		if err := json.Unmarshal(item, &q); err != nil {
			continue
		}
		if q.ID == "" {
			continue
		}
		questions = append(questions, q)
	}

	return questions, nil
}
