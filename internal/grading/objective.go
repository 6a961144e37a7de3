package grading

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// gradeMC scores a multiple-correct question. Full marks require the
// selected set to equal the correct set exactly. With partial credit
// enabled the score is the correct ratio of the marks minus a per-wrong
// selection penalty, clamped at zero.
func gradeMC(q Question, entry AnswerEntry, pol Policy, res *QuestionResult) {
	if !entry.Answered() {
		return
	}

	selected, ok := entry.Value.([]interface{})
	if !ok {
		return
	}

	correctSet := map[int]struct{}{}
	for idx, opt := range q.Options {
		if opt.IsCorrect {
			correctSet[idx] = struct{}{}
		}
	}
	totalCorrect := len(correctSet)
	if totalCorrect == 0 {
		return
	}

	correctSelected := 0
	wrongSelected := 0
	seen := map[int]struct{}{}
	for _, raw := range selected {
		idx, ok := optionIndex(q.Options, raw)
		if !ok {
			wrongSelected++
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		if _, ok := correctSet[idx]; ok {
			correctSelected++
		} else {
			wrongSelected++
		}
	}

	if correctSelected == totalCorrect && wrongSelected == 0 {
		res.IsCorrect = true
		res.Earned = q.Marks
		return
	}

	if !pol.PartialCredit {
		return
	}

	partial := (float64(correctSelected) / float64(totalCorrect)) * q.Marks
	penalty := float64(wrongSelected) * (pol.NegativeMarkingPercent / 100) * q.Marks
	score := partial - penalty
	if score < 0 {
		score = 0
	}
	res.Earned = round2(score)
}

// optionIndex maps a raw selection (index or option text) onto an option
// position. A string selection is matched against the option texts first;
// the numeric-index reading only applies when no text matches, so options
// whose text happens to be a number still grade by text.
func optionIndex(options []Option, raw interface{}) (int, bool) {
	switch v := raw.(type) {
	case float64:
		idx := int(v)
		if idx >= 0 && idx < len(options) {
			return idx, true
		}
		return 0, false
	case json.Number:
		if n, err := v.Int64(); err == nil && n >= 0 && int(n) < len(options) {
			return int(n), true
		}
		return 0, false
	case string:
		want := normalizeAnswer(v)
		for idx, opt := range options {
			if normalizeAnswer(opt.Text) == want {
				return idx, true
			}
		}
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 && n < len(options) {
			return n, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// gradeINT scores an integer question by exact numeric match. Older
// snapshots store the key under modelAnswer, newer ones under
// correctAnswer.
func gradeINT(q Question, entry AnswerEntry, res *QuestionResult) {
	if !entry.Answered() {
		return
	}

	key := q.ModelAnswer
	if key == "" && q.CorrectAnswer != nil {
		key = fmt.Sprintf("%v", q.CorrectAnswer)
	}
	if key == "" {
		key = q.Correct
	}

	correct, ok := parseLeadingInt(key)
	if !ok {
		return
	}
	student, ok := answerInt(entry.Value)
	if !ok {
		return
	}

	if student == correct {
		res.IsCorrect = true
		res.Earned = q.Marks
	}
}

// gradeAR scores an assertion-reason question: the selected option index
// (1-5) must equal the stored correct option.
func gradeAR(q Question, entry AnswerEntry, res *QuestionResult) {
	if !entry.Answered() {
		return
	}

	selected, ok := answerInt(entry.Value)
	if !ok || selected < 1 || selected > 5 {
		return
	}

	if int(selected) == q.CorrectOption {
		res.IsCorrect = true
		res.Earned = q.Marks
	}
}

func answerInt(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case float64:
		return int64(v), true
	case json.Number:
		return parseLeadingInt(v.String())
	case string:
		return parseLeadingInt(v)
	default:
		return 0, false
	}
}

// parseLeadingInt extracts the leading integer of a string the way the
// legacy clients did, so "42.5" and "42 kg" both read as 42.
func parseLeadingInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	end := 0
	if s[0] == '-' || s[0] == '+' {
		end = 1
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 || (end == 1 && (s[0] == '-' || s[0] == '+')) {
		return 0, false
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
