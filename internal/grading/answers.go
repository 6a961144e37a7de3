package grading

import (
	"encoding/json"
	"strconv"
	"strings"

	"gorm.io/datatypes"
)

// NoAnswerSentinel is the placeholder clients write for a skipped item. It
// never counts as an answer.
const NoAnswerSentinel = "No answer provided"

const (
	imagesKeySuffix = "_images"
	marksKeySuffix  = "_marks"
	metaKeyPrefix   = "_"
)

// AnswerEntry is the structured view of everything a student (and later an
// evaluator) attached to one question id. The raw Value keeps whatever JSON
// shape the client sent: a string for MCQ/CQ/SQ, an array for MC, a number
// for INT/AR, a map for MTF.
type AnswerEntry struct {
	Value       interface{}
	Images      []interface{}
	ManualMarks *float64
}

// Text returns the written answer as a string, empty when the value is not
// textual.
func (e AnswerEntry) Text() string {
	s, _ := e.Value.(string)
	return s
}

// HasWritten reports whether the entry carries a usable written answer.
// Empty strings and the sentinel placeholder do not count.
func (e AnswerEntry) HasWritten() bool {
	switch v := e.Value.(type) {
	case nil:
		return false
	case string:
		trimmed := strings.TrimSpace(v)
		return trimmed != "" && trimmed != NoAnswerSentinel
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return true
	}
}

// HasImages reports whether photographic answers are attached.
func (e AnswerEntry) HasImages() bool {
	return len(e.Images) > 0
}

// Answered reports whether the entry counts as an answered question.
func (e AnswerEntry) Answered() bool {
	return e.HasWritten() || e.HasImages()
}

// AnswerSet maps question ids to their structured entries.
type AnswerSet map[string]AnswerEntry

// ParseAnswers lifts the legacy flat document into structured entries.
// Sibling `${id}_images` and `${id}_marks` keys are folded into the entry
// for their base id; `_`-prefixed meta keys are ignored.
func ParseAnswers(doc map[string]interface{}) AnswerSet {
	set := AnswerSet{}

	for key, value := range doc {
		switch {
		case strings.HasSuffix(key, imagesKeySuffix):
			id := strings.TrimSuffix(key, imagesKeySuffix)
			if id == "" {
				continue
			}
			images, ok := value.([]interface{})
			if !ok || len(images) == 0 {
				continue
			}
			entry := set[id]
			entry.Images = images
			set[id] = entry
		case strings.HasSuffix(key, marksKeySuffix):
			id := strings.TrimSuffix(key, marksKeySuffix)
			if id == "" {
				continue
			}
			marks, ok := toFloat(value)
			if !ok {
				continue
			}
			entry := set[id]
			entry.ManualMarks = &marks
			set[id] = entry
		case strings.HasPrefix(key, metaKeyPrefix):
			continue
		default:
			entry := set[key]
			entry.Value = value
			set[key] = entry
		}
	}

	return set
}

// FlattenAnswers serializes entries back to the legacy flat shape. Meta
// keys from the original document are carried over untouched so the stored
// blob round-trips bit-exact.
func FlattenAnswers(set AnswerSet, meta map[string]interface{}) datatypes.JSONMap {
	doc := datatypes.JSONMap{}

	for key, value := range meta {
		if strings.HasPrefix(key, metaKeyPrefix) {
			doc[key] = value
		}
	}

	for id, entry := range set {
		if entry.Value != nil {
			doc[id] = entry.Value
		}
		if len(entry.Images) > 0 {
			doc[id+imagesKeySuffix] = entry.Images
		}
		if entry.ManualMarks != nil {
			doc[id+marksKeySuffix] = *entry.ManualMarks
		}
	}

	return doc
}

// toFloat reads a numeric JSON value. Fresh request bodies decode numbers
// as float64; rows scanned back from the answers column arrive as
// json.Number because datatypes.JSONMap decodes with UseNumber.
func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
