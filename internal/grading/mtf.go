package grading

// gradeMTF scores a match-the-following question against the stored
// left-to-right mapping. Full marks require every pair to match. With
// partial credit enabled each correct pair earns an equal share of the
// question's marks.
func gradeMTF(q Question, entry AnswerEntry, pol Policy, res *QuestionResult) {
	if !entry.Answered() {
		return
	}

	totalPairs := len(q.LeftColumn)
	if totalPairs == 0 {
		return
	}

	submitted := normalizeMatches(q, entry.Value)
	correctPairs := 0
	for _, item := range q.LeftColumn {
		want, ok := q.Matches[item.ID]
		if !ok {
			continue
		}
		if got, ok := submitted[item.ID]; ok && got == want {
			correctPairs++
		}
	}

	if correctPairs == totalPairs {
		res.IsCorrect = true
		res.Earned = q.Marks
		return
	}

	if pol.PartialCredit && correctPairs > 0 {
		res.Earned = round2(float64(correctPairs) * (q.Marks / float64(totalPairs)))
	}
}

// normalizeMatches accepts both submitted shapes: a direct id map
// {"L1": "R2"} or the index form {"matches": [{"leftIndex": 0,
// "rightIndex": 2}]}.
func normalizeMatches(q Question, value interface{}) map[string]string {
	result := map[string]string{}

	doc, ok := value.(map[string]interface{})
	if !ok {
		return result
	}

	rawMatches, indexed := doc["matches"].([]interface{})
	if !indexed {
		for left, right := range doc {
			if s, ok := right.(string); ok {
				result[left] = s
			}
		}
		return result
	}

	for _, raw := range rawMatches {
		pair, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		leftIdx, lok := toFloat(pair["leftIndex"])
		rightIdx, rok := toFloat(pair["rightIndex"])
		if !lok || !rok {
			continue
		}
		l, r := int(leftIdx), int(rightIdx)
		if l < 0 || l >= len(q.LeftColumn) || r < 0 || r >= len(q.RightColumn) {
			continue
		}
		result[q.LeftColumn[l].ID] = q.RightColumn[r].ID
	}

	return result
}
