package grading

// Percentage converts a total into a percentage of the exam's full marks,
// rounded to two decimals. Exams with no marks configured report zero.
func Percentage(total, maxMarks float64) float64 {
	if maxMarks <= 0 {
		return 0
	}
	pct := (total / maxMarks) * 100
	if pct < 0 {
		pct = 0
	}
	return round2(pct)
}

// LetterGrade maps a percentage onto the national letter-grade scale.
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 80:
		return "A+"
	case percentage >= 70:
		return "A"
	case percentage >= 60:
		return "A-"
	case percentage >= 50:
		return "B"
	case percentage >= 40:
		return "C"
	case percentage >= 33:
		return "D"
	default:
		return "F"
	}
}
