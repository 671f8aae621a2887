package workout

// IsPersonalRecord reports whether weight beats the historical maximum. Without history (priorMax of 0) nothing
// is a record, so the first set ever logged for an exercise is never flagged.
func IsPersonalRecord(weight, priorMax float64) bool {
	return priorMax > 0 && weight > priorMax
}
