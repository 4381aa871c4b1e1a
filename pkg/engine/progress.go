package engine

// Summary aggregates a run's recorded results by payload type
type Summary struct {
	// Total number of recorded node results
	Total int `json:"total"`

	// Counts maps a result type discriminator to how many results carry it
	Counts map[string]int `json:"counts"`

	// Errors counts results whose payload carries an error field
	Errors int `json:"errors"`
}

// Summarize computes a run summary as a pure read pass over the result
// map. Results with no "type" tag are counted under "unknown".
func Summarize(results map[string]map[string]interface{}) Summary {
	summary := Summary{
		Total:  len(results),
		Counts: make(map[string]int),
	}
	for _, payload := range results {
		resultType := "unknown"
		if t, ok := payload["type"].(string); ok && t != "" {
			resultType = t
		}
		summary.Counts[resultType]++

		if errValue, ok := payload["error"]; ok && errValue != nil && errValue != "" {
			summary.Errors++
		}
	}
	return summary
}
