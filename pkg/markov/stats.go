package markov

// ModelStats holds aggregated statistics for a model's chain table.
type ModelStats struct {
	Contexts       int // The number of unique contexts.
	Transitions    int // The number of unique context->successor links.
	TotalFrequency int // The sum of all counts; the total number of trained transitions.
}

// Stats returns a snapshot of the model's table statistics.
func (m *Model) Stats() ModelStats {
	stats := ModelStats{Contexts: len(m.table)}
	for _, successors := range m.table {
		stats.Transitions += len(successors)
		for _, count := range successors {
			stats.TotalFrequency += count
		}
	}
	return stats
}
