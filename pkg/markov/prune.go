package markov

import (
	"log/slog"
)

// Prune removes all transitions with a count less than or equal to minCount,
// which is useful for shrinking a model by dropping rare, and often noisy,
// transitions. Contexts left with no successors are removed entirely,
// keeping the table invariant that every stored count is at least 1 and no
// context is empty. It returns the number of transitions removed.
func (m *Model) Prune(minCount int) int {
	var removed, emptied int
	for key, successors := range m.table {
		for next, count := range successors {
			if count <= minCount {
				delete(successors, next)
				removed++
			}
		}
		if len(successors) == 0 {
			delete(m.table, key)
			emptied++
		}
	}

	m.logger.Info("model pruned",
		slog.Int("min_count", minCount),
		slog.Int("transitions_removed", removed),
		slog.Int("contexts_removed", emptied),
		slog.Int("contexts_remaining", len(m.table)),
	)
	return removed
}
