package markov

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Train slides a window of `order` tokens over every line of every text and
// records which token followed each window. Empty and whitespace-only lines
// are skipped, and lines shorter than order+1 tokens contribute nothing;
// neither is an error. Repeated calls accumulate counts, they never reset
// prior training.
func (m *Model) Train(texts ...string) {
	var lines, links int
	for _, text := range texts {
		for _, line := range strings.Split(text, "\n") {
			if n := m.trainLine(line); n > 0 {
				lines++
				links += n
			}
		}
	}

	m.logger.Info("training completed",
		slog.Int("texts", len(texts)),
		slog.Int("lines_used", lines),
		slog.Int("transitions_recorded", links),
		slog.Int("contexts_total", len(m.table)),
	)
}

// TrainReader trains the model on a stream of text, line by line. It returns
// an error only if reading from r fails; the trained counts up to that point
// are kept.
func (m *Model) TrainReader(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines, links int
	for scanner.Scan() {
		if n := m.trainLine(scanner.Text()); n > 0 {
			lines++
			links += n
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read training data: %w", err)
	}

	m.logger.Info("training completed",
		slog.Int("lines_used", lines),
		slog.Int("transitions_recorded", links),
		slog.Int("contexts_total", len(m.table)),
	)
	return nil
}

// trainLine records every (context, successor) window of one line and
// returns how many transitions it contributed.
func (m *Model) trainLine(line string) int {
	if strings.TrimSpace(line) == "" {
		return 0
	}

	tokens := m.tokenizer.Tokenize(line)
	order := m.config.Order
	if len(tokens) < order+1 {
		return 0
	}

	for i := 0; i+order < len(tokens); i++ {
		m.table.add(m.contextKey(tokens[i:i+order]), tokens[i+order])
	}
	return len(tokens) - order
}

// TrainChunk tokenizes and trains one corpus chunk into an independent chain
// table, for callers partitioning a corpus across workers. Each worker owns
// its own table with no shared state; the results combine with
// ChainTable.Merge (or Model.MergeTable) in any order, yielding the same
// table a sequential pass over the whole corpus would.
func TrainChunk(config ModelConfig, texts ...string) (ChainTable, error) {
	m, err := NewModel(config)
	if err != nil {
		return nil, err
	}
	m.Train(texts...)
	return m.table, nil
}
