package markov

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/natefinch/atomic"
)

// snapshot is the serializable representation of a trained model: its full
// configuration plus the chain table as [context, [successor, count]] pairs.
type snapshot struct {
	Order      int        `json:"order"`
	TokenType  TokenType  `json:"token_type"`
	StopTokens []string   `json:"stop_tokens"`
	Model      ChainTable `json:"model"`
}

// Export writes a complete snapshot of the model to w. Loading it back with
// LoadSnapshot reproduces the model exactly for training and generation
// purposes. Output is deterministic: contexts and successors are sorted.
func (m *Model) Export(w io.Writer) error {
	snap := snapshot{
		Order:      m.config.Order,
		TokenType:  m.config.TokenType,
		StopTokens: m.config.StopTokens,
		Model:      m.table,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode model snapshot: %w", err)
	}

	m.logger.Info("model exported",
		slog.Int("contexts", len(m.table)),
		slog.Int("transitions", m.table.Links()),
	)
	return nil
}

// LoadSnapshot reconstructs a model from a snapshot previously written by
// Export. The snapshot is validated structurally before any model is built;
// on any failure the returned error wraps ErrMalformedSnapshot and no
// partially-populated model is returned.
func LoadSnapshot(r io.Reader) (*Model, error) {
	var raw struct {
		Order      *int        `json:"order"`
		TokenType  *TokenType  `json:"token_type"`
		StopTokens *[]string   `json:"stop_tokens"`
		Model      *ChainTable `json:"model"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if raw.Order == nil || raw.TokenType == nil || raw.StopTokens == nil || raw.Model == nil {
		return nil, fmt.Errorf("%w: missing one of order, token_type, stop_tokens or model", ErrMalformedSnapshot)
	}

	m, err := NewModel(ModelConfig{
		Order:      *raw.Order,
		TokenType:  *raw.TokenType,
		StopTokens: *raw.StopTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	for key := range *raw.Model {
		if got := len(m.contextTokens(key)); got != m.config.Order {
			return nil, fmt.Errorf("%w: context %q has %d tokens, want %d", ErrMalformedSnapshot, key, got, m.config.Order)
		}
	}

	m.table = *raw.Model
	return m, nil
}

// SaveFile writes the model snapshot to a file. The write is atomic: the
// file is either fully replaced or left untouched.
func (m *Model) SaveFile(path string) error {
	var buf bytes.Buffer
	if err := m.Export(&buf); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	return nil
}

// LoadFile reconstructs a model from a snapshot file written by SaveFile.
func LoadFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	return LoadSnapshot(f)
}
