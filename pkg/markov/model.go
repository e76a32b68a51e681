package markov

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
)

// TokenType selects the tokenization mode of a model.
type TokenType string

const (
	// TokenWord splits text into words and single punctuation marks.
	TokenWord TokenType = "word"
	// TokenChar splits text into single Unicode code points.
	TokenChar TokenType = "char"
)

// ModelConfig holds the immutable parameters of a model. Changing any of
// them requires constructing a new model.
type ModelConfig struct {
	// Order is the number of preceding tokens used as lookup context.
	// Defaults to 2.
	Order int `json:"order"`
	// TokenType selects word or character tokenization. Defaults to TokenWord.
	TokenType TokenType `json:"token_type"`
	// StopTokens are the tokens that may trigger generation termination.
	// Defaults to ".", "!" and "?".
	StopTokens []string `json:"stop_tokens"`
}

// DefaultConfig returns a ModelConfig with default values.
func DefaultConfig() ModelConfig {
	return ModelConfig{
		Order:      2,
		TokenType:  TokenWord,
		StopTokens: []string{".", "!", "?"},
	}
}

// withDefaults fills zero-valued fields and validates the result.
func (c ModelConfig) withDefaults() (ModelConfig, error) {
	def := DefaultConfig()
	if c.Order == 0 {
		c.Order = def.Order
	}
	if c.TokenType == "" {
		c.TokenType = def.TokenType
	}
	if c.StopTokens == nil {
		c.StopTokens = def.StopTokens
	}
	if c.Order < 1 {
		return c, validationErr("order", "must be a positive integer, got %d", c.Order)
	}
	if c.TokenType != TokenWord && c.TokenType != TokenChar {
		return c, validationErr("token_type", "must be %q or %q, got %q", TokenWord, TokenChar, c.TokenType)
	}
	return c, nil
}

// ChainTable maps a context key (a model's `order` consecutive tokens,
// joined) to the multiset of tokens observed to follow it. Every recorded
// count is >= 1; a context with no successors is never kept in the table.
type ChainTable map[string]map[string]int

// add records one observation of next following the given context key.
func (t ChainTable) add(key, next string) {
	succ, ok := t[key]
	if !ok {
		succ = make(map[string]int)
		t[key] = succ
	}
	succ[next]++
}

// Merge folds other into t, taking the union of contexts and successors and
// summing counts where both tables hold the same (context, successor) pair.
// Merging is commutative and associative, so tables built from corpus chunks
// combine in any order to the table a sequential pass would produce.
func (t ChainTable) Merge(other ChainTable) {
	for key, succ := range other {
		for next, count := range succ {
			dst, ok := t[key]
			if !ok {
				dst = make(map[string]int, len(succ))
				t[key] = dst
			}
			dst[next] += count
		}
	}
}

// Links returns the number of unique (context, successor) pairs in the table.
func (t ChainTable) Links() int {
	var n int
	for _, succ := range t {
		n += len(succ)
	}
	return n
}

// sortedKeys returns the table's context keys in lexicographic order, giving
// the rest of the package a fixed iteration order over an unordered map.
func (t ChainTable) sortedKeys() []string {
	keys := make([]string, 0, len(t))
	for key := range t {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON encodes the table as a list of [context, [[successor, count],
// ...]] pairs, the same representation used by model snapshots and by chunk
// workers, so one merge path serves both. Entries are sorted for stable output.
func (t ChainTable) MarshalJSON() ([]byte, error) {
	entries := make([]any, 0, len(t))
	for _, key := range t.sortedKeys() {
		succ := t[key]
		nexts := make([]string, 0, len(succ))
		for next := range succ {
			nexts = append(nexts, next)
		}
		sort.Strings(nexts)
		pairs := make([]any, 0, len(nexts))
		for _, next := range nexts {
			pairs = append(pairs, []any{next, succ[next]})
		}
		entries = append(entries, []any{key, pairs})
	}
	return json.Marshal(entries)
}

// UnmarshalJSON decodes the pair-list representation, rejecting anything
// structurally invalid (wrong arity, wrong types, counts below 1). On error
// the receiver is left unmodified.
func (t *ChainTable) UnmarshalJSON(data []byte) error {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("%w: chain table is not a list: %v", ErrMalformedSnapshot, err)
	}

	table := make(ChainTable, len(entries))
	for i, raw := range entries {
		var entry []json.RawMessage
		if err := json.Unmarshal(raw, &entry); err != nil || len(entry) != 2 {
			return fmt.Errorf("%w: entry %d is not a [context, successors] pair", ErrMalformedSnapshot, i)
		}
		var key string
		if err := json.Unmarshal(entry[0], &key); err != nil {
			return fmt.Errorf("%w: entry %d has a non-string context key", ErrMalformedSnapshot, i)
		}
		var rawPairs []json.RawMessage
		if err := json.Unmarshal(entry[1], &rawPairs); err != nil {
			return fmt.Errorf("%w: context %q successors are not a list", ErrMalformedSnapshot, key)
		}
		succ := make(map[string]int, len(rawPairs))
		for _, rawPair := range rawPairs {
			var pair []json.RawMessage
			if err := json.Unmarshal(rawPair, &pair); err != nil || len(pair) != 2 {
				return fmt.Errorf("%w: context %q has a malformed [successor, count] pair", ErrMalformedSnapshot, key)
			}
			var next string
			if err := json.Unmarshal(pair[0], &next); err != nil {
				return fmt.Errorf("%w: context %q has a non-string successor", ErrMalformedSnapshot, key)
			}
			var count int
			if err := json.Unmarshal(pair[1], &count); err != nil {
				return fmt.Errorf("%w: successor %q of context %q has a non-integer count", ErrMalformedSnapshot, next, key)
			}
			if count < 1 {
				return fmt.Errorf("%w: successor %q of context %q has count %d, want >= 1", ErrMalformedSnapshot, next, key, count)
			}
			succ[next] = count
		}
		if len(succ) > 0 {
			table[key] = succ
		}
	}

	*t = table
	return nil
}

// Model is a higher-order Markov chain over tokenized text. It owns one
// chain table and one configuration for its lifetime. Training may be
// invoked any number of times and only ever adds counts.
//
// A Model is not safe for concurrent mutation; train corpus chunks into
// independent models and combine them with Merge instead of sharing one.
type Model struct {
	config    ModelConfig
	tokenizer Tokenizer
	table     ChainTable
	stopSet   map[string]struct{}
	keySep    string
	logger    *slog.Logger
}

// NewModel creates an empty model from the given configuration. Zero-valued
// fields take their defaults; invalid values return a *ValidationError.
func NewModel(config ModelConfig) (*Model, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	m := &Model{
		config: config,
		table:  make(ChainTable),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	switch config.TokenType {
	case TokenChar:
		m.tokenizer = NewCharTokenizer()
		// Tokens are single code points, so keys concatenate unambiguously.
		m.keySep = ""
	default:
		m.tokenizer = NewWordTokenizer()
		// Word tokens can never contain a space, so a space-joined key
		// cannot collide.
		m.keySep = " "
	}

	m.stopSet = make(map[string]struct{}, len(config.StopTokens))
	for _, token := range config.StopTokens {
		m.stopSet[token] = struct{}{}
	}

	return m, nil
}

// SetLogger sets the logger for the model. By default, all logs are
// discarded.
func (m *Model) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Config returns a copy of the model's configuration.
func (m *Model) Config() ModelConfig {
	config := m.config
	config.StopTokens = append(make([]string, 0, len(m.config.StopTokens)), m.config.StopTokens...)
	return config
}

// Tokenizer returns the tokenizer the model trains and generates with.
func (m *Model) Tokenizer() Tokenizer {
	return m.tokenizer
}

// Table returns the model's chain table. The table is the model's live
// internal state, exposed for persistence and chunk merging; treat it as
// read-only.
func (m *Model) Table() ChainTable {
	return m.table
}

// MergeTable folds a chain table into the model's own. The table must have
// been built with the same order and token type; that is the caller's
// responsibility here, use Merge to have it checked.
func (m *Model) MergeTable(table ChainTable) {
	m.table.Merge(table)
}

// Merge folds another model's observations into this one. The two models
// must share order and token type; a mismatch returns a *ValidationError
// and merges nothing.
func (m *Model) Merge(other *Model) error {
	if other.config.Order != m.config.Order {
		return validationErr("order", "cannot merge order %d into order %d", other.config.Order, m.config.Order)
	}
	if other.config.TokenType != m.config.TokenType {
		return validationErr("token_type", "cannot merge %q into %q", other.config.TokenType, m.config.TokenType)
	}
	m.table.Merge(other.table)
	return nil
}

// contextKey joins exactly `order` tokens into the table's comparable key.
func (m *Model) contextKey(tokens []string) string {
	return strings.Join(tokens, m.keySep)
}

// contextTokens recovers the token sequence behind a context key.
func (m *Model) contextTokens(key string) []string {
	if m.config.TokenType == TokenChar {
		return NewCharTokenizer().Tokenize(key)
	}
	return strings.Split(key, m.keySep)
}

// isStopToken reports whether token may trigger generation termination.
func (m *Model) isStopToken(token string) bool {
	_, ok := m.stopSet[token]
	return ok
}
