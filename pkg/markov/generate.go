package markov

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
)

// Rand is the source of randomness for generation. *math/rand/v2.Rand
// satisfies it, as does any deterministic stand-in used by tests. Passing
// a source with a fixed seed reproduces an exact output sequence.
type Rand interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// IntN returns a uniform value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// sysRand adapts the shared top-level math/rand/v2 source.
type sysRand struct{}

func (sysRand) Float64() float64 { return rand.Float64() }
func (sysRand) IntN(n int) int   { return rand.IntN(n) }

// Termination reasons for the generation loop. Only maxLength and a stopped
// sentence are "natural" ends; a dead end means the walk reached a context
// the corpus never continued.
const (
	reasonDeadEnd     = "dead_end"
	reasonSentenceEnd = "sentence_end"
	reasonMaxLength   = "max_length"
)

// generateOptions is used by the generate functions to configure default options.
type generateOptions struct {
	maxLength       int
	temperature     float64
	stopProbability float64
	multiSentence   float64
	seed            string
	rng             Rand
}

func defaultGenerateOptions() *generateOptions {
	return &generateOptions{
		maxLength:       100,
		temperature:     0.8,
		stopProbability: 0.7,
		multiSentence:   0,
		rng:             sysRand{},
	}
}

// GenerateOption is a function that configures generation parameters. It's
// used as a variadic argument in Generate and GenerateStream.
type GenerateOption func(*generateOptions)

// WithMaxLength sets the total token budget for one generation, seed tokens
// included. Generation never produces more than n tokens, though it may stop
// earlier. Default: 100.
func WithMaxLength(n int) GenerateOption {
	return func(o *generateOptions) { o.maxLength = n }
}

// WithTemperature adjusts the randomness of token selection. A value of 1.0
// samples proportionally to raw counts, values below 1.0 sharpen the
// distribution toward the most frequent successor, and values above 1.0
// flatten it toward uniform. Must be greater than zero. Default: 0.8.
func WithTemperature(t float64) GenerateOption {
	return func(o *generateOptions) { o.temperature = t }
}

// WithStopProbability sets the probability, in [0, 1], that generation stops
// when a stop token is produced. Default: 0.7.
func WithStopProbability(p float64) GenerateOption {
	return func(o *generateOptions) { o.stopProbability = p }
}

// WithMultiSentenceProbability sets the probability, in [0, 1), that a
// would-be stop instead begins a new sentence, separated by a single space
// token. The separator counts toward the length budget and becomes part of
// future lookup contexts. A value of 1 or more is rejected, since generation
// would then never stop at a sentence end. Default: 0.
func WithMultiSentenceProbability(p float64) GenerateOption {
	return func(o *generateOptions) { o.multiSentence = p }
}

// WithSeed starts generation from the given text instead of a random
// context. The seed is tokenized with the model's tokenizer and must yield
// at least `order` tokens. An empty seed means a random start.
func WithSeed(seed string) GenerateOption {
	return func(o *generateOptions) { o.seed = seed }
}

// WithRand sets the random source driving sampling and stop decisions. By
// default the shared math/rand/v2 source is used.
func WithRand(rng Rand) GenerateOption {
	return func(o *generateOptions) {
		if rng != nil {
			o.rng = rng
		}
	}
}

// validate checks every request parameter before any generation work begins.
func (o *generateOptions) validate() error {
	if o.maxLength < 1 {
		return validationErr("max_length", "must be a positive integer, got %d", o.maxLength)
	}
	if o.temperature <= 0 {
		return validationErr("temperature", "must be greater than zero, got %v", o.temperature)
	}
	if o.stopProbability < 0 || o.stopProbability > 1 {
		return validationErr("stop_probability", "must be in [0, 1], got %v", o.stopProbability)
	}
	if o.multiSentence < 0 || o.multiSentence >= 1 {
		return validationErr("multiple_sentence_probability", "must be in [0, 1), got %v", o.multiSentence)
	}
	return nil
}

// Generate walks the chain table to produce new text. Without a seed it
// starts from a context chosen uniformly at random among the trained
// contexts (ErrEmptyModel if there are none); with one it continues from the
// seed's trailing tokens. The walk samples successors at the configured
// temperature, may stop probabilistically at stop tokens, stops silently at
// dead ends, and never exceeds the length budget. The token sequence is then
// detokenized and run through FormatText.
func (m *Model) Generate(opts ...GenerateOption) (string, error) {
	options := defaultGenerateOptions()
	for _, opt := range opts {
		opt(options)
	}

	tokens, err := m.generateTokens(options)
	if err != nil {
		return "", err
	}
	return FormatText(m.tokenizer.Detokenize(tokens)), nil
}

// generateTokens contains the main loop for generating a token sequence.
func (m *Model) generateTokens(options *generateOptions) ([]string, error) {
	if err := options.validate(); err != nil {
		return nil, err
	}

	order := m.config.Order
	rng := options.rng

	var tokens []string
	if options.seed != "" {
		tokens = m.tokenizer.Tokenize(options.seed)
		if len(tokens) < order {
			return nil, validationErr("seed", "yields %d tokens, need at least the model order %d", len(tokens), order)
		}
		if len(tokens) > options.maxLength {
			tokens = tokens[:options.maxLength]
		}
	} else {
		if len(m.table) == 0 {
			return nil, ErrEmptyModel
		}
		// Sorted keys give the injectable random source a fixed universe
		// to draw from.
		keys := m.table.sortedKeys()
		tokens = append(tokens, m.contextTokens(keys[rng.IntN(len(keys))])...)
		if len(tokens) > options.maxLength {
			tokens = tokens[:options.maxLength]
		}
	}

	for len(tokens) < options.maxLength {
		key := m.contextKey(tokens[len(tokens)-order:])
		successors, ok := m.table[key]
		if !ok {
			// An expected termination, not an error: the corpus never
			// continued this context.
			m.logger.Debug("generation hit a dead end",
				slog.String("reason", reasonDeadEnd),
				slog.String("last_context", key),
				slog.Int("generated_length", len(tokens)),
			)
			return tokens, nil
		}

		next := chooseToken(rng, sortedSuccessors(successors), options.temperature)
		tokens = append(tokens, next)

		if m.isStopToken(next) && rng.Float64() < options.stopProbability {
			if rng.Float64() < options.multiSentence && options.multiSentence > 0 {
				// Continue into another sentence. The separator spends one
				// token of budget and flows into future contexts.
				if len(tokens) < options.maxLength {
					tokens = append(tokens, " ")
				}
				continue
			}
			m.logger.Debug("generation stopped at a sentence end",
				slog.String("reason", reasonSentenceEnd),
				slog.Int("generated_length", len(tokens)),
			)
			return tokens, nil
		}
	}

	m.logger.Debug("generation stopped at the length budget",
		slog.String("reason", reasonMaxLength),
		slog.Int("max_length", options.maxLength),
	)
	return tokens, nil
}

// tokenCount pairs a successor token with its observed count.
type tokenCount struct {
	token string
	count int
}

// sortedSuccessors flattens a successor-count map into the fixed iteration
// order sampling walks over.
func sortedSuccessors(successors map[string]int) []tokenCount {
	choices := make([]tokenCount, 0, len(successors))
	for token, count := range successors {
		choices = append(choices, tokenCount{token: token, count: count})
	}
	sort.Slice(choices, func(i, j int) bool {
		return choices[i].token < choices[j].token
	})
	return choices
}

// chooseToken makes one stochastic draw from a non-empty successor
// distribution. Each choice gets weight (count/total)^(1/temperature); a
// uniform draw in [0, weightTotal) is then matched against the cumulative
// weights in order. The function always returns one of the input tokens:
// if floating-point loss leaves the draw unmatched, the last entry wins,
// and if every weight underflows to zero, the most frequent token does.
func chooseToken(rng Rand, choices []tokenCount, temperature float64) string {
	var total int
	for _, choice := range choices {
		total += choice.count
	}

	invTemp := 1 / temperature
	weights := make([]float64, len(choices))
	var weightTotal float64
	for i, choice := range choices {
		w := math.Pow(float64(choice.count)/float64(total), invTemp)
		weights[i] = w
		weightTotal += w
	}

	if weightTotal <= 0 {
		// Extreme temperatures can underflow every weight; degrade to the
		// deterministic most-frequent choice.
		best := choices[0]
		for _, choice := range choices[1:] {
			if choice.count > best.count {
				best = choice
			}
		}
		return best.token
	}

	r := rng.Float64() * weightTotal
	var cumulative float64
	for i, choice := range choices {
		cumulative += weights[i]
		if cumulative >= r {
			return choice.token
		}
	}
	return choices[len(choices)-1].token
}
