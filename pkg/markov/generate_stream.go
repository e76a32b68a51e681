package markov

import (
	"context"
	"log/slog"
)

// GenerateStream walks the chain table like Generate but delivers the output
// piece by piece over a channel, which is useful for real-time consumers or
// very long sequences. Each value is one token prefixed with whatever
// separator the model's tokenizer would place before it, so concatenating
// every value yields the detokenized text. The stream is raw: FormatText is
// not applied, since it needs the complete string.
//
// Parameter validation and start-context selection happen synchronously, so
// invalid requests and ErrEmptyModel are reported before any channel is
// returned. The channel is closed once generation terminates or ctx is
// cancelled.
func (m *Model) GenerateStream(ctx context.Context, opts ...GenerateOption) (<-chan string, error) {
	options := defaultGenerateOptions()
	for _, opt := range opts {
		opt(options)
	}
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
		keys := m.table.sortedKeys()
		tokens = append(tokens, m.contextTokens(keys[rng.IntN(len(keys))])...)
		if len(tokens) > options.maxLength {
			tokens = tokens[:options.maxLength]
		}
	}

	out := make(chan string)

	go func() {
		defer close(out)

		prev := ""
		emit := func(token string) bool {
			fragment := token
			if prev != "" {
				// The tokenizer's own joining rules decide the separator.
				joined := m.tokenizer.Detokenize([]string{prev, token})
				fragment = joined[len(prev):]
			}
			prev = token
			select {
			case <-ctx.Done():
				return false
			case out <- fragment:
				return true
			}
		}

		for _, token := range tokens {
			if !emit(token) {
				return
			}
		}

		for len(tokens) < options.maxLength {
			select {
			case <-ctx.Done():
				m.logger.Debug("generation stream cancelled by context")
				return
			default:
			}

			key := m.contextKey(tokens[len(tokens)-order:])
			successors, ok := m.table[key]
			if !ok {
				m.logger.Debug("generation stream hit a dead end",
					slog.String("reason", reasonDeadEnd),
					slog.String("last_context", key),
					slog.Int("generated_length", len(tokens)),
				)
				return
			}

			next := chooseToken(rng, sortedSuccessors(successors), options.temperature)
			tokens = append(tokens, next)
			if !emit(next) {
				return
			}

			if m.isStopToken(next) && rng.Float64() < options.stopProbability {
				if rng.Float64() < options.multiSentence && options.multiSentence > 0 {
					if len(tokens) < options.maxLength {
						tokens = append(tokens, " ")
						if !emit(" ") {
							return
						}
					}
					continue
				}
				m.logger.Debug("generation stream stopped at a sentence end",
					slog.String("reason", reasonSentenceEnd),
					slog.Int("generated_length", len(tokens)),
				)
				return
			}
		}

		m.logger.Debug("generation stream stopped at the length budget",
			slog.String("reason", reasonMaxLength),
			slog.Int("max_length", options.maxLength),
		)
	}()

	return out, nil
}
