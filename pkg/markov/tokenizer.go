package markov

import (
	"regexp"
	"strings"
)

// Tokenizer splits raw text into atomic tokens and reconstructs text from a
// token sequence. Detokenize(Tokenize(x)) is not guaranteed to be identical
// to x (whitespace is normalized), but must be readable text equivalent to x
// modulo punctuation spacing.
type Tokenizer interface {
	// Tokenize splits text into an ordered sequence of tokens.
	Tokenize(text string) []string
	// Detokenize joins a token sequence back into text with correct spacing.
	Detokenize(tokens []string) string
}

// WordTokenizer tokenizes text into words and single punctuation marks using
// regular expressions. Runs of word characters and apostrophes form one
// token, the punctuation marks .,!?;:"()[]{} are single tokens, and anything
// else (plain whitespace included) is a discarded separator. Its behavior
// can be customized with functional options.
type WordTokenizer struct {
	tokenRegex   *regexp.Regexp
	noSpaceAfter *regexp.Regexp // opening punctuation: no space follows it
	noSpacePre   *regexp.Regexp // closing punctuation: no space precedes it
}

// WordOption is a function that configures a WordTokenizer.
type WordOption func(*WordTokenizer)

// WithTokenRegex sets the regex used to extract tokens from input text.
// Default: `[\w']+|[.,!?;:"()\[\]{}]`
func WithTokenRegex(expr string) WordOption {
	return func(t *WordTokenizer) {
		t.tokenRegex = regexp.MustCompile(expr)
	}
}

// WithNoSpaceBefore sets the regex matching tokens that should not be
// preceded by a space when detokenizing. Default: `^[.,!?;:)\]}]$`
func WithNoSpaceBefore(expr string) WordOption {
	return func(t *WordTokenizer) {
		t.noSpacePre = regexp.MustCompile(expr)
	}
}

// WithNoSpaceAfter sets the regex matching tokens that should not be
// followed by a space when detokenizing. Default: `^[(\[{]$`
func WithNoSpaceAfter(expr string) WordOption {
	return func(t *WordTokenizer) {
		t.noSpaceAfter = regexp.MustCompile(expr)
	}
}

// NewWordTokenizer creates a word-mode tokenizer with default settings,
// which can be overridden by providing one or more WordOption functions.
func NewWordTokenizer(opts ...WordOption) *WordTokenizer {
	t := &WordTokenizer{
		// Sequences of word characters or apostrophes, or a single
		// punctuation mark. Everything else is a separator.
		tokenRegex: regexp.MustCompile(`[\w']+|[.,!?;:"()\[\]{}]`),
		// Closing-class punctuation never gets a space put before it.
		noSpacePre: regexp.MustCompile(`^[.,!?;:)\]}]$`),
		// Opening-class punctuation never gets a space put after it.
		noSpaceAfter: regexp.MustCompile(`^[(\[{]$`),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Tokenize extracts all tokens from text in order.
func (t *WordTokenizer) Tokenize(text string) []string {
	return t.tokenRegex.FindAllString(text, -1)
}

// Detokenize joins tokens with single spaces, except that no space precedes
// a closing-punctuation token and no space follows an opening one.
func (t *WordTokenizer) Detokenize(tokens []string) string {
	var builder strings.Builder
	for i, token := range tokens {
		if i > 0 && !t.noSpacePre.MatchString(token) && !t.noSpaceAfter.MatchString(tokens[i-1]) {
			builder.WriteByte(' ')
		}
		builder.WriteString(token)
	}
	return builder.String()
}

// CharTokenizer tokenizes text into single Unicode code points. Whitespace
// is preserved as tokens, not merged.
type CharTokenizer struct{}

// NewCharTokenizer creates a character-mode tokenizer.
func NewCharTokenizer() *CharTokenizer {
	return &CharTokenizer{}
}

// Tokenize splits text into one token per Unicode code point.
func (t *CharTokenizer) Tokenize(text string) []string {
	runes := []rune(text)
	tokens := make([]string, len(runes))
	for i, r := range runes {
		tokens[i] = string(r)
	}
	return tokens
}

// Detokenize concatenates tokens with no separator.
func (t *CharTokenizer) Detokenize(tokens []string) string {
	return strings.Join(tokens, "")
}
