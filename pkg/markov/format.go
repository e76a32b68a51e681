package markov

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	multiSpaceRegex    = regexp.MustCompile(`\s+`)
	spaceBeforePunct   = regexp.MustCompile(`\s+([,;:.!?])`)
	noSpaceAfterPunct  = regexp.MustCompile(`([,;:.!?])([^\s,;:.!?"')\]}])`)
	spaceAfterOpening  = regexp.MustCompile(`([(\[{])\s+`)
	spaceBeforeClosing = regexp.MustCompile(`\s+([)\]}])`)
)

// FormatText applies a best-effort cosmetic cleanup to detokenized output:
// it strips leading characters before the first letter, digit or double
// quote, capitalizes a lowercase first letter, recovers from unbalanced
// quotes by dropping them, normalizes spacing around quotes, punctuation and
// brackets, and guarantees a sentence-ending punctuation mark. It is a pure
// function and makes no promise of grammatical correctness.
func FormatText(text string) string {
	text = stripLeadingJunk(text)
	if text == "" {
		return ""
	}

	if r := rune(text[0]); r >= 'a' && r <= 'z' {
		text = string(unicode.ToUpper(r)) + text[1:]
	}

	if strings.Count(text, `"`)%2 != 0 {
		// Unmatched quotes are removed rather than repaired.
		text = strings.ReplaceAll(text, `"`, "")
		text = multiSpaceRegex.ReplaceAllString(text, " ")
	} else {
		text = multiSpaceRegex.ReplaceAllString(text, " ")
		text = spaceBeforePunct.ReplaceAllString(text, "$1")
		text = normalizeQuotePairs(text)
		text = noSpaceAfterPunct.ReplaceAllString(text, "$1 $2")
		text = spaceAfterOpening.ReplaceAllString(text, "$1")
		text = spaceBeforeClosing.ReplaceAllString(text, "$1")
		text = multiSpaceRegex.ReplaceAllString(text, " ")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	// A sentence may legitimately end with punctuation tucked inside a
	// closing quote; look past trailing quotes before terminating.
	tail := strings.TrimRight(text, `"`)
	needsDot := tail == ""
	if tail != "" {
		last := tail[len(tail)-1]
		needsDot = last != '.' && last != '!' && last != '?'
	}
	if needsDot {
		text += "."
	}
	return text
}

// stripLeadingJunk drops everything before the first letter, digit or double
// quote.
func stripLeadingJunk(text string) string {
	start := strings.IndexFunc(text, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '"'
	})
	if start < 0 {
		return ""
	}
	return text[start:]
}

// isClausePunct reports whether r is sentence or clause punctuation.
func isClausePunct(r rune) bool {
	switch r {
	case ',', ';', ':', '.', '!', '?':
		return true
	}
	return false
}

// normalizeQuotePairs walks a string with an even number of double quotes,
// removing spaces just inside each opening and closing quote and pulling
// adjacent sentence punctuation inside the closing quote.
func normalizeQuotePairs(text string) string {
	runes := []rune(text)
	out := make([]rune, 0, len(runes))
	open := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '"' {
			out = append(out, r)
			continue
		}

		if !open {
			open = true
			out = append(out, r)
			// No space just inside an opening quote.
			for i+1 < len(runes) && runes[i+1] == ' ' {
				i++
			}
			continue
		}

		open = false
		// No space just inside a closing quote.
		for len(out) > 0 && out[len(out)-1] == ' ' {
			out = out[:len(out)-1]
		}
		// Punctuation directly after a closing quote belongs inside it.
		j := i + 1
		for j < len(runes) && runes[j] == ' ' {
			j++
		}
		if j < len(runes) && isClausePunct(runes[j]) {
			out = append(out, runes[j], r)
			i = j
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}
