/*
Package moderation implements the text filter applied to outgoing chat messages.

The filter censors individual profane words in place (first character kept, the rest masked)
and hard-blocks messages whose normalized text contains a banned phrase. It is pure and
synchronous, so viewers can run it on every keystroke and the server can run it again as the
final gate before a message is appended.
*/
package moderation

import (
	_ "embed"
	"strings"
	"unicode"
)

// MaskRune replaces every character after the first in a censored word.
const MaskRune = '*'

// MinCensorLength is the shortest word (in runes) that gets masked.
const MinCensorLength = 3

// DefaultCustomWords extend the embedded dictionary.
var DefaultCustomWords = []string{"oke"}

// DefaultBannedPhrases are matched as substrings of the normalized text.
var DefaultBannedPhrases = []string{"fuck you", "shit you"}

//go:embed words.txt
var embeddedWords string

var defaultFilter = New()

// Result is the outcome of filtering one text.
type Result struct {
	// Allowed is false when a banned phrase was found. The caller must not submit the text.
	Allowed bool `json:"allowed"`

	// Output is the text with profane words censored and all whitespace preserved.
	Output string `json:"output"`
}

// Filter holds an immutable dictionary and phrase list. It is safe for concurrent use.
type Filter struct {
	words   map[string]struct{}
	phrases []string
}

// Option configures a Filter.
type Option func(*Filter)

// WithWords adds custom words to the dictionary.
func WithWords(words ...string) Option {
	return func(f *Filter) {
		for _, w := range words {
			if key := normalizeWord(w); key != "" {
				f.words[key] = struct{}{}
			}
		}
	}
}

// WithBannedPhrases replaces the banned phrase list.
func WithBannedPhrases(phrases ...string) Option {
	return func(f *Filter) {
		f.phrases = f.phrases[:0]
		for _, p := range phrases {
			if n := normalizeText(p); n != "" {
				f.phrases = append(f.phrases, n)
			}
		}
	}
}

// New builds a filter over the embedded dictionary, the default custom words and the default
// banned phrases.
func New(opts ...Option) *Filter {
	f := &Filter{
		words:   make(map[string]struct{}, 256),
		phrases: append([]string(nil), DefaultBannedPhrases...),
	}

	WithWords(ParseWordList(embeddedWords)...)(f)
	WithWords(DefaultCustomWords...)(f)

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Default returns the filter built from the embedded dictionary.
func Default() *Filter {
	return defaultFilter
}

// FilterMessage runs the default filter on text.
func FilterMessage(text string) Result {
	return defaultFilter.Check(text)
}

// Check censors profane words and evaluates the banned phrase policy.
// Censorship is returned even when the text is blocked.
func (f *Filter) Check(text string) Result {
	tokens := tokenize(text)

	var b strings.Builder
	b.Grow(len(text))

	for _, tok := range tokens {
		if !isSpaceToken(tok) && f.IsProfane(tok) {
			tok = CensorWord(tok)
		}
		b.WriteString(tok)
	}

	return Result{
		Allowed: !f.IsBlocked(text),
		Output:  b.String(),
	}
}

// IsProfane reports whether a single token is in the dictionary.
// Surrounding punctuation is ignored, so "Shit!" matches "shit".
func (f *Filter) IsProfane(token string) bool {
	key := normalizeWord(token)
	if key == "" {
		return false
	}

	_, ok := f.words[key]
	return ok
}

// IsBlocked reports whether the normalized text contains a banned phrase.
func (f *Filter) IsBlocked(text string) bool {
	normalized := normalizeText(text)
	for _, phrase := range f.phrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

// CensorWord keeps the first rune and masks the rest. Words shorter than MinCensorLength
// runes are returned unchanged.
func CensorWord(word string) string {
	runes := []rune(word)
	if len(runes) < MinCensorLength {
		return word
	}

	return string(runes[0]) + strings.Repeat(string(MaskRune), len(runes)-1)
}

// tokenize splits text into alternating runs of whitespace and non-whitespace.
// Concatenating the result yields text unchanged.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var tokens []string
	start := 0
	inSpace := false

	for i, r := range text {
		space := unicode.IsSpace(r)
		if i == 0 {
			inSpace = space
			continue
		}
		if space != inSpace {
			tokens = append(tokens, text[start:i])
			start = i
			inSpace = space
		}
	}

	return append(tokens, text[start:])
}

func isSpaceToken(tok string) bool {
	for _, r := range tok {
		return unicode.IsSpace(r)
	}
	return false
}

// normalizeWord lowercases a token and strips non letter/digit characters at both ends.
func normalizeWord(token string) string {
	trimmed := strings.TrimFunc(token, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.ToLower(trimmed)
}

// normalizeText lowercases, drops mask characters and collapses whitespace.
func normalizeText(text string) string {
	lowered := strings.ToLower(text)
	lowered = strings.ReplaceAll(lowered, string(MaskRune), "")
	return strings.Join(strings.Fields(lowered), " ")
}
