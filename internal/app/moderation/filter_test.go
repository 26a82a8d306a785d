package moderation

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sameShape asserts out equals in except for masked characters inside words.
func sameShape(t *testing.T, in, out string) {
	t.Helper()

	inRunes, outRunes := []rune(in), []rune(out)
	require.Equal(t, len(inRunes), len(outRunes), "rune length changed: %q -> %q", in, out)

	for i := range inRunes {
		if inRunes[i] == outRunes[i] {
			continue
		}
		assert.Equal(t, MaskRune, outRunes[i], "unexpected change at %d in %q", i, out)
		assert.False(t, unicode.IsSpace(inRunes[i]), "whitespace replaced at %d", i)
	}
}

func TestCheckPreservesWhitespace(t *testing.T) {
	inputs := []string{
		"",
		"hello",
		"  leading and trailing  ",
		"shit\n\nhappens\tall the   time",
		"\n",
		"fuck\r\nthis",
		"mixed   unicode spaces shit",
	}

	for _, in := range inputs {
		res := FilterMessage(in)
		sameShape(t, in, res.Output)

		strip := func(s string) []string { return strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) }
		assert.Equal(t, strip(in), strip(res.Output), "whitespace runs differ for %q", in)
	}
}

func TestCheckCensorsProfaneWords(t *testing.T) {
	res := FilterMessage("this is shit and Bullshit!")

	assert.True(t, res.Allowed)
	assert.Equal(t, "this is s*** and B********", res.Output)
}

func TestCensoredTokenKeepsFirstRuneAndLength(t *testing.T) {
	for _, word := range []string{"fuck", "FUCKING", "Shit.", "asshole"} {
		out := CensorWord(word)

		assert.Equal(t, len([]rune(word)), len([]rune(out)))
		assert.Equal(t, []rune(word)[0], []rune(out)[0])
		assert.Equal(t, strings.Repeat("*", len([]rune(word))-1), string([]rune(out)[1:]))
	}
}

func TestShortTokensAreNeverCensored(t *testing.T) {
	f := New(WithWords("ok", "a", "xx"))

	assert.True(t, f.IsProfane("ok"))

	res := f.Check("ok a xx ok!")
	assert.Equal(t, "ok a xx o**", res.Output)
	assert.Equal(t, "ok", CensorWord("ok"))
	assert.Equal(t, "é", CensorWord("é"))
}

func TestBannedPhrasesBlock(t *testing.T) {
	cases := []struct {
		in      string
		allowed bool
	}{
		{in: "fuck you", allowed: false},
		{in: "FUCK    YOU buddy", allowed: false},
		{in: "well FUCK\n\nyou", allowed: false},
		{in: "well f*ck you", allowed: true},
		{in: "shit you", allowed: false},
		{in: "s*h*i*t you", allowed: false},
		{in: "fuck yourself", allowed: false},
		{in: "thank you", allowed: true},
		{in: "fuck, you", allowed: true},
		{in: "shit happens", allowed: true},
	}

	for _, tc := range cases {
		res := FilterMessage(tc.in)
		assert.Equal(t, tc.allowed, res.Allowed, "input %q", tc.in)
	}
}

func TestBlockedTextIsStillCensored(t *testing.T) {
	res := FilterMessage("fuck you")

	assert.False(t, res.Allowed)
	assert.Equal(t, "f*** you", res.Output)
}

func TestCustomWordsAndPhrases(t *testing.T) {
	f := New(WithWords(" Frak "), WithBannedPhrases("go away"))

	res := f.Check("oke then, frak. GO   away")
	assert.False(t, res.Allowed)
	assert.Equal(t, "o** then, f**** GO   away", res.Output)

	assert.True(t, f.Check("fuck you").Allowed, "default phrases replaced")
}

func TestDefaultDictionaryIncludesCustomWords(t *testing.T) {
	res := FilterMessage("Oke fine")

	assert.True(t, res.Allowed)
	assert.Equal(t, "O** fine", res.Output)
	assert.True(t, Default().IsProfane("OKE"))
	assert.False(t, Default().IsProfane("broke"))
}

func TestCheckIsIdempotentOnOutput(t *testing.T) {
	first := FilterMessage("what the fuck is this shit")
	second := FilterMessage(first.Output)

	assert.Equal(t, first.Output, second.Output)
}

func TestTokenizeRoundTrip(t *testing.T) {
	in := " a  b\n\tc "
	tokens := tokenize(in)

	assert.Equal(t, []string{" ", "a", "  ", "b", "\n\t", "c", " "}, tokens)
	assert.Equal(t, in, strings.Join(tokens, ""))
	assert.Nil(t, tokenize(""))
}
