package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Cases(t *testing.T) {
	n := New()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "single word", input: "Sangotedo", expected: "sangotedo"},
		{name: "suffixes kept in first part", input: "Sangotedo Phase 1", expected: "sangotedo phase 1"},
		{name: "suffix-only second part dropped", input: "Sangotedo, Phase 1", expected: "sangotedo"},
		{name: "second part kept", input: "Lekki Phase 1, Lagos", expected: "lekki phase 1, lagos"},
		{name: "stop word and regional suffix", input: "The Palms, Lekki", expected: "palms"},
		{name: "punctuation stripped", input: "Ikeja G.R.A.", expected: "ikeja gra"},
		{name: "whitespace collapsed", input: "  Victoria   Island  ", expected: "victoria island"},
		{name: "mixed suffixes in later part", input: "Chevron Drive, Lekki Peninsula Estate", expected: "chevron drive, peninsula"},
		{name: "empty parts ignored", input: "Yaba,, ,Lagos", expected: "yaba, lagos"},
		{name: "accents kept", input: "Ìkòyí", expected: "ìkòyí"},
		{name: "underscore is a word character", input: "block_a, estate", expected: "block_a"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, n.Normalize(tc.input, nil))
		})
	}
}

func TestNormalize_Fallback(t *testing.T) {
	n := New()

	// every token is noise: longest word wins, first occurrence on ties
	assert.Equal(t, "the", n.Normalize("the of and", nil))
	assert.Equal(t, "estate", n.Normalize("of, estate", nil))
	assert.Equal(t, "the", n.Normalize("the,of", nil))

	// no words at all: cleaned input returned verbatim
	assert.Equal(t, "", n.Normalize("", nil))
	assert.Equal(t, "", n.Normalize("!!!", nil))
	assert.Equal(t, " ,", n.Normalize(" - , ", nil))
}

func TestNormalize_Corpus(t *testing.T) {
	n := New()
	corpus := n.NewCorpus([]string{"Lagos Ajah", "Lagos Ikota", "Lagos, Lekki", "Yaba"})

	assert.Equal(t, 4, corpus.Size())
	assert.InDelta(t, 0.75, corpus.Frequency("lagos"), 1e-9)
	assert.InDelta(t, 0.25, corpus.Frequency("yaba"), 1e-9)

	assert.Equal(t, "ikota", n.Normalize("Ikota, Lagos", corpus))
	assert.Equal(t, "ikota, lagos", n.Normalize("Ikota, Lagos", nil))
	// over-common token alone falls back to itself
	assert.Equal(t, "lagos", n.Normalize("Lagos", corpus))

	tolerant := New(WithVocabulary(DefaultVocabulary().WithFrequencyThreshold(0.8)))
	assert.Equal(t, "ikota, lagos", tolerant.Normalize("Ikota, Lagos", corpus))

	empty := n.NewCorpus(nil)
	assert.Equal(t, "lagos", n.Normalize("Lagos", empty))
}

func TestNormalize_Deterministic(t *testing.T) {
	n := New()
	corpus := n.NewCorpus([]string{"Sangotedo", "Sangotedo Phase 1", "Ajah"})
	input := "Sangotedo Phase 2, Ajah, Lagos"

	first := n.Normalize(input, corpus)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, n.Normalize(input, corpus))
	}
}

func TestNormalize_IdempotentPerInput(t *testing.T) {
	n := New()
	inputs := []string{
		"Sangotedo Phase 1, Ajah",
		"Lekki Phase 1, Lagos",
		"The Palms, Lekki",
		"of, estate",
		"Ikeja G.R.A.",
	}
	for _, in := range inputs {
		once := n.Normalize(in, nil)
		assert.Equal(t, once, n.Normalize(once, nil), "input %q", in)
	}
}

func TestNormalize_Options(t *testing.T) {
	folded := New(WithAccentFolding(true))
	assert.Equal(t, "cafe", folded.Normalize("Café", nil))
	assert.Equal(t, "ikoyi", folded.Normalize("Ìkòyí", nil))

	vocab := DefaultVocabulary().WithSuffixes("gra").WithStopWords("lagos")
	custom := New(WithVocabulary(vocab))
	assert.Equal(t, "ikeja", custom.Normalize("Ikeja, GRA", nil))
	assert.Equal(t, "yaba", custom.Normalize("Yaba Lagos", nil))

	// the default vocabulary is unaffected by derived copies
	assert.False(t, DefaultVocabulary().IsSuffix("gra"))
	assert.Equal(t, "ikeja, gra", New().Normalize("Ikeja, GRA", nil))
}

func TestNormalize_NonASCIIByDefault(t *testing.T) {
	n := New()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "combining mark dropped, letters kept", input: "Ik\u1eb9\u0301j\u00e0, Estate", expected: "ik\u1eb9j\u00e0"},
		{name: "sharp s not expanded", input: "Straße", expected: "straße"},
		{name: "CJK not transliterated", input: "東京, 駅", expected: "東京, 駅"},
		{name: "fullwidth not narrowed", input: "Ａｂｃ", expected: "ａｂｃ"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, n.Normalize(tc.input, nil))
			assert.Equal(t, tc.expected, Normalize(tc.input, nil))
		})
	}
}

func TestVocabulary_Defaults(t *testing.T) {
	v := DefaultVocabulary()

	assert.True(t, v.IsSuffix("estate"))
	assert.True(t, v.IsSuffix("ii"))
	assert.True(t, v.IsSuffix("10"))
	assert.True(t, v.IsStopWord("the"))
	assert.False(t, v.IsStopWord("estate"))
	assert.Equal(t, DefaultFrequencyThreshold, v.FrequencyThreshold())
	assert.NotEmpty(t, v.Suffixes())
	assert.NotEmpty(t, v.StopWords())
}

func TestLoadVocabulary(t *testing.T) {
	v, err := LoadVocabulary([]byte("common_suffixes:\n  x: [gate]\nstop_words:\n  y: [the]\n"))
	assert.NoError(t, err)
	assert.True(t, v.IsSuffix("gate"))
	assert.Equal(t, DefaultFrequencyThreshold, v.FrequencyThreshold())

	_, err = LoadVocabulary([]byte("common_suffixes: [unterminated"))
	assert.Error(t, err)
}

func TestFoldToASCII(t *testing.T) {
	assert.Equal(t, "Ikeja", FoldToASCII("Ikẹ́jà"))
	assert.Equal(t, "plain", FoldToASCII("plain"))
	assert.Equal(t, "Ikeja", StripDiacritics("Ikẹ́jà"))
}
