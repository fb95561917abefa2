package normalizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalizer turns free-text location names into comparable keys.
//
// The pipeline is:
//  1. optional ASCII folding of accented input (off unless WithAccentFolding)
//  2. lowercase, trim, collapse whitespace, drop everything except word characters,
//     whitespace and commas
//  3. split on commas into parts and drop noise tokens per part
//     (stop words everywhere, common suffixes outside the first part,
//     tokens that are over-represented in the corpus)
//  4. fall back to the longest word when nothing survives
//
// A Normalizer is immutable and safe for concurrent use.
type Normalizer struct {
	vocab       Vocabulary
	foldAccents bool
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithVocabulary replaces the embedded vocabulary.
func WithVocabulary(v Vocabulary) Option {
	return func(n *Normalizer) { n.vocab = v }
}

// WithAccentFolding toggles ASCII transliteration before cleaning.
func WithAccentFolding(enabled bool) Option {
	return func(n *Normalizer) { n.foldAccents = enabled }
}

// New creates a Normalizer using the embedded vocabulary. Non-ASCII letters
// are kept as they are unless folding is enabled.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		vocab: DefaultVocabulary(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var defaultNormalizer = New()

// Normalize normalizes raw with the default Normalizer.
func Normalize(raw string, corpus *Corpus) string {
	return defaultNormalizer.Normalize(raw, corpus)
}

// Vocabulary returns the vocabulary in use.
func (n *Normalizer) Vocabulary() Vocabulary {
	return n.vocab
}

// Normalize returns the canonical key for raw. corpus may be nil.
func (n *Normalizer) Normalize(raw string, corpus *Corpus) string {
	cleaned := n.Clean(raw)

	parts := splitParts(cleaned)
	if len(parts) == 0 {
		return fallbackName(cleaned)
	}

	normalized := make([]string, 0, len(parts))
	for i, part := range parts {
		words := strings.Fields(part)
		kept := make([]string, 0, len(words))
		for _, word := range words {
			if n.skipWord(word, i, corpus) {
				continue
			}
			kept = append(kept, word)
		}
		if len(kept) > 0 {
			normalized = append(normalized, strings.Join(kept, " "))
		}
	}

	if len(normalized) == 0 {
		return fallbackName(cleaned)
	}
	return strings.Join(normalized, ", ")
}

// Clean applies the character-level cleanup without any token filtering.
func (n *Normalizer) Clean(raw string) string {
	s := raw
	if n.foldAccents {
		s = FoldToASCII(s)
	}
	s = strings.TrimSpace(strings.ToLower(s))
	s = collapseSpaces(s)

	return strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) || r == ',' {
			return r
		}
		return -1
	}, s)
}

// NewCorpus builds a token frequency snapshot from known location names,
// folded the same way n folds its input.
func (n *Normalizer) NewCorpus(locations []string) *Corpus {
	c := &Corpus{
		freq: make(map[string]int),
		size: len(locations),
	}
	for _, loc := range locations {
		if n.foldAccents {
			loc = FoldToASCII(loc)
		}
		for _, w := range wordRuns(strings.ToLower(loc)) {
			c.freq[w]++
		}
	}
	return c
}

func (n *Normalizer) skipWord(word string, partIndex int, corpus *Corpus) bool {
	if corpus.isNoise(word, n.vocab.FrequencyThreshold()) {
		return true
	}
	if partIndex > 0 && n.vocab.IsSuffix(word) {
		return true
	}
	return n.vocab.IsStopWord(word)
}

// Corpus is an immutable token frequency table over a set of location names.
type Corpus struct {
	freq map[string]int
	size int
}

// Size returns the number of locations the corpus was built from.
func (c *Corpus) Size() int {
	if c == nil {
		return 0
	}
	return c.size
}

// Frequency returns the share of corpus entries per occurrence of word.
func (c *Corpus) Frequency(word string) float64 {
	if c == nil || c.size == 0 {
		return 0
	}
	return float64(c.freq[word]) / float64(c.size)
}

func (c *Corpus) isNoise(word string, threshold float64) bool {
	if c == nil || len(c.freq) == 0 {
		return false
	}
	if _, ok := c.freq[word]; !ok {
		return false
	}
	return c.Frequency(word) > threshold
}

func splitParts(cleaned string) []string {
	raw := strings.Split(cleaned, ",")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// fallbackName returns the longest word of cleaned, or cleaned itself when it has no words.
func fallbackName(cleaned string) string {
	words := wordRuns(cleaned)
	if len(words) == 0 {
		return cleaned
	}
	best := words[0]
	bestLen := utf8.RuneCountInString(best)
	for _, w := range words[1:] {
		if l := utf8.RuneCountInString(w); l > bestLen {
			best, bestLen = w, l
		}
	}
	return best
}

// wordRuns splits s into maximal runs of word characters.
func wordRuns(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !isWordRune(r) })
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}

func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
