package normalizer

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed data/vocabulary.yaml
var vocabularyYAML []byte

// DefaultFrequencyThreshold is the corpus share above which a token is treated as noise.
const DefaultFrequencyThreshold = 0.3

// vocabularyFile mirrors data/vocabulary.yaml.
type vocabularyFile struct {
	FrequencyThreshold float64             `yaml:"frequency_threshold"`
	CommonSuffixes     map[string][]string `yaml:"common_suffixes"`
	StopWords          map[string][]string `yaml:"stop_words"`
}

// Vocabulary holds the token sets consulted by the normalizer.
// A Vocabulary is never mutated after construction; the With* methods return copies.
type Vocabulary struct {
	suffixes           map[string]struct{}
	stopWords          map[string]struct{}
	frequencyThreshold float64
}

var defaultVocabulary = mustLoadVocabulary(vocabularyYAML)

// DefaultVocabulary returns the embedded vocabulary.
func DefaultVocabulary() Vocabulary {
	return defaultVocabulary
}

// LoadVocabulary parses a vocabulary document in the embedded YAML layout.
func LoadVocabulary(data []byte) (Vocabulary, error) {
	var file vocabularyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary: %w", err)
	}

	v := Vocabulary{
		suffixes:           make(map[string]struct{}),
		stopWords:          make(map[string]struct{}),
		frequencyThreshold: file.FrequencyThreshold,
	}
	if v.frequencyThreshold <= 0 {
		v.frequencyThreshold = DefaultFrequencyThreshold
	}
	for _, group := range file.CommonSuffixes {
		for _, w := range group {
			v.suffixes[w] = struct{}{}
		}
	}
	for _, group := range file.StopWords {
		for _, w := range group {
			v.stopWords[w] = struct{}{}
		}
	}
	return v, nil
}

func mustLoadVocabulary(data []byte) Vocabulary {
	v, err := LoadVocabulary(data)
	if err != nil {
		panic(err)
	}
	return v
}

// WithSuffixes returns a copy of v with extra suffix tokens.
func (v Vocabulary) WithSuffixes(words ...string) Vocabulary {
	out := v.clone()
	for _, w := range words {
		out.suffixes[w] = struct{}{}
	}
	return out
}

// WithStopWords returns a copy of v with extra stop words.
func (v Vocabulary) WithStopWords(words ...string) Vocabulary {
	out := v.clone()
	for _, w := range words {
		out.stopWords[w] = struct{}{}
	}
	return out
}

// WithFrequencyThreshold returns a copy of v using threshold for corpus noise detection.
func (v Vocabulary) WithFrequencyThreshold(threshold float64) Vocabulary {
	out := v.clone()
	out.frequencyThreshold = threshold
	return out
}

// IsSuffix reports whether word is a common location suffix.
func (v Vocabulary) IsSuffix(word string) bool {
	_, ok := v.suffixes[word]
	return ok
}

// IsStopWord reports whether word is a stop word.
func (v Vocabulary) IsStopWord(word string) bool {
	_, ok := v.stopWords[word]
	return ok
}

// FrequencyThreshold returns the corpus noise threshold.
func (v Vocabulary) FrequencyThreshold() float64 {
	return v.frequencyThreshold
}

// Suffixes returns the suffix set in sorted order.
func (v Vocabulary) Suffixes() []string {
	return sortedKeys(v.suffixes)
}

// StopWords returns the stop word set in sorted order.
func (v Vocabulary) StopWords() []string {
	return sortedKeys(v.stopWords)
}

func (v Vocabulary) clone() Vocabulary {
	out := Vocabulary{
		suffixes:           make(map[string]struct{}, len(v.suffixes)),
		stopWords:          make(map[string]struct{}, len(v.stopWords)),
		frequencyThreshold: v.frequencyThreshold,
	}
	for w := range v.suffixes {
		out.suffixes[w] = struct{}{}
	}
	for w := range v.stopWords {
		out.stopWords[w] = struct{}{}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
