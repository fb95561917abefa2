package normalizer

import (
	"unicode"
	"unicode/utf8"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripDiacritics removes combining marks while keeping base letters ("Ikẹ́jà" -> "Ikeja").
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	out, _, _ := transform.String(t, s)
	return out
}

func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// FoldToASCII transliterates s to ASCII. Pure ASCII input is returned unchanged.
func FoldToASCII(s string) string {
	if isASCII(s) {
		return s
	}
	return unidecode.Unidecode(StripDiacritics(s))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
