// Package nlp normalizes extracted text and recognizes named entities in it.
package nlp

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// maxStemPasses bounds the fixed-point iteration in stem.
const maxStemPasses = 8

// Normalizer folds text into a lowercase, punctuation-free, stop-word-free
// sequence of stems. It is stateless and safe for concurrent use.
type Normalizer struct {
	stopWords wordSet
}

func NewNormalizer() *Normalizer {
	return &Normalizer{stopWords: englishStopWords}
}

// Normalize lowercases text, keeps only ASCII letters, digits and
// whitespace, drops stop words and stems the remaining tokens. Tokens keep
// their original order and are joined by single spaces.
//
// Normalize(Normalize(t)) == Normalize(t) for every t.
func (n *Normalizer) Normalize(text string) string {
	tokens := strings.Fields(strip(text))
	out := tokens[:0]
	for _, tok := range tokens {
		if n.stopWords.has(tok) {
			continue
		}
		stemmed := stem(tok)
		if stemmed == "" || n.stopWords.has(stemmed) {
			continue
		}
		out = append(out, stemmed)
	}
	return strings.Join(out, " ")
}

func strip(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// stem applies the Snowball English stemmer until the token stops changing,
// so stemming an already-stemmed token is a no-op.
func stem(tok string) string {
	for i := 0; i < maxStemPasses; i++ {
		next := english.Stem(tok, true)
		if next == tok {
			break
		}
		tok = next
	}
	return tok
}
