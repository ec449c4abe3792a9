package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits note text into lowercase terms, dropping stopwords and
// markdown link targets.
type Tokenizer struct {
	stopwords map[string]struct{}
	minLen    int
}

// NewTokenizer creates a Tokenizer that drops terms shorter than minLen runes.
func NewTokenizer(minLen int) *Tokenizer {
	if minLen < 1 {
		minLen = 1
	}
	return &Tokenizer{
		stopwords: defaultStopwords(),
		minLen:    minLen,
	}
}

// Tokenize returns the terms of text in order of appearance.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(stripLinkTargets(text))
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) < t.minLen {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// Terms counts each term of text.
func (t *Tokenizer) Terms(text string) map[string]int {
	terms := make(map[string]int)
	for _, tok := range t.Tokenize(text) {
		terms[tok]++
	}
	return terms
}

// stripLinkTargets keeps the label of [label](target) links and the alias of
// [[target|alias]] links so URLs and paths do not count as words.
func stripLinkTargets(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); i++ {
		switch {
		case strings.HasPrefix(text[i:], "[["):
			end := strings.Index(text[i+2:], "]]")
			if end < 0 {
				b.WriteString(text[i:])
				return b.String()
			}
			link := text[i+2 : i+2+end]
			if pipe := strings.LastIndex(link, "|"); pipe >= 0 {
				link = link[pipe+1:]
			}
			b.WriteString(link)
			i += end + 3
		case strings.HasPrefix(text[i:], "]("):
			end := strings.IndexByte(text[i+2:], ')')
			if end < 0 {
				b.WriteString(text[i:])
				return b.String()
			}
			b.WriteByte(' ')
			i += end + 2
		default:
			b.WriteByte(text[i])
		}
	}
	return b.String()
}

// splitWords splits text into words using unicode word boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

// defaultStopwords returns a set of common English stopwords.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
