// Package textnorm provides text cleaning, tokenization, and a lexical
// (token set overlap) similarity used by the assessment and pathway engines.
// All functions are pure and safe for concurrent use.
package textnorm

import (
	"regexp"
	"sort"
	"strings"
)

var (
	urlRe      = regexp.MustCompile(`http\S+|www\.\S+`)
	emailRe    = regexp.MustCompile(`\S+@\S+`)
	unwantedRe = regexp.MustCompile(`[^\w\s.,!?-]`)
	wordRe     = regexp.MustCompile(`\b\w+\b`)
)

// stopWords is a basic English stop-word set used for keyword extraction.
// LexicalSimilarity deliberately does NOT remove stop words.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true,
	"was": true, "are": true, "were": true, "be": true, "been": true,
	"being": true, "have": true, "has": true, "had": true, "do": true,
	"does": true, "did": true, "will": true, "would": true, "should": true,
	"could": true, "may": true, "might": true, "must": true, "can": true,
	"this": true, "that": true, "these": true, "those": true, "i": true,
	"you": true, "he": true, "she": true, "it": true, "we": true, "they": true,
}

// Clean lower-cases text, strips URLs, email-like tokens, and characters
// outside a conservative allow-list (word chars, whitespace, ".,!?-"), and
// collapses whitespace runs. Clean is idempotent.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)
	text = urlRe.ReplaceAllString(text, "")
	text = emailRe.ReplaceAllString(text, "")
	text = unwantedRe.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// Tokenize cleans text and extracts maximal word runs.
func Tokenize(text string) []string {
	return wordRe.FindAllString(Clean(text), -1)
}

// RemoveStopwords filters common English stop words from a token list.
func RemoveStopwords(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !stopWords[strings.ToLower(tok)] {
			out = append(out, tok)
		}
	}
	return out
}

// Keyword is a term with its occurrence count.
type Keyword struct {
	Term  string
	Count int
}

// Keywords returns the topN most frequent non-stop-word tokens, most
// frequent first. Ties are broken alphabetically for determinism.
func Keywords(text string, topN int) []Keyword {
	tokens := RemoveStopwords(Tokenize(text))
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	kws := make([]Keyword, 0, len(counts))
	for term, n := range counts {
		kws = append(kws, Keyword{Term: term, Count: n})
	}
	sort.Slice(kws, func(i, j int) bool {
		if kws[i].Count != kws[j].Count {
			return kws[i].Count > kws[j].Count
		}
		return kws[i].Term < kws[j].Term
	})
	if topN > 0 && len(kws) > topN {
		kws = kws[:topN]
	}
	return kws
}

// LexicalSimilarity is the Jaccard index over the token sets of a and b.
// Returns 0 when either token set is empty (including both empty).
func LexicalSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range Tokenize(text) {
		set[tok] = true
	}
	return set
}
