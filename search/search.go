// Package search ranks ScholarOS records against a free-text query with a
// feature-weighted linear score. It is a heuristic scorer over in-memory
// candidates, not a search engine: no index is built and every call is a
// pure function of its inputs.
package search

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// Document is the searchable projection of a record.
type Document struct {
	ID    string
	Kind  string
	Title string
	Body  string
	// Modified feeds the recency feature.
	Modified time.Time
	// Boost lets callers promote records by status (e.g. open tasks).
	Boost float64
}

// Result pairs a document with its score.
type Result struct {
	Document
	Score float64
}

// Weights holds the linear combination coefficients. The defaults were tuned
// by hand against the seeded demo workspace; they are exported so a caller
// can re-balance per surface (the command palette weighs titles higher than
// the archive browser does).
type Weights struct {
	ExactTitle   float64
	TitlePrefix  float64
	TokenOverlap float64
	Bigram       float64
	Recency      float64
	Boost        float64
}

// DefaultWeights is the standard profile.
var DefaultWeights = Weights{
	ExactTitle:   10,
	TitlePrefix:  4,
	TokenOverlap: 3,
	Bigram:       2,
	Recency:      1,
	Boost:        1,
}

// recencyWindow bounds the recency feature: anything older contributes 0,
// a just-modified record contributes 1.
const recencyWindow = 30 * 24 * time.Hour

// Rank scores all documents against the query and returns those with a
// positive score, ordered by score descending with ID as the stable
// tie-break. An empty query matches nothing.
func Rank(query string, docs []Document, now time.Time) []Result {
	return RankWeighted(query, docs, now, DefaultWeights)
}

// RankWeighted is Rank with an explicit weight profile.
func RankWeighted(query string, docs []Document, now time.Time, w Weights) []Result {
	query = normalize(query)
	if query == "" {
		return nil
	}

	var results []Result
	for _, doc := range docs {
		score := score(query, doc, now, w)
		if score > 0 {
			results = append(results, Result{Document: doc, Score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results
}

func score(query string, doc Document, now time.Time, w Weights) float64 {
	title := normalize(doc.Title)
	body := normalize(doc.Body)

	var s float64
	if title == query {
		s += w.ExactTitle
	} else if strings.HasPrefix(title, query) {
		s += w.TitlePrefix
	}

	s += w.TokenOverlap * tokenOverlap(tokenize(query), tokenize(title+" "+body))
	s += w.Bigram * bigramSimilarity(query, title)

	// Text features gate the rest: recency and boost only differentiate
	// records that matched at all, they never surface a non-match.
	if s == 0 {
		return 0
	}

	if age := now.Sub(doc.Modified); age >= 0 && age < recencyWindow {
		s += w.Recency * (1 - float64(age)/float64(recencyWindow))
	}
	s += w.Boost * doc.Boost
	return s
}

// tokenOverlap is the fraction of query tokens present in the document
// tokens.
func tokenOverlap(queryTokens, docTokens []string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	set := make(map[string]bool, len(docTokens))
	for _, t := range docTokens {
		set[t] = true
	}
	matched := 0
	for _, t := range queryTokens {
		if set[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

// bigramSimilarity is the Sorensen-Dice coefficient over character bigrams.
func bigramSimilarity(a, b string) float64 {
	ba, bb := bigrams(a), bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}
	counts := make(map[string]int, len(ba))
	for _, g := range ba {
		counts[g]++
	}
	overlap := 0
	for _, g := range bb {
		if counts[g] > 0 {
			counts[g]--
			overlap++
		}
	}
	return 2 * float64(overlap) / float64(len(ba)+len(bb))
}

func bigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	grams := make([]string, 0, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		grams = append(grams, string(runes[i:i+2]))
	}
	return grams
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
