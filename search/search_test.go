package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

func doc(id, title, body string) Document {
	return Document{ID: id, Kind: "task", Title: title, Body: body, Modified: now.Add(-48 * time.Hour)}
}

func TestRank_ExactTitleWins(t *testing.T) {
	docs := []Document{
		doc("a", "grant report", ""),
		doc("b", "grant report draft notes", ""),
		doc("c", "unrelated", "mentions grant report once"),
	}

	results := Rank("grant report", docs, now)
	require.NotEmpty(t, results)
	assert.Equal(t, "a", results[0].ID)
}

func TestRank_EmptyQueryMatchesNothing(t *testing.T) {
	docs := []Document{doc("a", "anything", "")}
	assert.Empty(t, Rank("", docs, now))
	assert.Empty(t, Rank("   ", docs, now))
}

func TestRank_NonMatchesExcluded(t *testing.T) {
	docs := []Document{doc("a", "coral bleaching survey", "")}
	results := Rank("zzzz", docs, now)
	assert.Empty(t, results)
}

func TestRank_RecencyBreaksNearTies(t *testing.T) {
	older := Document{ID: "old", Title: "weekly sync", Modified: now.Add(-20 * 24 * time.Hour)}
	newer := Document{ID: "new", Title: "weekly sync", Modified: now.Add(-1 * time.Hour)}

	results := Rank("weekly sync", []Document{older, newer}, now)
	require.Len(t, results, 2)
	assert.Equal(t, "new", results[0].ID)
}

func TestRank_BoostPromotesWithinMatches(t *testing.T) {
	plain := Document{ID: "done", Title: "review methods section", Modified: now}
	boosted := Document{ID: "open", Title: "review methods section", Modified: now, Boost: 1}

	results := Rank("review methods", []Document{plain, boosted}, now)
	require.Len(t, results, 2)
	assert.Equal(t, "open", results[0].ID)

	// Boost alone cannot surface a record the text features rejected.
	noText := Document{ID: "x", Title: "something else", Boost: 100, Modified: now}
	assert.Empty(t, Rank("qqqq", []Document{noText}, now))
}

func TestRank_DeterministicTieBreak(t *testing.T) {
	a := doc("a", "reading group", "")
	b := doc("b", "reading group", "")

	results := Rank("reading group", []Document{b, a}, now)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
}

func TestBigramSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, bigramSimilarity("night", "night"))
	assert.Equal(t, 0.0, bigramSimilarity("night", "xyz"))

	// "night" vs "nacht": shared bigram "ht" only.
	sim := bigramSimilarity("night", "nacht")
	assert.InDelta(t, 0.25, sim, 0.001)

	assert.Equal(t, 0.0, bigramSimilarity("a", "ab"))
}

func TestTokenOverlap(t *testing.T) {
	assert.Equal(t, 1.0, tokenOverlap([]string{"grant"}, []string{"grant", "report"}))
	assert.Equal(t, 0.5, tokenOverlap([]string{"grant", "missing"}, []string{"grant"}))
	assert.Equal(t, 0.0, tokenOverlap(nil, []string{"grant"}))
}
