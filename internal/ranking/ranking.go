package ranking

import (
	"sort"
	"strings"

	"github.com/angelmondragon/posterminal/pkg/types"
)

const (
	ScoreExact     = 100
	ScorePrefix    = 90
	ScoreSubstring = 70

	// subsequencePoints is awarded per query rune matched in order.
	subsequencePoints = 10
	// maxSubsequenceScore keeps long subsequence matches below substring.
	maxSubsequenceScore = ScoreSubstring - 1

	DefaultLimit = 20
)

// Score rates candidate against query. Comparison is case-insensitive with no
// other normalization.
func Score(query, candidate string) int {
	q := strings.ToLower(query)
	c := strings.ToLower(candidate)
	if q == "" {
		return 0
	}

	switch {
	case c == q:
		return ScoreExact
	case strings.HasPrefix(c, q):
		return ScorePrefix
	case strings.Contains(c, q):
		return ScoreSubstring
	}
	return subsequenceScore([]rune(q), c)
}

func subsequenceScore(query []rune, candidate string) int {
	matched := 0
	for _, r := range candidate {
		if matched == len(query) {
			break
		}
		if r == query[matched] {
			matched++
		}
	}
	if matched < len(query) {
		return 0
	}
	score := matched * subsequencePoints
	if score > maxSubsequenceScore {
		return maxSubsequenceScore
	}
	return score
}

// ProductScore is the best score over the product's name and code.
func ProductScore(query string, p types.Product) int {
	name := Score(query, p.Name)
	code := Score(query, p.Code)
	if code > name {
		return code
	}
	return name
}

// Search returns up to DefaultLimit products matching query.
func Search(query string, corpus []types.Product) []types.Product {
	return SearchN(query, corpus, DefaultLimit)
}

// SearchN ranks corpus by descending score, keeping corpus order for ties,
// and drops non-matches. An empty query yields no results.
func SearchN(query string, corpus []types.Product, limit int) []types.Product {
	if query == "" || len(corpus) == 0 {
		return []types.Product{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	type scored struct {
		product types.Product
		score   int
	}
	hits := make([]scored, 0, len(corpus))
	for _, p := range corpus {
		if s := ProductScore(query, p); s > 0 {
			hits = append(hits, scored{product: p, score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]types.Product, len(hits))
	for i, h := range hits {
		out[i] = h.product
	}
	return out
}
