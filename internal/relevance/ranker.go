package relevance

import (
	"sort"
	"strings"

	"github.com/civitaslabs/fedwatch/internal/domain"
)

// RankedDocument pairs a document with its computed score.
type RankedDocument struct {
	Document domain.FederalDocument `json:"document"`
	Score    Score                  `json:"score"`
}

// RankOptions tune Rank. Zero value means: default weights, no minimum, no
// truncation.
type RankOptions struct {
	Weights  *Weights
	MinScore int
	Limit    int
}

// Rank scores every document against the profile, drops entries below
// MinScore, sorts descending by total, and truncates to Limit if set. The
// sort is stable, so ties keep the input's relative order — callers should
// pre-sort by recency for sensible tie-breaking.
func (s *Scorer) Rank(docs []domain.FederalDocument, profile Profile, opts RankOptions) []RankedDocument {
	weights := DefaultWeights()
	if opts.Weights != nil {
		weights = *opts.Weights
	}

	ranked := make([]RankedDocument, 0, len(docs))
	for _, doc := range docs {
		score := s.Score(doc, profile, weights)
		if score.Total < opts.MinScore {
			continue
		}
		ranked = append(ranked, RankedDocument{Document: doc, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score.Total > ranked[j].Score.Total
	})

	if opts.Limit > 0 && len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}
	return ranked
}

// KeywordCount is an aggregated interest-hit count across a document corpus.
type KeywordCount struct {
	Interest string `json:"interest"`
	Count    int    `json:"count"`
}

// TopKeywords counts, per document, at most one taxonomy-interest hit (the
// first matching keyword wins per interest, so multi-keyword interests are
// not double-counted), aggregates across the corpus, and returns the top N.
// Used for interest suggestions, not scoring.
func (s *Scorer) TopKeywords(docs []domain.FederalDocument, limit int) []KeywordCount {
	counts := map[string]int{}
	interests := s.taxonomy.Interests()

	for _, doc := range docs {
		haystack := searchableText(doc)
		for _, interest := range interests {
			for _, keyword := range s.taxonomy.Keywords(interest) {
				if strings.Contains(haystack, keyword) {
					counts[interest]++
					break
				}
			}
		}
	}

	ranked := make([]KeywordCount, 0, len(counts))
	for interest, count := range counts {
		ranked = append(ranked, KeywordCount{Interest: interest, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Interest < ranked[j].Interest
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// QuickRelevance is a cheap 0–1 signal for filtering paths that do not need
// the full breakdown: the fraction of interests with at least one keyword
// hit, over min(3, len(interests)), capped at 1.
func (s *Scorer) QuickRelevance(doc domain.FederalDocument, interests []string) float64 {
	if len(interests) == 0 {
		return 0
	}

	haystack := searchableText(doc)
	hits := 0
	for _, interest := range interests {
		for _, keyword := range s.taxonomy.Keywords(interest) {
			if strings.Contains(haystack, keyword) {
				hits++
				break
			}
		}
	}

	denom := len(interests)
	if denom > 3 {
		denom = 3
	}
	score := float64(hits) / float64(denom)
	if score > 1 {
		return 1
	}
	return score
}
