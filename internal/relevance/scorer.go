package relevance

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/civitaslabs/fedwatch/internal/domain"
)

// Profile is a user's relevance profile, rebuilt from persisted preferences
// on every sync pass. It is never stored.
type Profile struct {
	PolicyInterests     []string
	FollowedAgencyIDs   []int64
	FollowedAgencySlugs []string
	State               string
}

// NewProfile assembles a scoring profile from persisted preferences. The
// followed slugs are extended with the slugs the taxonomy associates with the
// interests, so an interest implies following its agencies.
func NewProfile(taxonomy Taxonomy, interests []string, agencyIDs []int64, agencySlugs []string, state string) Profile {
	slugs := append([]string(nil), agencySlugs...)
	seen := make(map[string]struct{}, len(slugs))
	for _, slug := range slugs {
		seen[slug] = struct{}{}
	}
	for _, slug := range taxonomy.SlugsForInterests(interests) {
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		slugs = append(slugs, slug)
	}

	return Profile{
		PolicyInterests:     interests,
		FollowedAgencyIDs:   agencyIDs,
		FollowedAgencySlugs: slugs,
		State:               state,
	}
}

// Weights distribute the four sub-scores into the total. They must sum to 1
// for totals to stay within [0,100]; Validate enforces that at config load,
// Score itself does not.
type Weights struct {
	Keyword float64 `yaml:"keyword"`
	Agency  float64 `yaml:"agency"`
	Type    float64 `yaml:"type"`
	Urgency float64 `yaml:"urgency"`
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{Keyword: 0.40, Agency: 0.30, Type: 0.15, Urgency: 0.15}
}

// Validate checks the weights sum to 1 within a small tolerance.
func (w Weights) Validate() error {
	sum := w.Keyword + w.Agency + w.Type + w.Urgency
	if math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}

// Score is the result of scoring one (document, profile) pair. Sub-scores are
// pre-weighting values on a 0–100 scale (type may exceed 100 for significant
// documents). Total is the weighted, capped, rounded aggregate.
type Score struct {
	Total           int      `json:"total"`
	KeywordScore    float64  `json:"keyword_score"`
	AgencyScore     float64  `json:"agency_score"`
	TypeScore       float64  `json:"type_score"`
	UrgencyScore    float64  `json:"urgency_score"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
	MatchedAgencies []string `json:"matched_agencies,omitempty"`
	Reason          string   `json:"reason"`
}

const (
	keywordPoints = 20
	subScoreCap   = 100
)

// Scorer computes relevance scores. It is safe for concurrent use; the only
// state is the immutable taxonomy and an injected clock.
type Scorer struct {
	taxonomy Taxonomy
	now      func() time.Time
}

// NewScorer builds a scorer over the given taxonomy using the wall clock.
func NewScorer(taxonomy Taxonomy) *Scorer {
	return &Scorer{taxonomy: taxonomy, now: time.Now}
}

// NewScorerAt builds a scorer with an injected clock. Urgency depends on
// "now", so tests pin it here.
func NewScorerAt(taxonomy Taxonomy, now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{taxonomy: taxonomy, now: now}
}

// Score evaluates a document against a profile with the given weights.
// Deterministic for a fixed clock; no I/O.
func (s *Scorer) Score(doc domain.FederalDocument, profile Profile, weights Weights) Score {
	now := s.now()

	keywordScore, matchedKeywords := s.keywordScore(doc, profile)
	agencyScore, matchedAgencies := agencyScore(doc, profile)
	typeScore := typeScore(doc)
	urgencyScore := urgencyScore(doc, now)

	weighted := weights.Keyword*keywordScore +
		weights.Agency*agencyScore +
		weights.Type*typeScore +
		weights.Urgency*urgencyScore

	return Score{
		Total:           int(math.Round(math.Min(subScoreCap, weighted))),
		KeywordScore:    keywordScore,
		AgencyScore:     agencyScore,
		TypeScore:       typeScore,
		UrgencyScore:    urgencyScore,
		MatchedKeywords: matchedKeywords,
		MatchedAgencies: matchedAgencies,
		Reason:          buildReason(doc, matchedKeywords, matchedAgencies, urgencyScore, now),
	}
}

// searchableText flattens the fields keyword matching runs over into one
// lowercase haystack.
func searchableText(doc domain.FederalDocument) string {
	parts := []string{doc.Title, doc.Abstract, doc.Action}
	parts = append(parts, doc.Topics...)
	for _, agency := range doc.Agencies {
		parts = append(parts, agency.Name)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// keywordScore awards 20 points per distinct matched keyword across all of
// the profile's interests, capped at 100. A document matching five or more
// keywords saturates regardless of interest count.
func (s *Scorer) keywordScore(doc domain.FederalDocument, profile Profile) (float64, []string) {
	if len(profile.PolicyInterests) == 0 {
		return 0, nil
	}

	haystack := searchableText(doc)
	var score float64
	var matched []string
	seen := map[string]struct{}{}

	for _, interest := range profile.PolicyInterests {
		for _, keyword := range s.taxonomy.Keywords(interest) {
			if !strings.Contains(haystack, keyword) {
				continue
			}
			if _, dup := seen[keyword]; dup {
				continue
			}
			seen[keyword] = struct{}{}
			matched = append(matched, keyword)
			if score < subScoreCap {
				score = math.Min(subScoreCap, score+keywordPoints)
			}
		}
	}
	return score, matched
}

// agencyScore gives full credit for a direct follow of any of the document's
// agencies (id or slug, first match wins) and half credit when only a parent
// agency is followed.
func agencyScore(doc domain.FederalDocument, profile Profile) (float64, []string) {
	followedIDs := make(map[int64]struct{}, len(profile.FollowedAgencyIDs))
	for _, id := range profile.FollowedAgencyIDs {
		followedIDs[id] = struct{}{}
	}
	followedSlugs := make(map[string]struct{}, len(profile.FollowedAgencySlugs))
	for _, slug := range profile.FollowedAgencySlugs {
		followedSlugs[strings.ToLower(slug)] = struct{}{}
	}

	for _, agency := range doc.Agencies {
		if _, ok := followedIDs[agency.ID]; ok {
			return 100, []string{agency.Name}
		}
		if _, ok := followedSlugs[strings.ToLower(agency.Slug)]; ok {
			return 100, []string{agency.Name}
		}
	}

	for _, agency := range doc.Agencies {
		if agency.ParentID == nil {
			continue
		}
		if _, ok := followedIDs[*agency.ParentID]; ok {
			return 50, []string{agency.Name}
		}
	}

	return 0, nil
}

// typeScore ranks document categories by general importance, with a flat
// bonus for registry-flagged significant actions. The sum is intentionally
// not capped before weighting: a significant PRESDOCU scores 110.
func typeScore(doc domain.FederalDocument) float64 {
	var score float64
	switch doc.Type {
	case domain.TypePresidential:
		score = 90
	case domain.TypeRule:
		score = 80
	case domain.TypeProposedRule:
		score = 70
	case domain.TypeNotice:
		score = 40
	default:
		score = 30
	}
	if doc.Significant {
		score += 20
	}
	return score
}

// urgencyScore takes the stronger of two signals: proximity of the comment
// deadline and recency of publication. The deadline signal is computed first,
// so when both apply it wins unless recency is strictly larger.
func urgencyScore(doc domain.FederalDocument, now time.Time) float64 {
	var score float64

	if doc.CommentsCloseOn != nil {
		days := daysUntil(now, *doc.CommentsCloseOn)
		switch {
		case days >= 0 && days <= 7:
			score = 100
		case days > 7 && days <= 30:
			score = 60
		case days > 30:
			score = 30
		}
	}

	if !doc.PublicationDate.IsZero() {
		age := daysSince(now, doc.PublicationDate)
		switch {
		case age == 0:
			score = math.Max(score, 80)
		case age > 0 && age <= 7:
			score = math.Max(score, 50)
		}
	}

	return score
}

func daysUntil(now, t time.Time) int {
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}

func daysSince(now, t time.Time) int {
	return int(math.Floor(now.Sub(t).Hours() / 24))
}

func buildReason(doc domain.FederalDocument, keywords, agencies []string, urgency float64, now time.Time) string {
	var parts []string
	if len(keywords) > 0 {
		parts = append(parts, fmt.Sprintf("matches your interests: %s", strings.Join(keywords, ", ")))
	}
	if len(agencies) > 0 {
		parts = append(parts, fmt.Sprintf("from followed agency %s", agencies[0]))
	}
	if doc.Significant {
		parts = append(parts, "significant regulatory action")
	}
	if doc.CommentsCloseOn != nil && urgency >= 100 {
		parts = append(parts, fmt.Sprintf("comment period closes in %d days", daysUntil(now, *doc.CommentsCloseOn)))
	}
	if len(parts) == 0 {
		return "recently published regulatory document"
	}
	return strings.Join(parts, "; ")
}
