package relevance

import (
	"sort"
	"strings"
)

// Taxonomy maps broad policy interests to concrete search keywords and to the
// agencies most likely to publish on them. It is an immutable value built once
// at startup and passed to whatever needs it; there is no package-level
// mutable state.
type Taxonomy struct {
	keywords map[string][]string
	agencies map[string][]string
}

// NewTaxonomy builds a taxonomy from explicit mappings. Interest keys are
// normalized to lowercase.
func NewTaxonomy(keywords map[string][]string, agencies map[string][]string) Taxonomy {
	t := Taxonomy{
		keywords: make(map[string][]string, len(keywords)),
		agencies: make(map[string][]string, len(agencies)),
	}
	for interest, kws := range keywords {
		lowered := make([]string, len(kws))
		for i, kw := range kws {
			lowered[i] = strings.ToLower(kw)
		}
		t.keywords[strings.ToLower(interest)] = lowered
	}
	for interest, slugs := range agencies {
		t.agencies[strings.ToLower(interest)] = append([]string(nil), slugs...)
	}
	return t
}

// Keywords returns the keyword set for an interest. Unmapped interests fall
// back to the interest string itself, so free-form interests still match.
func (t Taxonomy) Keywords(interest string) []string {
	key := strings.ToLower(strings.TrimSpace(interest))
	if kws, ok := t.keywords[key]; ok {
		return kws
	}
	if key == "" {
		return nil
	}
	return []string{key}
}

// AgencySlugs returns the agency slugs associated with an interest, or nil
// for unmapped interests.
func (t Taxonomy) AgencySlugs(interest string) []string {
	return t.agencies[strings.ToLower(strings.TrimSpace(interest))]
}

// Interests returns all mapped interests in sorted order. Deterministic
// iteration matters for keyword extraction.
func (t Taxonomy) Interests() []string {
	interests := make([]string, 0, len(t.keywords))
	for interest := range t.keywords {
		interests = append(interests, interest)
	}
	sort.Strings(interests)
	return interests
}

// SlugsForInterests maps a list of user interests through the interest→agency
// table, deduplicated, preserving first-seen order.
func (t Taxonomy) SlugsForInterests(interests []string) []string {
	var slugs []string
	seen := map[string]struct{}{}
	for _, interest := range interests {
		for _, slug := range t.AgencySlugs(interest) {
			if _, ok := seen[slug]; ok {
				continue
			}
			seen[slug] = struct{}{}
			slugs = append(slugs, slug)
		}
	}
	return slugs
}

// DefaultTaxonomy covers the policy interests the product exposes. Keywords
// are matched as lowercase substrings against document text.
func DefaultTaxonomy() Taxonomy {
	return NewTaxonomy(map[string][]string{
		"climate": {
			"climate", "emissions", "greenhouse gas", "carbon", "clean air",
			"global warming", "methane",
		},
		"environment": {
			"environment", "pollution", "clean water", "wildlife", "conservation",
			"endangered species", "hazardous waste",
		},
		"healthcare": {
			"health", "medicare", "medicaid", "drug", "medical device",
			"hospital", "insurance coverage", "public health",
		},
		"economy": {
			"economy", "economic", "trade", "tariff", "small business",
			"consumer protection", "banking", "securities",
		},
		"taxes": {
			"tax", "internal revenue", "taxpayer", "tax credit", "deduction",
		},
		"education": {
			"education", "student", "school", "university", "student loan",
			"title ix",
		},
		"immigration": {
			"immigration", "visa", "asylum", "border", "naturalization",
			"citizenship",
		},
		"technology": {
			"technology", "artificial intelligence", "cybersecurity", "broadband",
			"data privacy", "telecommunications", "spectrum",
		},
		"energy": {
			"energy", "electricity", "renewable", "solar", "wind power",
			"natural gas", "pipeline", "nuclear",
		},
		"defense": {
			"defense", "military", "veterans", "national security",
			"armed forces", "export control",
		},
		"agriculture": {
			"agriculture", "farm", "crop", "livestock", "food safety",
			"rural development",
		},
		"labor": {
			"labor", "worker", "wage", "workplace safety", "overtime",
			"collective bargaining", "employment",
		},
		"housing": {
			"housing", "mortgage", "rental", "homeless", "fair housing",
			"urban development",
		},
		"transportation": {
			"transportation", "highway", "aviation", "railroad", "transit",
			"motor vehicle", "pipeline safety",
		},
		"civil rights": {
			"civil rights", "discrimination", "voting", "disability",
			"equal opportunity", "accessibility",
		},
	}, map[string][]string{
		"climate":        {"environmental-protection-agency", "energy-department"},
		"environment":    {"environmental-protection-agency", "interior-department", "fish-and-wildlife-service"},
		"healthcare":     {"health-and-human-services-department", "food-and-drug-administration", "centers-for-medicare-medicaid-services"},
		"economy":        {"commerce-department", "federal-reserve-system", "securities-and-exchange-commission", "consumer-financial-protection-bureau"},
		"taxes":          {"internal-revenue-service", "treasury-department"},
		"education":      {"education-department"},
		"immigration":    {"homeland-security-department", "u-s-citizenship-and-immigration-services", "justice-department"},
		"technology":     {"federal-communications-commission", "commerce-department", "national-institute-of-standards-and-technology"},
		"energy":         {"energy-department", "federal-energy-regulatory-commission", "nuclear-regulatory-commission"},
		"defense":        {"defense-department", "veterans-affairs-department"},
		"agriculture":    {"agriculture-department", "food-and-drug-administration"},
		"labor":          {"labor-department", "occupational-safety-and-health-administration", "national-labor-relations-board"},
		"housing":        {"housing-and-urban-development-department", "federal-housing-finance-agency"},
		"transportation": {"transportation-department", "federal-aviation-administration", "national-highway-traffic-safety-administration"},
		"civil rights":   {"justice-department", "equal-employment-opportunity-commission"},
	})
}
