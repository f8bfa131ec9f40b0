package matching

import (
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// FieldScores holds per-field similarity for one company pair. A field
// is present only when both sides carry a non-empty value; absent
// fields score 0 and drop out of the weighted aggregate.
type FieldScores struct {
	Name    float64 `json:"name"`
	Address float64 `json:"address"`
	Phone   float64 `json:"phone"`
	Website float64 `json:"website"`

	NamePresent    bool `json:"-"`
	AddressPresent bool `json:"-"`
	PhonePresent   bool `json:"-"`
	WebsitePresent bool `json:"-"`

	PhoneExact   bool `json:"phone_exact"`
	WebsiteExact bool `json:"website_exact"`
}

// Scorer computes pairwise field similarity between two companies.
type Scorer struct {
	countryCode string
}

// NewScorer creates a scorer. countryCode replaces a national leading
// zero during phone normalization.
func NewScorer(countryCode string) *Scorer {
	return &Scorer{countryCode: countryCode}
}

// IndexEntry builds the normalized blocking keys for a company using
// the scorer's phone normalization settings.
func (s *Scorer) IndexEntry(company *models.Company) *models.MatchIndexEntry {
	return IndexEntry(company, s.countryCode)
}

// Score compares two companies field by field. Symmetric in its inputs.
func (s *Scorer) Score(a, b *models.Company) FieldScores {
	scores := FieldScores{}

	if a.Name != "" && b.Name != "" {
		scores.NamePresent = true
		scores.Name = TokenSortRatio(a.Name, b.Name)
	}

	addrA, addrB := a.Address(), b.Address()
	if addrA != "" && addrB != "" {
		scores.AddressPresent = true
		scores.Address = TokenSortRatio(addrA, addrB)
	}

	phoneA := normalizers.Phone(a.Phone, s.countryCode)
	phoneB := normalizers.Phone(b.Phone, s.countryCode)
	if phoneA != "" && phoneB != "" {
		scores.PhonePresent = true
		if phoneA == phoneB {
			scores.Phone = 1.0
			scores.PhoneExact = true
		}
	}

	siteA := normalizers.Website(a.Website)
	siteB := normalizers.Website(b.Website)
	if siteA != "" && siteB != "" {
		scores.WebsitePresent = true
		if siteA == siteB {
			scores.Website = 1.0
			scores.WebsiteExact = true
		}
	}

	return scores
}

// TokenSortRatio is a token-order-independent fuzzy ratio: both strings
// are normalized, their tokens sorted, then compared by edit distance.
func TokenSortRatio(a, b string) float64 {
	return Ratio(normalizers.TokenSort(a), normalizers.TokenSort(b))
}

// Ratio converts Levenshtein distance to a [0,1] similarity.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}

	distance := LevenshteinDistance(ra, rb)
	return 1 - float64(distance)/float64(longest)
}

// LevenshteinDistance computes edit distance with a two-row table.
func LevenshteinDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
