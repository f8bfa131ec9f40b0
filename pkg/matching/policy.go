package matching

import (
	"github.com/Ramsey-B/clover/config"
)

// Outcome is the classification of a scored pair.
type Outcome string

const (
	OutcomeAutoMerge Outcome = "auto_merge"
	OutcomeCandidate Outcome = "candidate"
	OutcomeNoMatch   Outcome = "no_match"
)

// Decision is the result of classifying one pair.
type Decision struct {
	Outcome    Outcome
	Confidence float64
	Scores     FieldScores
}

// PolicyConfig holds the weights, gates and thresholds of the decision
// policy. Validated at startup via config.Validate.
type PolicyConfig struct {
	NameWeight    float64
	AddressWeight float64
	PhoneWeight   float64
	WebsiteWeight float64

	NameGate    float64
	AddressGate float64
	PhoneGate   float64
	WebsiteGate float64

	AutoMergeThreshold float64
	CandidateThreshold float64
}

// DefaultPolicyConfig returns the stock policy configuration.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		NameWeight:    0.40,
		AddressWeight: 0.20,
		PhoneWeight:   0.20,
		WebsiteWeight: 0.20,

		NameGate:    0.85,
		AddressGate: 0.80,
		PhoneGate:   0.90,
		WebsiteGate: 0.95,

		AutoMergeThreshold: 0.95,
		CandidateThreshold: 0.80,
	}
}

// PolicyConfigFrom extracts the policy configuration from the app config.
func PolicyConfigFrom(cfg config.Config) PolicyConfig {
	return PolicyConfig{
		NameWeight:    cfg.NameWeight,
		AddressWeight: cfg.AddressWeight,
		PhoneWeight:   cfg.PhoneWeight,
		WebsiteWeight: cfg.WebsiteWeight,

		NameGate:    cfg.NameGate,
		AddressGate: cfg.AddressGate,
		PhoneGate:   cfg.PhoneGate,
		WebsiteGate: cfg.WebsiteGate,

		AutoMergeThreshold: cfg.AutoMergeThreshold,
		CandidateThreshold: cfg.CandidateThreshold,
	}
}

// Policy classifies scored pairs into auto-merge, candidate or no-match.
type Policy struct {
	config PolicyConfig
}

func NewPolicy(config PolicyConfig) *Policy {
	return &Policy{config: config}
}

// Decide applies the fast path, per-field gates and renormalized
// weighted aggregation.
//
// Exact contact-detail equality short-circuits the weighted score:
// matching phones or websites identify the same entity even when names
// have drifted (rebrands, franchise naming).
func (p *Policy) Decide(scores FieldScores) Decision {
	if scores.PhoneExact {
		return Decision{Outcome: OutcomeAutoMerge, Confidence: 1.0, Scores: scores}
	}
	if scores.WebsiteExact {
		return Decision{Outcome: OutcomeAutoMerge, Confidence: 0.95, Scores: scores}
	}

	overall := p.overall(scores)

	outcome := OutcomeNoMatch
	switch {
	case overall >= p.config.AutoMergeThreshold:
		outcome = OutcomeAutoMerge
	case overall >= p.config.CandidateThreshold:
		outcome = OutcomeCandidate
	}

	return Decision{Outcome: outcome, Confidence: overall, Scores: scores}
}

// overall aggregates the present fields' gated scores, renormalizing
// weights over the fields both records carry.
func (p *Policy) overall(scores FieldScores) float64 {
	sum := 0.0
	totalWeight := 0.0

	add := func(present bool, score, gate, weight float64) {
		if !present {
			return
		}
		if score < gate {
			score = 0
		}
		sum += weight * score
		totalWeight += weight
	}

	add(scores.NamePresent, scores.Name, p.config.NameGate, p.config.NameWeight)
	add(scores.AddressPresent, scores.Address, p.config.AddressGate, p.config.AddressWeight)
	add(scores.PhonePresent, scores.Phone, p.config.PhoneGate, p.config.PhoneWeight)
	add(scores.WebsitePresent, scores.Website, p.config.WebsiteGate, p.config.WebsiteWeight)

	if totalWeight == 0 {
		return 0
	}
	return sum / totalWeight
}
