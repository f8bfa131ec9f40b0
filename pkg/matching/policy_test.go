package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecidePhoneExactFastPath(t *testing.T) {
	policy := NewPolicy(DefaultPolicyConfig())

	// Exact phone match wins even when the names disagree
	decision := policy.Decide(FieldScores{
		NamePresent: true, Name: 0.2,
		PhonePresent: true, Phone: 1.0, PhoneExact: true,
	})

	assert.Equal(t, OutcomeAutoMerge, decision.Outcome)
	assert.Equal(t, 1.0, decision.Confidence)
}

func TestDecideWebsiteExactFastPath(t *testing.T) {
	policy := NewPolicy(DefaultPolicyConfig())

	decision := policy.Decide(FieldScores{
		NamePresent: true, Name: 0.3,
		WebsitePresent: true, Website: 1.0, WebsiteExact: true,
	})

	assert.Equal(t, OutcomeAutoMerge, decision.Outcome)
	assert.Equal(t, 0.95, decision.Confidence)
}

func TestDecideGatesZeroSubThresholdScores(t *testing.T) {
	policy := NewPolicy(DefaultPolicyConfig())

	// 0.75 address is below the 0.80 gate: it contributes nothing but
	// its weight stays in the denominator.
	decision := policy.Decide(FieldScores{
		NamePresent: true, Name: 0.9,
		AddressPresent: true, Address: 0.75,
	})

	// (0.4*0.9 + 0.2*0) / (0.4 + 0.2)
	assert.InDelta(t, 0.6, decision.Confidence, 1e-9)
	assert.Equal(t, OutcomeNoMatch, decision.Outcome)
}

func TestDecideRenormalizesOverPresentFields(t *testing.T) {
	cfg := DefaultPolicyConfig()
	cfg.AddressGate = 0.70
	policy := NewPolicy(cfg)

	decision := policy.Decide(FieldScores{
		NamePresent: true, Name: 0.9,
		AddressPresent: true, Address: 0.75,
	})

	// (0.4*0.9 + 0.2*0.75) / (0.4 + 0.2)
	assert.InDelta(t, 0.85, decision.Confidence, 1e-9)
	assert.Equal(t, OutcomeCandidate, decision.Outcome)
}

func TestDecideNameOnly(t *testing.T) {
	policy := NewPolicy(DefaultPolicyConfig())

	// A single present field carries the full weight
	decision := policy.Decide(FieldScores{NamePresent: true, Name: 0.96})
	assert.InDelta(t, 0.96, decision.Confidence, 1e-9)
	assert.Equal(t, OutcomeAutoMerge, decision.Outcome)

	decision = policy.Decide(FieldScores{NamePresent: true, Name: 0.88})
	assert.Equal(t, OutcomeCandidate, decision.Outcome)

	decision = policy.Decide(FieldScores{NamePresent: true, Name: 0.5})
	assert.Equal(t, OutcomeNoMatch, decision.Outcome)
}

func TestDecideNoPresentFields(t *testing.T) {
	policy := NewPolicy(DefaultPolicyConfig())

	decision := policy.Decide(FieldScores{})
	assert.Equal(t, OutcomeNoMatch, decision.Outcome)
	assert.Equal(t, 0.0, decision.Confidence)
}

func TestDecideThresholdBoundaries(t *testing.T) {
	policy := NewPolicy(DefaultPolicyConfig())

	// Exactly at the candidate threshold counts as a candidate
	decision := policy.Decide(FieldScores{NamePresent: true, Name: 0.95})
	assert.Equal(t, OutcomeAutoMerge, decision.Outcome)

	decision = policy.Decide(FieldScores{NamePresent: true, Name: 0.9})
	assert.Equal(t, OutcomeCandidate, decision.Outcome)
}
