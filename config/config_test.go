package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
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

		ScanBatchSize:          100,
		CandidateRetentionDays: 90,
		MaxPoolSize:            50,
	}
}

func TestLoadBindsEnvironment(t *testing.T) {
	t.Setenv("MATCH_NAME_WEIGHT", "0.5")
	t.Setenv("SCAN_BATCH_SIZE", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.NameWeight)
	assert.Equal(t, 250, cfg.ScanBatchSize)
	// Unset variables fall back to their tagged defaults
	assert.Equal(t, "clover-api", cfg.AppName)
	assert.Equal(t, 0.95, cfg.AutoMergeThreshold)
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	cfg := validConfig()
	cfg.NameGate = 1.5
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.CandidateThreshold = -0.1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	cfg := validConfig()
	cfg.AutoMergeThreshold = 0.7
	cfg.CandidateThreshold = 0.8
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroWeights(t *testing.T) {
	cfg := validConfig()
	cfg.NameWeight = 0
	cfg.AddressWeight = 0
	cfg.PhoneWeight = 0
	cfg.WebsiteWeight = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveBounds(t *testing.T) {
	cfg := validConfig()
	cfg.ScanBatchSize = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.CandidateRetentionDays = -1
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.MaxPoolSize = 0
	assert.Error(t, cfg.Validate())
}
