package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptguard/promptguard/pkg/types"
)

func TestAggregator_OverallScoreIsMax(t *testing.T) {
	agg := NewAggregator().Aggregate([]types.DetectorOutcome{
		{
			DetectorName: "prompt_injection",
			Score:        0.95,
			Status:       types.StatusOK,
			Findings: []types.Finding{
				{Category: types.CategoryPromptInjection, Confidence: 0.95},
			},
		},
		{
			DetectorName: "jailbreak",
			Score:        0.4,
			Status:       types.StatusOK,
			Findings: []types.Finding{
				{Category: types.CategoryJailbreak, Confidence: 0.4},
			},
		},
	})

	assert.InDelta(t, 0.95, agg.OverallRiskScore, 0.001)
	assert.InDelta(t, 0.95, agg.CategoryScores[types.CategoryPromptInjection], 0.001)
	assert.InDelta(t, 0.4, agg.CategoryScores[types.CategoryJailbreak], 0.001)
	assert.Equal(t, types.CategoryPromptInjection, agg.HighestCategory())
	assert.Len(t, agg.Threats, 2)
}

func TestAggregator_RoutesFindingsByCategory(t *testing.T) {
	agg := NewAggregator().Aggregate([]types.DetectorOutcome{
		{
			DetectorName: "pii",
			Score:        0.9,
			Status:       types.StatusOK,
			Findings: []types.Finding{
				{Category: types.CategoryPII, EntityType: "EMAIL", Confidence: 0.9},
			},
		},
		{
			DetectorName: "secrets",
			Score:        1.0,
			Status:       types.StatusOK,
			Findings: []types.Finding{
				{Category: types.CategorySecret, MatchedPattern: "openai_api_key"},
			},
		},
	})

	assert.Len(t, agg.PIIFindings, 1)
	assert.Len(t, agg.SecretFindings, 1)
	assert.Empty(t, agg.Threats)
	assert.Equal(t, 1.0, agg.CategoryScores[types.CategorySecret])
	assert.Equal(t, types.CategorySecret, agg.HighestCategory())
}

func TestAggregator_DegradedFindingsNeverFabricateSecrets(t *testing.T) {
	agg := NewAggregator().Aggregate([]types.DetectorOutcome{
		{
			DetectorName: "secrets",
			Score:        1.0,
			Status:       types.StatusTimeout,
			Findings: []types.Finding{
				{
					Category:       types.CategorySecret,
					MatchedPattern: types.DegradedPattern,
					Severity:       types.SeverityHigh,
				},
			},
		},
	})

	// A degraded fail-closed secrets detector escalates the score but must
	// not be mistaken for an actual secret hit.
	assert.Empty(t, agg.SecretFindings)
	require.Len(t, agg.Threats, 1)
	assert.Equal(t, 1.0, agg.OverallRiskScore)
	assert.Equal(t, types.StatusTimeout, agg.Statuses["secrets"])
}

func TestAggregator_PIIConfidenceFeedsOverallScore(t *testing.T) {
	agg := NewAggregator().Aggregate([]types.DetectorOutcome{
		{
			DetectorName: "pii",
			Score:        0.8,
			Status:       types.StatusOK,
			Findings: []types.Finding{
				{Category: types.CategoryPII, EntityType: "SSN", Confidence: 0.8},
			},
		},
		{
			DetectorName: "prompt_injection",
			Score:        0.3,
			Status:       types.StatusOK,
		},
	})

	assert.InDelta(t, 0.8, agg.OverallRiskScore, 0.001)
	assert.InDelta(t, 0.8, agg.CategoryScores[types.CategoryPII], 0.001)
	assert.Len(t, agg.PIIFindings, 1)
}

func TestAggregator_DegradedFailClosedEscalatesOverall(t *testing.T) {
	agg := NewAggregator().Aggregate([]types.DetectorOutcome{
		{
			DetectorName: "pii",
			Score:        1.0,
			Status:       types.StatusError,
			Findings: []types.Finding{
				{Category: types.CategoryPII, MatchedPattern: types.DegradedPattern},
			},
		},
	})

	assert.Equal(t, 1.0, agg.OverallRiskScore)
}

func TestAggregator_ScoresClamped(t *testing.T) {
	agg := NewAggregator().Aggregate([]types.DetectorOutcome{
		{
			DetectorName: "prompt_injection",
			Score:        1.7,
			Status:       types.StatusOK,
			Findings: []types.Finding{
				{Category: types.CategoryPromptInjection},
			},
		},
	})

	assert.Equal(t, 1.0, agg.OverallRiskScore)
}

func TestAggregator_EmptyOutcomes(t *testing.T) {
	agg := NewAggregator().Aggregate(nil)

	assert.Zero(t, agg.OverallRiskScore)
	assert.Empty(t, agg.Threats)
	assert.Empty(t, agg.PIIFindings)
	assert.Empty(t, agg.SecretFindings)
}
