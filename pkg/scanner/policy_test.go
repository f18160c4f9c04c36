package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/promptguard/promptguard/pkg/config"
	"github.com/promptguard/promptguard/pkg/types"
)

func testPolicy() *config.PolicyConfig {
	p := &config.PolicyConfig{}
	p.ApplyDefaults()
	return p
}

func TestPolicyEngine_Decide(t *testing.T) {
	engine := NewPolicyEngine()

	tests := []struct {
		name           string
		policy         func() *config.PolicyConfig
		agg            *Aggregate
		expectedAction types.Action
		expectedReason string
	}{
		{
			name:   "secret always blocks",
			policy: testPolicy,
			agg: &Aggregate{
				OverallRiskScore: 0.2,
				SecretFindings:   []types.Finding{{Category: types.CategorySecret}},
				CategoryScores:   map[types.Category]float64{types.CategorySecret: 1.0},
			},
			expectedAction: types.ActionBlock,
			expectedReason: "secret_detected",
		},
		{
			name:   "score above block threshold",
			policy: testPolicy,
			agg: &Aggregate{
				OverallRiskScore: 0.95,
				CategoryScores:   map[types.Category]float64{types.CategoryPromptInjection: 0.95},
			},
			expectedAction: types.ActionBlock,
			expectedReason: "prompt_injection",
		},
		{
			name: "pii with block action",
			policy: func() *config.PolicyConfig {
				p := testPolicy()
				p.PIIAction = config.PIIActionBlock
				return p
			},
			agg: &Aggregate{
				OverallRiskScore: 0.5,
				PIIFindings:      []types.Finding{{Category: types.CategoryPII}},
				CategoryScores:   map[types.Category]float64{types.CategoryPII: 0.5},
			},
			expectedAction: types.ActionBlock,
			expectedReason: "pii_policy_block",
		},
		{
			name:   "pii with mask action filters",
			policy: testPolicy,
			agg: &Aggregate{
				OverallRiskScore: 0.2,
				PIIFindings:      []types.Finding{{Category: types.CategoryPII}},
				CategoryScores:   map[types.Category]float64{types.CategoryPII: 0.2},
			},
			expectedAction: types.ActionFilter,
			expectedReason: "pii_masked",
		},
		{
			name: "pii with log action stays allow",
			policy: func() *config.PolicyConfig {
				p := testPolicy()
				p.PIIAction = config.PIIActionLog
				return p
			},
			agg: &Aggregate{
				OverallRiskScore: 0.2,
				PIIFindings:      []types.Finding{{Category: types.CategoryPII}},
				CategoryScores:   map[types.Category]float64{types.CategoryPII: 0.2},
			},
			expectedAction: types.ActionAllow,
			expectedReason: "no_threats_detected",
		},
		{
			name:   "score in filter band",
			policy: testPolicy,
			agg: &Aggregate{
				OverallRiskScore: 0.7,
				CategoryScores:   map[types.Category]float64{types.CategoryJailbreak: 0.7},
			},
			expectedAction: types.ActionFilter,
			expectedReason: "jailbreak",
		},
		{
			name:   "score in warn band",
			policy: testPolicy,
			agg: &Aggregate{
				OverallRiskScore: 0.4,
				CategoryScores:   map[types.Category]float64{types.CategoryContentPolicy: 0.4},
			},
			expectedAction: types.ActionWarn,
			expectedReason: "content_policy",
		},
		{
			name:   "clean request allows",
			policy: testPolicy,
			agg: &Aggregate{
				CategoryScores: map[types.Category]float64{},
			},
			expectedAction: types.ActionAllow,
			expectedReason: "no_threats_detected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := engine.Decide(tt.policy(), tt.agg)
			assert.Equal(t, tt.expectedAction, d.Action)
			assert.Equal(t, tt.expectedReason, d.Reason)
			if tt.expectedAction == types.ActionFilter {
				assert.Equal(t, []string{"pii_masking"}, d.Transformations)
			} else {
				assert.Empty(t, d.Transformations)
			}
		})
	}
}

func TestPolicyEngine_ThresholdBoundariesInclusive(t *testing.T) {
	engine := NewPolicyEngine()
	p := testPolicy()

	agg := func(score float64) *Aggregate {
		return &Aggregate{
			OverallRiskScore: score,
			CategoryScores:   map[types.Category]float64{types.CategoryPromptInjection: score},
		}
	}

	assert.Equal(t, types.ActionBlock, engine.Decide(p, agg(p.BlockThreshold)).Action)
	assert.Equal(t, types.ActionFilter, engine.Decide(p, agg(p.FilterThreshold)).Action)
	assert.Equal(t, types.ActionWarn, engine.Decide(p, agg(p.WarnThreshold)).Action)
}

func TestPolicyEngine_HighScoreWithMaskablePII(t *testing.T) {
	engine := NewPolicyEngine()

	// Filter-band score plus PII: one filter action carrying the mask.
	d := engine.Decide(testPolicy(), &Aggregate{
		OverallRiskScore: 0.7,
		PIIFindings:      []types.Finding{{Category: types.CategoryPII}},
		CategoryScores: map[types.Category]float64{
			types.CategoryJailbreak: 0.7,
			types.CategoryPII:       0.3,
		},
	})
	assert.Equal(t, types.ActionFilter, d.Action)
	assert.Equal(t, "jailbreak", d.Reason)
	assert.Equal(t, []string{"pii_masking"}, d.Transformations)
}
