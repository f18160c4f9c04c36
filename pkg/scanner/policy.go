package scanner

import (
	"github.com/promptguard/promptguard/pkg/config"
	"github.com/promptguard/promptguard/pkg/types"
)

// Decision is the outcome of applying the configured policy to an
// aggregated scan. Transformations is non-empty exactly when the action
// is filter; the masking transformer always runs for a filter decision.
type Decision struct {
	Action          types.Action
	Reason          string
	Transformations []string
}

// PolicyEngine maps aggregated detector results onto an action. Rules are
// evaluated strictly in order; the first match wins.
type PolicyEngine struct{}

func NewPolicyEngine() *PolicyEngine {
	return &PolicyEngine{}
}

// Decide applies the policy table:
//
//  1. any secret finding               -> block
//  2. overall score >= block threshold -> block
//  3. PII found, pii_action=block      -> block
//  4. overall score >= filter threshold
//     or PII found with pii_action=mask -> filter (masking transformer runs)
//  5. overall score >= warn threshold  -> warn
//  6. otherwise                        -> allow
func (p *PolicyEngine) Decide(policy *config.PolicyConfig, agg *Aggregate) Decision {
	hasPII := len(agg.PIIFindings) > 0

	if len(agg.SecretFindings) > 0 {
		return Decision{Action: types.ActionBlock, Reason: "secret_detected"}
	}
	if agg.OverallRiskScore >= policy.BlockThreshold {
		return Decision{Action: types.ActionBlock, Reason: string(agg.HighestCategory())}
	}
	if hasPII && policy.PIIAction == config.PIIActionBlock {
		return Decision{Action: types.ActionBlock, Reason: "pii_policy_block"}
	}
	if agg.OverallRiskScore >= policy.FilterThreshold || (hasPII && policy.PIIAction == config.PIIActionMask) {
		d := Decision{
			Action:          types.ActionFilter,
			Reason:          string(agg.HighestCategory()),
			Transformations: []string{"pii_masking"},
		}
		if hasPII && policy.PIIAction == config.PIIActionMask && agg.OverallRiskScore < policy.FilterThreshold {
			d.Reason = "pii_masked"
		}
		return d
	}
	if agg.OverallRiskScore >= policy.WarnThreshold {
		return Decision{Action: types.ActionWarn, Reason: string(agg.HighestCategory())}
	}
	return Decision{Action: types.ActionAllow, Reason: "no_threats_detected"}
}
