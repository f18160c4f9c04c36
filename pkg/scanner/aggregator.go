package scanner

import (
	"github.com/promptguard/promptguard/pkg/detectors/contentfilter"
	"github.com/promptguard/promptguard/pkg/detectors/jailbreak"
	"github.com/promptguard/promptguard/pkg/detectors/pii"
	"github.com/promptguard/promptguard/pkg/detectors/promptinjection"
	"github.com/promptguard/promptguard/pkg/detectors/secrets"
	"github.com/promptguard/promptguard/pkg/types"
)

// Aggregate is the intermediate record the policy engine decides on. It
// separates PII and secret evidence from the other threat categories
// because they feed different rows of the decision table.
type Aggregate struct {
	OverallRiskScore float64
	CategoryScores   map[types.Category]float64
	Threats          []types.Finding
	PIIFindings      []types.Finding
	SecretFindings   []types.Finding
	Statuses         map[string]types.DetectorStatus
}

// Aggregator combines per-detector outcomes into a single record.
//
// The overall risk score is the maximum of the per-category scores, not a
// weighted sum: a single high-confidence threat must not be diluted by
// several low-confidence benign signals.
type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

func (a *Aggregator) Aggregate(outcomes []types.DetectorOutcome) *Aggregate {
	agg := &Aggregate{
		CategoryScores: make(map[types.Category]float64),
		Statuses:       make(map[string]types.DetectorStatus),
	}

	for _, outcome := range outcomes {
		agg.Statuses[outcome.DetectorName] = outcome.Status

		for _, f := range outcome.Findings {
			switch {
			case f.MatchedPattern == types.DegradedPattern:
				// Degradation evidence is reported alongside real
				// threats but never as a PII span or secret hit.
				agg.Threats = append(agg.Threats, f)
			case f.Category == types.CategoryPII:
				agg.PIIFindings = append(agg.PIIFindings, f)
			case f.Category == types.CategorySecret:
				agg.SecretFindings = append(agg.SecretFindings, f)
			default:
				agg.Threats = append(agg.Threats, f)
			}
		}

		score := clamp01(outcome.Score)
		if category := a.outcomeCategory(outcome); category != "" && score > agg.CategoryScores[category] {
			agg.CategoryScores[category] = score
		}
	}

	// Secret presence is binary: any hit scores the category at 1.0.
	if len(agg.SecretFindings) > 0 {
		agg.CategoryScores[types.CategorySecret] = 1.0
	}

	for _, score := range agg.CategoryScores {
		if score > agg.OverallRiskScore {
			agg.OverallRiskScore = score
		}
	}
	agg.OverallRiskScore = clamp01(agg.OverallRiskScore)

	return agg
}

// outcomeCategory maps a detector outcome to its threat category via its
// findings, falling back to the detector name for empty outcomes.
func (a *Aggregator) outcomeCategory(outcome types.DetectorOutcome) types.Category {
	for _, f := range outcome.Findings {
		return f.Category
	}
	switch outcome.DetectorName {
	case promptinjection.DetectorName:
		return types.CategoryPromptInjection
	case jailbreak.DetectorName:
		return types.CategoryJailbreak
	case pii.DetectorName:
		return types.CategoryPII
	case secrets.DetectorName:
		return types.CategorySecret
	case contentfilter.DetectorName:
		return types.CategoryContentPolicy
	}
	return ""
}

// HighestCategory names the category contributing the overall risk score.
func (agg *Aggregate) HighestCategory() types.Category {
	var best types.Category
	bestScore := -1.0
	for _, category := range []types.Category{
		types.CategorySecret,
		types.CategoryPromptInjection,
		types.CategoryJailbreak,
		types.CategoryContentPolicy,
		types.CategoryPII,
	} {
		if score, ok := agg.CategoryScores[category]; ok && score > bestScore {
			best = category
			bestScore = score
		}
	}
	return best
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
