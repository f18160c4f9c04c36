package promptinjection

import (
	"context"
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/promptguard/promptguard/pkg/config"
	"github.com/promptguard/promptguard/pkg/types"
)

const DetectorName = "prompt_injection"

type weightedPattern struct {
	name    string
	weight  float64
	pattern *regexp.Regexp
}

// Instruction-override phrasing, weighted by how unambiguous the phrasing is.
// Score is the highest weight among matched patterns; multiple matches do not
// stack beyond 1.0.
var builtinPatterns = []weightedPattern{
	{
		name:    "instruction_override",
		weight:  0.95,
		pattern: regexp.MustCompile(`(?i)\b(?:ignore|disregard|forget|skip)\s+(?:all\s+|any\s+|the\s+)?(?:previous|prior|above|earlier|preceding|your)\s+(?:instructions?|prompts?|rules?|directives?|guidelines?)`),
	},
	{
		name:    "system_prompt_extraction",
		weight:  0.9,
		pattern: regexp.MustCompile(`(?i)(?:show|reveal|print|repeat|output|display|tell)\s+(?:me\s+)?(?:your|the)\s+(?:system\s+prompt|initial\s+prompt|hidden\s+instructions?|original\s+instructions?)`),
	},
	{
		name:    "persona_reassignment",
		weight:  0.8,
		pattern: regexp.MustCompile(`(?i)\byou\s+are\s+(?:now|no\s+longer)\b`),
	},
	{
		name:    "new_instruction_framing",
		weight:  0.75,
		pattern: regexp.MustCompile(`(?i)\b(?:new|updated|revised)\s+(?:instructions?|rules?|system\s+prompt)\s*[:=]`),
	},
	{
		name:    "instruction_nullification",
		weight:  0.7,
		pattern: regexp.MustCompile(`(?i)\b(?:your|the)\s+(?:previous|prior|above)\s+(?:instructions?|rules?)\s+(?:are|is)\s+(?:void|cancelled|canceled|invalid|no\s+longer\s+valid)`),
	},
	{
		name:    "pretend_no_restrictions",
		weight:  0.7,
		pattern: regexp.MustCompile(`(?i)\bpretend\s+(?:that\s+)?you\s+(?:have\s+no|don'?t\s+have\s+any)\s+(?:restrictions?|limitations?|rules?|guidelines?)`),
	},
	{
		name:    "delimiter_escape",
		weight:  0.6,
		pattern: regexp.MustCompile(`(?i)(?:^|\n)\s*(?:###|---)\s*(?:system|assistant|instructions?)\s*[:\]]`),
	},
}

// Detector matches text against a weighted set of instruction-override
// phrase patterns. It performs no external calls and is bounded by text
// length, not network latency.
type Detector struct {
	logger   *logrus.Logger
	patterns []weightedPattern
}

func New(logger *logrus.Logger, custom []config.CustomPattern) (*Detector, error) {
	patterns := make([]weightedPattern, 0, len(builtinPatterns)+len(custom))
	patterns = append(patterns, builtinPatterns...)

	for _, c := range custom {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid custom injection pattern %q: %w", c.Name, err)
		}
		weight := c.Weight
		if weight <= 0 || weight > 1 {
			weight = 0.5
		}
		patterns = append(patterns, weightedPattern{name: c.Name, weight: weight, pattern: re})
	}

	return &Detector{logger: logger, patterns: patterns}, nil
}

func (d *Detector) Name() string {
	return DetectorName
}

func (d *Detector) Category() types.Category {
	return types.CategoryPromptInjection
}

func (d *Detector) Evaluate(ctx context.Context, req *types.ScanRequest) (*types.DetectorOutcome, error) {
	outcome := &types.DetectorOutcome{
		DetectorName: DetectorName,
		Status:       types.StatusOK,
	}

	var best float64
	for _, p := range d.patterns {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		loc := p.pattern.FindStringIndex(req.Text)
		if loc == nil {
			continue
		}

		if p.weight > best {
			best = p.weight
		}
		outcome.Findings = append(outcome.Findings, types.Finding{
			Category:       types.CategoryPromptInjection,
			Severity:       severityForWeight(p.weight),
			Description:    "instruction override phrasing detected",
			MatchedPattern: p.name,
			Confidence:     p.weight,
			Span:           &types.Span{Start: loc[0], End: loc[1]},
		})
	}

	if best > 1.0 {
		best = 1.0
	}
	outcome.Score = best

	if len(outcome.Findings) > 0 {
		d.logger.WithFields(logrus.Fields{
			"detector":   DetectorName,
			"request_id": req.Context.RequestID,
			"matches":    len(outcome.Findings),
			"score":      outcome.Score,
		}).Warn("threat detected")
	}

	return outcome, nil
}

func severityForWeight(w float64) types.Severity {
	switch {
	case w >= 0.85:
		return types.SeverityCritical
	case w >= 0.6:
		return types.SeverityHigh
	case w >= 0.35:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}
