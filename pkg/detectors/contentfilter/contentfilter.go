package contentfilter

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/promptguard/promptguard/pkg/infra/contentsafety"
	"github.com/promptguard/promptguard/pkg/types"
)

const DetectorName = "content_filter"

// Findings are emitted for categories at or above this normalized severity.
const findingThreshold = 0.25

// Detector delegates to the external content-safety capability. This is the
// one detector that performs network I/O; the orchestrator's per-detector
// deadline bounds the call and the policy usually runs it fail-open.
type Detector struct {
	logger     *logrus.Logger
	classifier contentsafety.Classifier
}

func New(logger *logrus.Logger, classifier contentsafety.Classifier) *Detector {
	return &Detector{logger: logger, classifier: classifier}
}

func (d *Detector) Name() string {
	return DetectorName
}

func (d *Detector) Category() types.Category {
	return types.CategoryContentPolicy
}

func (d *Detector) Evaluate(ctx context.Context, req *types.ScanRequest) (*types.DetectorOutcome, error) {
	scores, err := d.classifier.Classify(ctx, req.Text)
	if err != nil {
		return nil, fmt.Errorf("content safety classification failed: %w", err)
	}

	outcome := &types.DetectorOutcome{
		DetectorName: DetectorName,
		Status:       types.StatusOK,
	}

	var best float64
	for category, score := range scores {
		if score > best {
			best = score
		}
		if score < findingThreshold {
			continue
		}
		outcome.Findings = append(outcome.Findings, types.Finding{
			Category:    types.CategoryContentPolicy,
			Severity:    severityForScore(score),
			Description: fmt.Sprintf("content policy category %s flagged", category),
			EntityType:  category,
			Confidence:  score,
		})
	}

	outcome.Score = best

	if len(outcome.Findings) > 0 {
		d.logger.WithFields(logrus.Fields{
			"detector":   DetectorName,
			"request_id": req.Context.RequestID,
			"categories": len(outcome.Findings),
			"score":      outcome.Score,
		}).Warn("threat detected")
	}

	return outcome, nil
}

func severityForScore(s float64) types.Severity {
	switch {
	case s >= 0.85:
		return types.SeverityCritical
	case s >= 0.6:
		return types.SeverityHigh
	case s >= 0.35:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}
