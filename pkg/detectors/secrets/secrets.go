package secrets

import (
	"context"
	"math"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/promptguard/promptguard/pkg/types"
)

const (
	DetectorName = "secrets"

	// Shannon entropy threshold for context-gated token runs.
	entropyThreshold = 4.0
	minTokenLen      = 20
	maxTokenLen      = 200
)

type tokenPattern struct {
	family  string
	pattern *regexp.Regexp
}

// Structural token shapes. Presence is binary: any match is critical,
// regardless of what the other detectors scored.
var tokenPatterns = []tokenPattern{
	{"openai_api_key", regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{20,}\b`)},
	{"anthropic_api_key", regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_-]{20,}\b`)},
	{"aws_access_key", regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`)},
	{"github_token", regexp.MustCompile(`\bgh[poasru]_[A-Za-z0-9]{36,}\b`)},
	{"gitlab_token", regexp.MustCompile(`\bglpat-[A-Za-z0-9_-]{20,}\b`)},
	{"stripe_key", regexp.MustCompile(`\b[sprk]k_(?:test|live)_[A-Za-z0-9]{24,}\b`)},
	{"slack_token", regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`)},
	{"jwt", regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`)},
	{"private_key_block", regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH |DSA |PGP )?PRIVATE KEY(?: BLOCK)?-----`)},
	{"password_assignment", regexp.MustCompile(`(?i)password\s*[=:]\s*\S{8,}`)},
	{"api_key_assignment", regexp.MustCompile(`(?i)(?:api[_-]?key|access[_-]?token|client[_-]?secret)\s*[=:]\s*\S{16,}`)},
	{"bearer_token", regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]{20,}`)},
}

var (
	tokenishRun   = regexp.MustCompile(`[A-Za-z0-9+/=_-]{20,}`)
	secretContext = regexp.MustCompile(`(?i)(secret|token|password|passwd|credential|api[_-]?key|authorization|bearer|aws)`)
	// Placeholder-style runs (upper case + underscores only) are mask
	// artifacts, not credentials.
	upperOnly = regexp.MustCompile(`^[A-Z_]+$`)
)

// Detector finds credential-shaped tokens by structural prefix matching or,
// when a secret-adjacent keyword is nearby, by high-entropy contiguous runs.
type Detector struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *Detector {
	return &Detector{logger: logger}
}

func (d *Detector) Name() string {
	return DetectorName
}

func (d *Detector) Category() types.Category {
	return types.CategorySecret
}

func (d *Detector) Evaluate(ctx context.Context, req *types.ScanRequest) (*types.DetectorOutcome, error) {
	outcome := &types.DetectorOutcome{
		DetectorName: DetectorName,
		Status:       types.StatusOK,
	}

	for _, tp := range tokenPatterns {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		for _, loc := range tp.pattern.FindAllStringIndex(req.Text, -1) {
			outcome.Findings = append(outcome.Findings, types.Finding{
				Category:       types.CategorySecret,
				Severity:       types.SeverityCritical,
				Description:    "credential-shaped token detected",
				MatchedPattern: tp.family,
				Span:           &types.Span{Start: loc[0], End: loc[1]},
			})
		}
	}

	if secretContext.MatchString(req.Text) {
		for _, loc := range tokenishRun.FindAllStringIndex(req.Text, -1) {
			run := req.Text[loc[0]:loc[1]]
			if len(run) < minTokenLen || len(run) > maxTokenLen {
				continue
			}
			if upperOnly.MatchString(run) {
				continue
			}
			if shannonEntropy(run) < entropyThreshold {
				continue
			}
			if d.coveredByTokenFinding(outcome.Findings, loc[0], loc[1]) {
				continue
			}
			outcome.Findings = append(outcome.Findings, types.Finding{
				Category:       types.CategorySecret,
				Severity:       types.SeverityCritical,
				Description:    "high-entropy token near credential keyword",
				MatchedPattern: "entropy_context",
				Span:           &types.Span{Start: loc[0], End: loc[1]},
			})
		}
	}

	if len(outcome.Findings) > 0 {
		outcome.Score = 1.0
		d.logger.WithFields(logrus.Fields{
			"detector":   DetectorName,
			"request_id": req.Context.RequestID,
			"matches":    len(outcome.Findings),
		}).Warn("threat detected")
	}

	return outcome, nil
}

func (d *Detector) coveredByTokenFinding(findings []types.Finding, start, end int) bool {
	for _, f := range findings {
		if f.Span != nil && f.Span.Start <= start && f.Span.End >= end {
			return true
		}
	}
	return false
}

func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	count := map[rune]int{}
	for _, r := range s {
		count[r]++
	}
	h := 0.0
	n := float64(len(s))
	for _, c := range count {
		p := float64(c) / n
		h += -p * math.Log2(p)
	}
	return h
}
