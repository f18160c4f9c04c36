package jailbreak

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/promptguard/promptguard/pkg/config"
	"github.com/promptguard/promptguard/pkg/types"
)

const (
	DetectorName = "jailbreak"

	// Inputs above this size skip the fuzzy phase; exact signature
	// containment still applies.
	maxFuzzyInputLen = 1 << 16

	defaultMaxEditDistance = 2
)

type signature struct {
	name       string
	confidence float64
	// normalized phrase: lower case, single spaces, punctuation stripped
	phrase string
}

// Known jailbreak template signatures. Matching is fuzzy so that minor
// obfuscation (extra spaces, character substitution) is still caught.
var builtinSignatures = []signature{
	{name: "dan_mode", confidence: 0.95, phrase: "do anything now"},
	{name: "dan_persona", confidence: 0.9, phrase: "you are dan"},
	{name: "developer_mode", confidence: 0.9, phrase: "developer mode enabled"},
	{name: "developer_mode_request", confidence: 0.85, phrase: "enter developer mode"},
	{name: "jailbroken_persona", confidence: 0.85, phrase: "you are jailbroken"},
	{name: "no_restrictions_persona", confidence: 0.8, phrase: "free from all restrictions"},
	{name: "evil_confidant", confidence: 0.8, phrase: "act as my evil confidant"},
	{name: "opposite_mode", confidence: 0.75, phrase: "respond in opposite mode"},
	{name: "hypothetical_bypass", confidence: 0.7, phrase: "hypothetically with no rules"},
	{name: "roleplay_unfiltered", confidence: 0.7, phrase: "roleplay as an unfiltered ai"},
}

// Detector matches text against known jailbreak template signatures using
// normalized fuzzy matching: case folding, whitespace and punctuation
// collapsing, leetspeak substitution, and a bounded edit distance over
// sliding word windows.
type Detector struct {
	logger          *logrus.Logger
	signatures      []signature
	maxEditDistance int
}

func New(logger *logrus.Logger, custom []config.CustomPattern) (*Detector, error) {
	sigs := make([]signature, 0, len(builtinSignatures)+len(custom))
	sigs = append(sigs, builtinSignatures...)

	for _, c := range custom {
		phrase := normalize(c.Pattern)
		if phrase == "" {
			return nil, fmt.Errorf("custom jailbreak pattern %q normalizes to empty", c.Name)
		}
		confidence := c.Weight
		if confidence <= 0 || confidence > 1 {
			confidence = 0.5
		}
		sigs = append(sigs, signature{name: c.Name, confidence: confidence, phrase: phrase})
	}

	return &Detector{
		logger:          logger,
		signatures:      sigs,
		maxEditDistance: defaultMaxEditDistance,
	}, nil
}

func (d *Detector) Name() string {
	return DetectorName
}

func (d *Detector) Category() types.Category {
	return types.CategoryJailbreak
}

func (d *Detector) Evaluate(ctx context.Context, req *types.ScanRequest) (*types.DetectorOutcome, error) {
	outcome := &types.DetectorOutcome{
		DetectorName: DetectorName,
		Status:       types.StatusOK,
	}

	normalized := normalize(req.Text)
	words := strings.Fields(normalized)

	var best float64
	for _, sig := range d.signatures {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		similarity := d.matchSignature(normalized, words, sig)
		if similarity == 0 {
			continue
		}

		confidence := sig.confidence * similarity
		if confidence > best {
			best = confidence
		}
		outcome.Findings = append(outcome.Findings, types.Finding{
			Category:       types.CategoryJailbreak,
			Severity:       severityForConfidence(confidence),
			Description:    "jailbreak template signature matched",
			MatchedPattern: sig.name,
			Confidence:     confidence,
		})
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

// matchSignature returns a similarity in (0,1] when the signature matches,
// 0 otherwise. Exact containment of the normalized phrase short-circuits the
// sliding-window edit distance phase.
func (d *Detector) matchSignature(normalized string, words []string, sig signature) float64 {
	if strings.Contains(normalized, sig.phrase) {
		return 1.0
	}

	if len(normalized) > maxFuzzyInputLen {
		return 0
	}

	sigWords := strings.Fields(sig.phrase)
	if len(words) < len(sigWords) {
		return 0
	}

	bestSimilarity := 0.0
	threshold := 1.0 - float64(d.maxEditDistance)/float64(len(sig.phrase))

	for i := 0; i+len(sigWords) <= len(words); i++ {
		window := strings.Join(words[i:i+len(sigWords)], " ")
		distance := levenshteinDistance(window, sig.phrase)
		if distance > d.maxEditDistance {
			continue
		}
		similarity := 1.0 - float64(distance)/float64(max(len(window), len(sig.phrase)))
		if similarity >= threshold && similarity > bestSimilarity {
			bestSimilarity = similarity
		}
	}

	return bestSimilarity
}

// leetSubstitutions maps common character substitutions back to letters
// before matching.
var leetSubstitutions = strings.NewReplacer(
	"0", "o",
	"1", "l",
	"3", "e",
	"4", "a",
	"5", "s",
	"7", "t",
	"@", "a",
	"$", "s",
)

func normalize(text string) string {
	text = strings.ToLower(text)
	text = leetSubstitutions.Replace(text)

	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func levenshteinDistance(s1, s2 string) int {
	l1 := len(s1)
	l2 := len(s2)

	if l1 == 0 {
		return l2
	}
	if l2 == 0 {
		return l1
	}

	if l1 < l2 {
		s1, s2 = s2, s1
		l1, l2 = l2, l1
	}

	previous := make([]int, l2+1)
	current := make([]int, l2+1)
	for j := 0; j <= l2; j++ {
		previous[j] = j
	}

	for i := 1; i <= l1; i++ {
		current[0] = i
		for j := 1; j <= l2; j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			current[j] = min(current[j-1]+1, previous[j]+1, previous[j-1]+cost)
		}
		previous, current = current, previous
	}
	return previous[l2]
}

func severityForConfidence(c float64) types.Severity {
	switch {
	case c >= 0.85:
		return types.SeverityCritical
	case c >= 0.6:
		return types.SeverityHigh
	case c >= 0.35:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}
