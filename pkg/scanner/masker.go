package scanner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/promptguard/promptguard/pkg/types"
)

// Masker rewrites text to redact recognized PII spans. The rewrite is
// deterministic and idempotent: placeholder tokens are upper-case bracketed
// names that no detector pattern matches, so re-scanning masked text yields
// zero PII findings.
type Masker struct{}

func NewMasker() *Masker {
	return &Masker{}
}

// Mask replaces each surviving span with [<ENTITY_TYPE>_REDACTED] and
// returns the rewritten text plus the detections that were applied.
//
// Spans fully contained within another span are discarded first, then the
// lower-confidence side of any partially overlapping pair, so the applied
// spans never overlap. Surviving spans are rewritten right-to-left so
// earlier offsets stay valid during the rewrite.
func (m *Masker) Mask(text string, findings []types.Finding) (string, []types.PIIDetection) {
	spans := m.resolveOverlaps(text, findings)
	if len(spans) == 0 {
		return text, nil
	}

	sort.Slice(spans, func(i, j int) bool {
		return spans[i].Span.Start > spans[j].Span.Start
	})

	masked := text
	for i := range spans {
		spans[i].MaskedText = placeholder(spans[i].EntityType)
		masked = masked[:spans[i].Span.Start] + spans[i].MaskedText + masked[spans[i].Span.End:]
	}

	// Report detections in text order.
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].Span.Start < spans[j].Span.Start
	})
	return masked, spans
}

func (m *Masker) resolveOverlaps(text string, findings []types.Finding) []types.PIIDetection {
	candidates := make([]types.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Span == nil || f.Span.Start < 0 || f.Span.End > len(text) || f.Span.Start >= f.Span.End {
			continue
		}
		candidates = append(candidates, f)
	}

	var detections []types.PIIDetection
	for i, f := range candidates {
		contained := false
		for j, other := range candidates {
			if i == j || !other.Span.Contains(*f.Span) {
				continue
			}
			// Of two identical spans, keep the higher-confidence one
			// (first wins on ties).
			if *other.Span == *f.Span {
				if other.Confidence > f.Confidence || (other.Confidence == f.Confidence && j < i) {
					contained = true
					break
				}
				continue
			}
			contained = true
			break
		}
		if contained {
			continue
		}
		detections = append(detections, types.PIIDetection{
			EntityType:   f.EntityType,
			OriginalText: text[f.Span.Start:f.Span.End],
			Confidence:   f.Confidence,
			Span:         *f.Span,
		})
	}

	// Partially overlapping spans would splice into each other's
	// placeholders during the rewrite: keep the higher-confidence side.
	sort.SliceStable(detections, func(i, j int) bool {
		if detections[i].Confidence != detections[j].Confidence {
			return detections[i].Confidence > detections[j].Confidence
		}
		return detections[i].Span.Start < detections[j].Span.Start
	})
	kept := make([]types.PIIDetection, 0, len(detections))
	for _, d := range detections {
		conflict := false
		for _, k := range kept {
			if d.Span.Start < k.Span.End && k.Span.Start < d.Span.End {
				conflict = true
				break
			}
		}
		if !conflict {
			kept = append(kept, d)
		}
	}
	return kept
}

func placeholder(entityType string) string {
	name := strings.ToUpper(strings.TrimSpace(entityType))
	if name == "" {
		name = "PII"
	}
	name = strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || r == '_' {
			return r
		}
		return '_'
	}, name)
	return fmt.Sprintf("[%s_REDACTED]", name)
}
