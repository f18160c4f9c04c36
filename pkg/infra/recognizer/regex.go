package recognizer

import (
	"context"
	"regexp"
	"sort"

	"github.com/promptguard/promptguard/pkg/types"
)

type entityPattern struct {
	entityType string
	confidence float64
	pattern    *regexp.Regexp
}

// Built-in entity patterns. Confidence reflects how distinctive the shape
// is: an SSN with separators is rarely anything else, while a bare digit run
// could be many things.
var entityPatterns = []entityPattern{
	{"EMAIL", 0.75, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"SSN", 0.8, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"CREDIT_CARD", 0.8, regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)},
	{"IBAN", 0.75, regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`)},
	{"IP_ADDRESS", 0.6, regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)},
	{"PHONE_NUMBER", 0.55, regexp.MustCompile(`(?:\+\d{1,3}[ -]?)?\(?\d{3}\)?[ -]\d{3}[ -]\d{4}\b`)},
	{"UUID", 0.5, regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)},
	{"MAC_ADDRESS", 0.5, regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}\b`)},
	{"DATE_OF_BIRTH", 0.5, regexp.MustCompile(`(?i)\b(?:dob|date of birth|born)[:\s]+\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b`)},
}

// RegexRecognizer is the built-in, in-process entity recognizer. It never
// performs I/O, so it only fails on context cancellation.
type RegexRecognizer struct {
	patterns []entityPattern
}

func NewRegexRecognizer() *RegexRecognizer {
	return &RegexRecognizer{patterns: entityPatterns}
}

func (r *RegexRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	var entities []Entity
	for _, p := range r.patterns {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		for _, loc := range p.pattern.FindAllStringIndex(text, -1) {
			entities = append(entities, Entity{
				Type:       p.entityType,
				Span:       types.Span{Start: loc[0], End: loc[1]},
				Confidence: p.confidence,
			})
		}
	}

	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Span.Start != entities[j].Span.Start {
			return entities[i].Span.Start < entities[j].Span.Start
		}
		return entities[i].Confidence > entities[j].Confidence
	})

	return entities, nil
}
