package types

import "time"

// Category identifies the threat class a finding belongs to.
type Category string

const (
	CategoryPromptInjection Category = "prompt_injection"
	CategoryJailbreak       Category = "jailbreak"
	CategoryPII             Category = "pii"
	CategorySecret          Category = "secret"
	CategoryContentPolicy   Category = "content_policy"
)

// Severity is a coarse-grained risk level for a finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Action is the scanner's final verdict for a request.
type Action string

const (
	ActionAllow  Action = "allow"
	ActionFilter Action = "filter"
	ActionWarn   Action = "warn"
	ActionBlock  Action = "block"
)

// DetectorStatus reports how a single detector resolved within a scan.
type DetectorStatus string

const (
	StatusOK      DetectorStatus = "ok"
	StatusTimeout DetectorStatus = "timeout"
	StatusError   DetectorStatus = "error"
)

// DegradedPattern marks synthetic findings that document a detector which
// timed out or errored rather than an actual match in the text.
const DegradedPattern = "detector_degraded"

// Span marks a half-open [Start, End) byte range inside the scanned text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether s fully covers other.
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && s.End >= other.End
}

// RequestContext carries per-request metadata alongside the scanned text.
type RequestContext struct {
	Endpoint  string    `json:"endpoint"`
	Model     string    `json:"model"`
	RequestID string    `json:"request_id"`
	ClientKey string    `json:"client_key"`
	Timestamp time.Time `json:"timestamp"`
}

// ScanRequest is the immutable input of one scan. It is created once per
// inbound call and discarded when the scan completes.
type ScanRequest struct {
	Text    string
	Context RequestContext
}

// Finding is one detector's evidence of a specific threat instance.
type Finding struct {
	Category       Category `json:"category"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
	MatchedPattern string   `json:"matched_pattern,omitempty"`
	EntityType     string   `json:"entity_type,omitempty"`
	Confidence     float64  `json:"confidence,omitempty"`
	Span           *Span    `json:"span,omitempty"`
}

// DetectorOutcome is produced exactly once per detector per scan.
type DetectorOutcome struct {
	DetectorName string         `json:"detector_name"`
	Score        float64        `json:"score"`
	Findings     []Finding      `json:"findings"`
	Status       DetectorStatus `json:"status"`
}

// PIIDetection records one recognized entity and how it was rewritten.
type PIIDetection struct {
	EntityType   string  `json:"entity_type"`
	OriginalText string  `json:"original_text"`
	MaskedText   string  `json:"masked_text"`
	Confidence   float64 `json:"confidence"`
	Span         Span    `json:"span"`
}

// ScanResult is the externally visible record of one scan.
type ScanResult struct {
	RequestID        string                    `json:"request_id"`
	Passed           bool                      `json:"passed"`
	Action           Action                    `json:"action"`
	ActionReason     string                    `json:"action_reason"`
	OverallRiskScore float64                   `json:"overall_risk_score"`
	PromptInjection  float64                   `json:"prompt_injection_score"`
	Jailbreak        float64                   `json:"jailbreak_score"`
	ContentPolicy    float64                   `json:"content_policy_score"`
	Threats          []Finding                 `json:"threats"`
	PIIDetections    []PIIDetection            `json:"pii_detections"`
	SecretDetections []Finding                 `json:"secret_detections"`
	Transformations  []string                  `json:"transformations"`
	ScanDurationMs   float64                   `json:"scan_duration_ms"`
	MaskedText       *string                   `json:"masked_text,omitempty"`
	DetectorStatuses map[string]DetectorStatus `json:"detector_statuses,omitempty"`
}
