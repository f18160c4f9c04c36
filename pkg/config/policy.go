package config

import (
	"fmt"
	"time"
)

// PIIAction selects what the policy engine does with recognized PII.
type PIIAction string

const (
	PIIActionMask  PIIAction = "mask"
	PIIActionBlock PIIAction = "block"
	PIIActionLog   PIIAction = "log"
)

const (
	DefaultDetectorTimeout = 2 * time.Second
	DefaultScanTimeout     = 5 * time.Second

	DefaultBlockThreshold  = 0.85
	DefaultFilterThreshold = 0.6
	DefaultWarnThreshold   = 0.35
)

// DetectorPolicy configures one detector inside a PolicyConfig.
type DetectorPolicy struct {
	Enabled  bool          `mapstructure:"enabled"`
	Timeout  time.Duration `mapstructure:"timeout"`
	FailOpen bool          `mapstructure:"fail_open"`
}

// CustomPattern lets operators extend the built-in pattern sets.
type CustomPattern struct {
	Name    string  `mapstructure:"name"`
	Pattern string  `mapstructure:"pattern"`
	Weight  float64 `mapstructure:"weight"`
}

// PolicyConfig is the immutable, process-wide scanner policy. It is built
// once at load time; reload constructs a fresh value and installs it through
// Store.Swap. Fields are never mutated while scans are in flight.
type PolicyConfig struct {
	PromptInjection DetectorPolicy `mapstructure:"prompt_injection"`
	Jailbreak       DetectorPolicy `mapstructure:"jailbreak"`
	PII             DetectorPolicy `mapstructure:"pii"`
	Secrets         DetectorPolicy `mapstructure:"secrets"`
	ContentFilter   DetectorPolicy `mapstructure:"content_filter"`

	BlockThreshold  float64 `mapstructure:"block_threshold"`
	FilterThreshold float64 `mapstructure:"filter_threshold"`
	WarnThreshold   float64 `mapstructure:"warn_threshold"`

	PIIAction        PIIAction `mapstructure:"pii_action"`
	PIIMinConfidence float64   `mapstructure:"pii_min_confidence"`

	ScanTimeout time.Duration `mapstructure:"scan_timeout"`

	CustomInjectionPatterns []CustomPattern `mapstructure:"custom_injection_patterns"`
	CustomJailbreakPatterns []CustomPattern `mapstructure:"custom_jailbreak_patterns"`

	RateLimit RateLimitPolicy `mapstructure:"rate_limit"`

	ContentSafety ContentSafetyConfig `mapstructure:"content_safety"`
	Recognizer    RecognizerConfig    `mapstructure:"recognizer"`
}

// RateLimitPolicy configures the rate-limiter fast path.
type RateLimitPolicy struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// ContentSafetyConfig points the content filter at its external capability.
type ContentSafetyConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
}

// RecognizerConfig selects the PII entity recognizer implementation.
type RecognizerConfig struct {
	Endpoint string `mapstructure:"endpoint"` // empty selects the built-in recognizer
}

// ApplyDefaults fills unset fields with production defaults. It runs on
// every loaded or submitted policy before validation.
func (p *PolicyConfig) ApplyDefaults() {
	for _, dp := range []*DetectorPolicy{&p.PromptInjection, &p.Jailbreak, &p.PII, &p.Secrets, &p.ContentFilter} {
		if dp.Timeout == 0 {
			dp.Timeout = DefaultDetectorTimeout
		}
	}
	if p.ScanTimeout == 0 {
		p.ScanTimeout = DefaultScanTimeout
	}
	if p.BlockThreshold == 0 {
		p.BlockThreshold = DefaultBlockThreshold
	}
	if p.FilterThreshold == 0 {
		p.FilterThreshold = DefaultFilterThreshold
	}
	if p.WarnThreshold == 0 {
		p.WarnThreshold = DefaultWarnThreshold
	}
	if p.PIIAction == "" {
		p.PIIAction = PIIActionMask
	}
	if p.PIIMinConfidence == 0 {
		p.PIIMinConfidence = 0.5
	}
	if p.RateLimit.Window == 0 {
		p.RateLimit.Window = time.Minute
	}
}

// Validate rejects policies with inconsistent thresholds or limits. Errors
// here are treated as fatal at startup.
func (p *PolicyConfig) Validate() error {
	for _, th := range []struct {
		name  string
		value float64
	}{
		{"block_threshold", p.BlockThreshold},
		{"filter_threshold", p.FilterThreshold},
		{"warn_threshold", p.WarnThreshold},
		{"pii_min_confidence", p.PIIMinConfidence},
	} {
		if th.value < 0 || th.value > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", th.name, th.value)
		}
	}

	if p.WarnThreshold > p.FilterThreshold || p.FilterThreshold > p.BlockThreshold {
		return fmt.Errorf("thresholds must satisfy warn <= filter <= block, got warn=%v filter=%v block=%v",
			p.WarnThreshold, p.FilterThreshold, p.BlockThreshold)
	}

	switch p.PIIAction {
	case PIIActionMask, PIIActionBlock, PIIActionLog:
	default:
		return fmt.Errorf("invalid pii_action: %s", p.PIIAction)
	}

	if p.ScanTimeout <= 0 {
		return fmt.Errorf("scan_timeout must be positive, got %v", p.ScanTimeout)
	}

	for _, dp := range []DetectorPolicy{p.PromptInjection, p.Jailbreak, p.PII, p.Secrets, p.ContentFilter} {
		if dp.Timeout <= 0 {
			return fmt.Errorf("detector timeout must be positive, got %v", dp.Timeout)
		}
	}

	if p.RateLimit.Enabled && p.RateLimit.Limit <= 0 {
		return fmt.Errorf("rate_limit.limit must be positive when rate limiting is enabled")
	}

	return nil
}
