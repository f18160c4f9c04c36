package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSink writes audit records as structured log entries. It is the
// default sink when no external store is configured.
type LogSink struct {
	logger *logrus.Logger
}

func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Write(_ context.Context, rec *Record) error {
	s.logger.WithFields(logrus.Fields{
		"request_id":         rec.RequestID,
		"client_key":         rec.ClientKey,
		"endpoint":           rec.Endpoint,
		"model":              rec.Model,
		"action":             rec.Action,
		"reason":             rec.Reason,
		"overall_risk_score": rec.OverallRiskScore,
		"threat_count":       rec.ThreatCount,
		"pii_count":          rec.PIICount,
		"secret_count":       rec.SecretCount,
		"scan_duration_ms":   rec.ScanDurationMs,
	}).Info("scan audited")
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
