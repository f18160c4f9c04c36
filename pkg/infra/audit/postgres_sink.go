package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/promptguard/promptguard/pkg/config"
)

// ScanAudit is the persisted form of a Record. Category scores and
// detector statuses are stored as JSON columns.
type ScanAudit struct {
	ID               uint      `gorm:"primaryKey"`
	RequestID        string    `gorm:"index;size:64"`
	ClientKey        string    `gorm:"index;size:256"`
	Endpoint         string    `gorm:"size:512"`
	Model            string    `gorm:"size:128"`
	Timestamp        time.Time `gorm:"index"`
	Action           string    `gorm:"size:16"`
	Reason           string    `gorm:"size:64"`
	OverallRiskScore float64
	CategoryScores   []byte `gorm:"type:jsonb"`
	ThreatCount      int
	PIICount         int
	SecretCount      int
	ScanDurationMs   float64
	DetectorStatuses []byte    `gorm:"type:jsonb"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
}

func (ScanAudit) TableName() string {
	return "scan_audits"
}

// PostgresSink persists audit records to Postgres via GORM.
type PostgresSink struct {
	db *gorm.DB
}

func NewPostgresSink(logger *logrus.Logger, cfg *config.DatabaseConfig) (*PostgresSink, error) {
	logger.WithFields(logrus.Fields{
		"host": cfg.Host,
		"port": cfg.Port,
		"db":   cfg.DBName,
	}).Info("connecting to audit database")

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit database: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("audit database ping failed: %w", err)
	}

	if err := gormDB.AutoMigrate(&ScanAudit{}); err != nil {
		return nil, fmt.Errorf("failed to migrate scan_audits: %w", err)
	}

	return &PostgresSink{db: gormDB}, nil
}

func (s *PostgresSink) Name() string {
	return "postgres"
}

func (s *PostgresSink) Write(ctx context.Context, rec *Record) error {
	scores, err := json.Marshal(rec.CategoryScores)
	if err != nil {
		return fmt.Errorf("failed to marshal category scores: %w", err)
	}
	statuses, err := json.Marshal(rec.DetectorStatuses)
	if err != nil {
		return fmt.Errorf("failed to marshal detector statuses: %w", err)
	}

	row := &ScanAudit{
		RequestID:        rec.RequestID,
		ClientKey:        rec.ClientKey,
		Endpoint:         rec.Endpoint,
		Model:            rec.Model,
		Timestamp:        rec.Timestamp,
		Action:           string(rec.Action),
		Reason:           rec.Reason,
		OverallRiskScore: rec.OverallRiskScore,
		CategoryScores:   scores,
		ThreatCount:      rec.ThreatCount,
		PIICount:         rec.PIICount,
		SecretCount:      rec.SecretCount,
		ScanDurationMs:   rec.ScanDurationMs,
		DetectorStatuses: statuses,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
