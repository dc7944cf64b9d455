package models

import (
	"encoding/json"
	"time"
)

// AttackLog is an append-only record of a detected attack against the service.
// The last 24 hours of rows for a client IP drive the auto-block decision.
type AttackLog struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	ClientIP   string          `json:"client_ip" gorm:"index;not null"`
	AttackType string          `json:"attack_type"`
	RiskLevel  string          `json:"risk_level" gorm:"index"`
	Metadata   json.RawMessage `json:"metadata,omitempty" gorm:"serializer:json"`
	Report     json.RawMessage `json:"report,omitempty" gorm:"serializer:json"`
	CreatedAt  time.Time       `json:"created_at" gorm:"index"`
}
