package models

import (
	"time"
)

// SecurityDecision stores an enforcement action taken by the shield, the
// decision engine or an administrator so it can be audited.
type SecurityDecision struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UUID      string    `json:"uuid" gorm:"uniqueIndex"`
	Source    string    `json:"source"` // e.g., shield, engine, manual
	Action    string    `json:"action"` // block, quarantine, blacklist, monitor
	IP        string    `json:"ip" gorm:"index"`
	Host      string    `json:"host"` // optional
	RuleID    string    `json:"rule_id"`
	Details   string    `json:"details" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}
