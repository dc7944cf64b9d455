package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditAction names an operator change to the defense state.
type AuditAction string

const (
	AuditBlacklistAdd        AuditAction = "blacklist_add"
	AuditBlacklistDeactivate AuditAction = "blacklist_deactivate"
	AuditQuarantineRelease   AuditAction = "quarantine_release"
)

// AdminAudit is one operator change. Automatic engine decisions are kept as
// SecurityDecision rows instead.
type AdminAudit struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	UUID      string      `json:"uuid" gorm:"uniqueIndex"`
	Actor     string      `json:"actor" gorm:"index"`
	Action    AuditAction `json:"action" gorm:"index"`
	Target    string      `json:"target"`
	Details   string      `json:"details" gorm:"type:text"`
	CreatedAt time.Time   `json:"created_at"`
}

func (a *AdminAudit) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	return nil
}
