package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Item types shared by quarantine and blacklist entries.
const (
	ItemURL    = "url"
	ItemDomain = "domain"
	ItemIP     = "ip"
	ItemHash   = "hash"
	ItemFile   = "file"
)

// ValidItemType reports whether t is a known quarantine/blacklist item type.
func ValidItemType(t string) bool {
	switch t {
	case ItemURL, ItemDomain, ItemIP, ItemHash, ItemFile:
		return true
	}
	return false
}

const (
	QuarantineActive   = "quarantined"
	QuarantineReleased = "released"
)

// QuarantineEntry isolates a flagged item pending review. ReleasedAt is set
// iff Status is released. At most one quarantined row exists per item; released
// rows are kept as history.
type QuarantineEntry struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	UUID           string          `json:"uuid" gorm:"uniqueIndex"`
	ItemType       string          `json:"item_type" gorm:"not null;uniqueIndex:idx_quarantine_active,where:status = 'quarantined'"`
	Identifier     string          `json:"identifier" gorm:"not null;uniqueIndex:idx_quarantine_active,where:status = 'quarantined'"`
	ThreatAnalysis json.RawMessage `json:"threat_analysis,omitempty" gorm:"serializer:json"`
	RiskLevel      string          `json:"risk_level"`
	Status         string          `json:"status" gorm:"index;default:'quarantined'"`
	QuarantinedAt  time.Time       `json:"quarantined_at"`
	ReleasedAt     *time.Time      `json:"released_at,omitempty"`
	ReleasedBy     string          `json:"released_by,omitempty"`
	Notes          string          `json:"notes,omitempty" gorm:"type:text"`
}

func (q *QuarantineEntry) BeforeCreate(tx *gorm.DB) (err error) {
	if q.UUID == "" {
		q.UUID = uuid.New().String()
	}
	if q.Status == "" {
		q.Status = QuarantineActive
	}
	if q.QuarantinedAt.IsZero() {
		q.QuarantinedAt = time.Now()
	}
	return
}
