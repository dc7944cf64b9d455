package models

import "time"

// BlacklistEntry is a persistent deny-list row. Rows are deactivated, never
// deleted, so ItemValue stays unique across active and inactive rows.
type BlacklistEntry struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ItemType   string    `json:"item_type" gorm:"index;not null"`
	ItemValue  string    `json:"item_value" gorm:"uniqueIndex;not null"`
	ThreatType string    `json:"threat_type"`
	IsActive   bool      `json:"is_active" gorm:"index;default:true"`
	AddedBy    string    `json:"added_by"`
	Notes      string    `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
