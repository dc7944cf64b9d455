package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Wikid82/phishguard/internal/models"
)

var (
	ErrBlacklistNotFound = errors.New("blacklist entry not found")
	ErrInvalidItemType   = errors.New("invalid item type")
)

// BlacklistService manages the persistent deny list. Entries are deactivated
// rather than deleted.
type BlacklistService struct {
	db *gorm.DB
}

// NewBlacklistService returns a BlacklistService using the provided DB.
func NewBlacklistService(db *gorm.DB) *BlacklistService {
	return &BlacklistService{db: db}
}

// NormalizeValue lowercases hosts, hashes and URLs so lookups are case-insensitive.
func NormalizeValue(itemType, value string) string {
	value = strings.TrimSpace(value)
	switch itemType {
	case models.ItemDomain, models.ItemHash, models.ItemIP:
		return strings.ToLower(value)
	}
	return value
}

// Upsert inserts the entry or reactivates and refreshes the existing row with
// the same value. The statement is a single INSERT ... ON CONFLICT so
// concurrent callers never produce duplicates.
func (s *BlacklistService) Upsert(entry *models.BlacklistEntry) error {
	if !models.ValidItemType(entry.ItemType) {
		return ErrInvalidItemType
	}
	entry.ItemValue = NormalizeValue(entry.ItemType, entry.ItemValue)
	if entry.ItemValue == "" {
		return fmt.Errorf("blacklist upsert: empty value")
	}
	entry.IsActive = true
	entry.UpdatedAt = time.Now()

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_value"}},
		DoUpdates: clause.AssignmentColumns([]string{"item_type", "threat_type", "is_active", "added_by", "notes", "updated_at"}),
	}).Create(entry).Error
	if err != nil {
		return err
	}
	// the conflict path does not reliably report the existing row's ID
	var stored models.BlacklistEntry
	if err := s.db.Where("item_value = ?", entry.ItemValue).First(&stored).Error; err != nil {
		return err
	}
	*entry = stored
	return nil
}

// List returns entries, newest first. activeOnly hides deactivated rows.
func (s *BlacklistService) List(itemType string, activeOnly bool, limit, offset int) ([]models.BlacklistEntry, int64, error) {
	q := s.db.Model(&models.BlacklistEntry{})
	if itemType != "" {
		q = q.Where("item_type = ?", itemType)
	}
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.BlacklistEntry
	err := q.Order("updated_at desc").Order("id desc").Limit(limit).Offset(offset).Find(&entries).Error
	return entries, total, err
}

// Get returns an entry by ID.
func (s *BlacklistService) Get(id uint) (*models.BlacklistEntry, error) {
	var entry models.BlacklistEntry
	if err := s.db.First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBlacklistNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// Deactivate clears the active flag of an entry.
func (s *BlacklistService) Deactivate(id uint) error {
	res := s.db.Model(&models.BlacklistEntry{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBlacklistNotFound
	}
	return nil
}

// IsBlacklisted reports whether an active entry holds value.
func (s *BlacklistService) IsBlacklisted(itemType, value string) (bool, error) {
	var count int64
	err := s.db.Model(&models.BlacklistEntry{}).
		Where("item_type = ? AND item_value = ? AND is_active = ?", itemType, NormalizeValue(itemType, value), true).
		Count(&count).Error
	return count > 0, err
}

// FindActive returns the first active entry matching any of values, or nil.
func (s *BlacklistService) FindActive(values ...string) (*models.BlacklistEntry, error) {
	if len(values) == 0 {
		return nil, nil
	}
	norm := make([]string, 0, len(values)*2)
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		norm = append(norm, v, strings.ToLower(v))
	}
	var entry models.BlacklistEntry
	err := s.db.Where("item_value IN ? AND is_active = ?", norm, true).Order("id asc").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
