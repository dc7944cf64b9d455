package services

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Wikid82/phishguard/internal/models"
)

var (
	ErrQuarantineNotFound = errors.New("quarantine entry not found")
	// ErrPolicyConflict is returned when an action does not apply to the
	// current state, e.g. releasing an item that is not quarantined.
	ErrPolicyConflict = errors.New("policy conflict")
)

// QuarantineService keeps at most one active quarantine row per item.
type QuarantineService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewQuarantineService returns a QuarantineService using the provided DB.
func NewQuarantineService(db *gorm.DB) *QuarantineService {
	return &QuarantineService{db: db, now: time.Now}
}

// Quarantine isolates an item. If the item is already quarantined its
// analysis snapshot and risk level are refreshed in place.
func (s *QuarantineService) Quarantine(itemType, identifier string, analysis interface{}, riskLevel, notes string) (*models.QuarantineEntry, error) {
	if !models.ValidItemType(itemType) {
		return nil, ErrInvalidItemType
	}
	identifier = NormalizeValue(itemType, identifier)

	snapshot, err := json.Marshal(analysis)
	if err != nil {
		return nil, err
	}

	// the insert can lose a race against another writer; the retry then updates the winner's row
	for attempt := 0; attempt < 2; attempt++ {
		entry, err := s.refresh(itemType, identifier, snapshot, riskLevel, notes)
		if err != nil || entry != nil {
			return entry, err
		}

		entry = &models.QuarantineEntry{
			ItemType:       itemType,
			Identifier:     identifier,
			ThreatAnalysis: snapshot,
			RiskLevel:      riskLevel,
			Status:         models.QuarantineActive,
			QuarantinedAt:  s.now(),
			Notes:          notes,
		}
		if err := s.db.Create(entry).Error; err == nil {
			return entry, nil
		} else if attempt == 1 {
			return nil, err
		}
	}
	return nil, ErrPolicyConflict
}

func (s *QuarantineService) refresh(itemType, identifier string, snapshot json.RawMessage, riskLevel, notes string) (*models.QuarantineEntry, error) {
	cols := []string{"threat_analysis", "risk_level", "quarantined_at"}
	if notes != "" {
		cols = append(cols, "notes")
	}
	res := s.db.Model(&models.QuarantineEntry{}).
		Where("item_type = ? AND identifier = ? AND status = ?", itemType, identifier, models.QuarantineActive).
		Select(cols).
		Updates(&models.QuarantineEntry{
			ThreatAnalysis: snapshot,
			RiskLevel:      riskLevel,
			QuarantinedAt:  s.now(),
			Notes:          notes,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	var entry models.QuarantineEntry
	err := s.db.Where("item_type = ? AND identifier = ? AND status = ?", itemType, identifier, models.QuarantineActive).First(&entry).Error
	return &entry, err
}

// List returns entries newest first. An empty status returns every entry.
func (s *QuarantineService) List(status string, limit, offset int) ([]models.QuarantineEntry, int64, error) {
	q := s.db.Model(&models.QuarantineEntry{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.QuarantineEntry
	err := q.Order("quarantined_at desc").Order("id desc").Limit(limit).Offset(offset).Find(&entries).Error
	return entries, total, err
}

// Get returns an entry by ID.
func (s *QuarantineService) Get(id uint) (*models.QuarantineEntry, error) {
	var entry models.QuarantineEntry
	if err := s.db.First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuarantineNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// Release moves a quarantined entry to released. Releasing an entry that is
// not quarantined returns ErrPolicyConflict and changes nothing.
func (s *QuarantineService) Release(id uint, actor, notes string) (*models.QuarantineEntry, error) {
	now := s.now()
	updates := map[string]interface{}{
		"status":      models.QuarantineReleased,
		"released_at": now,
		"released_by": actor,
	}
	if notes != "" {
		updates["notes"] = notes
	}
	res := s.db.Model(&models.QuarantineEntry{}).
		Where("id = ? AND status = ?", id, models.QuarantineActive).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(id); err != nil {
			return nil, err
		}
		return nil, ErrPolicyConflict
	}
	return s.Get(id)
}

// IsQuarantined reports whether the item has an active quarantine row.
func (s *QuarantineService) IsQuarantined(itemType, identifier string) (bool, error) {
	var count int64
	err := s.db.Model(&models.QuarantineEntry{}).
		Where("item_type = ? AND identifier = ? AND status = ?", itemType, NormalizeValue(itemType, identifier), models.QuarantineActive).
		Count(&count).Error
	return count > 0, err
}

// CountActive returns the number of quarantined entries.
func (s *QuarantineService) CountActive() (int64, error) {
	var count int64
	err := s.db.Model(&models.QuarantineEntry{}).Where("status = ?", models.QuarantineActive).Count(&count).Error
	return count, err
}
