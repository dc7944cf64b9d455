package services

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/Wikid82/phishguard/internal/models"
)

// AttackLogService appends and queries attack records.
type AttackLogService struct {
	db *gorm.DB
}

func NewAttackLogService(db *gorm.DB) *AttackLogService {
	return &AttackLogService{db: db}
}

// Record appends an attack. metadata and report are stored as JSON snapshots.
func (s *AttackLogService) Record(clientIP, attackType, riskLevel string, metadata, report interface{}) (*models.AttackLog, error) {
	entry := &models.AttackLog{
		ClientIP:   clientIP,
		AttackType: attackType,
		RiskLevel:  riskLevel,
	}
	var err error
	if metadata != nil {
		if entry.Metadata, err = json.Marshal(metadata); err != nil {
			return nil, err
		}
	}
	if report != nil {
		if entry.Report, err = json.Marshal(report); err != nil {
			return nil, err
		}
	}
	if err := s.db.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// Since returns the attacks from ip at or after since, oldest first.
func (s *AttackLogService) Since(ip string, since time.Time) ([]models.AttackLog, error) {
	var logs []models.AttackLog
	err := s.db.Where("client_ip = ? AND created_at >= ?", ip, since).
		Order("created_at asc").Find(&logs).Error
	return logs, err
}

// List returns recent attacks, newest first, optionally for one IP.
func (s *AttackLogService) List(ip string, limit, offset int) ([]models.AttackLog, int64, error) {
	q := s.db.Model(&models.AttackLog{})
	if ip != "" {
		q = q.Where("client_ip = ?", ip)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var logs []models.AttackLog
	err := q.Order("created_at desc").Order("id desc").Limit(limit).Offset(offset).Find(&logs).Error
	return logs, total, err
}

// PruneBefore deletes attacks older than cutoff and returns how many were removed.
func (s *AttackLogService) PruneBefore(cutoff time.Time) (int64, error) {
	res := s.db.Where("created_at < ?", cutoff).Delete(&models.AttackLog{})
	return res.RowsAffected, res.Error
}
