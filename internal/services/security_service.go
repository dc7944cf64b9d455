package services

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Wikid82/phishguard/internal/models"
)

// Decision sources.
const (
	SourceShield = "shield"
	SourceEngine = "engine"
	SourceManual = "manual"
)

type SecurityService struct {
	db *gorm.DB
}

// NewSecurityService returns a SecurityService using the provided DB
func NewSecurityService(db *gorm.DB) *SecurityService {
	return &SecurityService{db: db}
}

// LogDecision stores a security decision record
func (s *SecurityService) LogDecision(d *models.SecurityDecision) error {
	if d == nil {
		return nil
	}
	if d.UUID == "" {
		d.UUID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	return s.db.Create(d).Error
}

// ListDecisions returns recent security decisions, ordered by created_at desc.
// A non-empty ip narrows the list to that address.
func (s *SecurityService) ListDecisions(ip string, limit int) ([]models.SecurityDecision, error) {
	var res []models.SecurityDecision
	q := s.db.Order("created_at desc").Order("id desc")
	if ip != "" {
		q = q.Where("ip = ?", ip)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&res).Error; err != nil {
		return nil, err
	}
	return res, nil
}

// LogAudit stores an operator change.
func (s *SecurityService) LogAudit(a *models.AdminAudit) error {
	if a == nil {
		return nil
	}
	return s.db.Create(a).Error
}

// ListAudits returns recent audit entries, newest first.
func (s *SecurityService) ListAudits(limit int) ([]models.AdminAudit, error) {
	var res []models.AdminAudit
	q := s.db.Order("created_at desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&res).Error; err != nil {
		return nil, err
	}
	return res, nil
}
