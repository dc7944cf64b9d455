package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Wikid82/phishguard/internal/models"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrInvalidTransition is returned when a status update does not match the
	// expected current state. The row is left unchanged.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// SubmissionService persists submissions and their forward-only status transitions.
type SubmissionService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSubmissionService returns a SubmissionService using the provided DB.
func NewSubmissionService(db *gorm.DB) *SubmissionService {
	return &SubmissionService{db: db, now: time.Now}
}

// Create inserts a queued submission.
func (s *SubmissionService) Create(url string, userID *uint) (*models.Submission, error) {
	sub := &models.Submission{
		URL:    url,
		UserID: userID,
		Status: models.StatusQueued,
	}
	if err := s.db.Create(sub).Error; err != nil {
		return nil, err
	}
	return sub, nil
}

// Get returns the submission for jobID.
func (s *SubmissionService) Get(jobID string) (*models.Submission, error) {
	var sub models.Submission
	if err := s.db.Where("job_id = ?", jobID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// SubmissionFilter narrows List.
type SubmissionFilter struct {
	Status models.SubmissionStatus
	UserID *uint
	Limit  int
	Offset int
}

// List returns submissions newest first together with the total matching count.
func (s *SubmissionService) List(f SubmissionFilter) ([]models.Submission, int64, error) {
	q := s.db.Model(&models.Submission{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var subs []models.Submission
	if err := q.Order("created_at desc").Order("id desc").Limit(limit).Offset(f.Offset).Find(&subs).Error; err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// Claim moves a queued submission to processing. It returns false without
// error when the job is not queued, so duplicate dispatch is a no-op.
func (s *SubmissionService) Claim(jobID string) (bool, error) {
	now := s.now()
	res := s.db.Model(&models.Submission{}).
		Where("job_id = ? AND status = ?", jobID, models.StatusQueued).
		Updates(map[string]interface{}{
			"status":     models.StatusProcessing,
			"started_at": now,
			"attempts":   gorm.Expr("attempts + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Complete stores the result of a processing submission and marks it done.
func (s *SubmissionService) Complete(jobID string, result *models.AnalysisResult) error {
	if result == nil {
		return fmt.Errorf("complete %s: nil result", jobID)
	}
	now := s.now()
	res := s.db.Model(&models.Submission{}).
		Where("job_id = ? AND status = ?", jobID, models.StatusProcessing).
		Select("status", "result", "processed_at", "error_message").
		Updates(&models.Submission{
			Status:       models.StatusDone,
			Result:       result,
			ProcessedAt:  &now,
			ErrorMessage: "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// Fail marks a queued or processing submission failed with msg. No result is stored.
func (s *SubmissionService) Fail(jobID, msg string) error {
	now := s.now()
	res := s.db.Model(&models.Submission{}).
		Where("job_id = ? AND status IN ?", jobID, []models.SubmissionStatus{models.StatusQueued, models.StatusProcessing}).
		Updates(map[string]interface{}{
			"status":        models.StatusFailed,
			"error_message": msg,
			"processed_at":  now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// Release returns a processing submission to queued so it can be dispatched
// again after a transient failure.
func (s *SubmissionService) Release(jobID string) error {
	res := s.db.Model(&models.Submission{}).
		Where("job_id = ? AND status = ?", jobID, models.StatusProcessing).
		Updates(map[string]interface{}{
			"status":     models.StatusQueued,
			"started_at": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// StaleQueued returns queued submissions created before cutoff.
func (s *SubmissionService) StaleQueued(cutoff time.Time, limit int) ([]models.Submission, error) {
	var subs []models.Submission
	err := s.db.Where("status = ? AND created_at < ?", models.StatusQueued, cutoff).
		Order("created_at asc").Limit(limit).Find(&subs).Error
	return subs, err
}

// FailAbandoned fails processing submissions started before cutoff. A worker
// that died mid-analysis leaves such rows behind.
func (s *SubmissionService) FailAbandoned(cutoff time.Time, msg string) (int64, error) {
	res := s.db.Model(&models.Submission{}).
		Where("status = ? AND started_at < ?", models.StatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":        models.StatusFailed,
			"error_message": msg,
			"processed_at":  s.now(),
		})
	return res.RowsAffected, res.Error
}

// Stats aggregates submission counts for the dashboard.
type Stats struct {
	Total                    int64   `json:"total"`
	Queued                   int64   `json:"queued"`
	Processing               int64   `json:"processing"`
	Done                     int64   `json:"done"`
	Failed                   int64   `json:"failed"`
	High                     int64   `json:"alto"`
	Medium                   int64   `json:"medio"`
	Low                      int64   `json:"baixo"`
	AvgProcessingTimeSeconds float64 `json:"avg_processing_time_seconds"`
	TodayCount               int64   `json:"today_count"`
}

// Stats computes counts by status and level, the mean processing time of done
// jobs and the number of submissions created since local midnight.
func (s *SubmissionService) Stats() (Stats, error) {
	var st Stats

	type statusCount struct {
		Status models.SubmissionStatus
		Count  int64
	}
	var counts []statusCount
	if err := s.db.Model(&models.Submission{}).Select("status, count(*) as count").Group("status").Scan(&counts).Error; err != nil {
		return st, err
	}
	for _, c := range counts {
		st.Total += c.Count
		switch c.Status {
		case models.StatusQueued:
			st.Queued = c.Count
		case models.StatusProcessing:
			st.Processing = c.Count
		case models.StatusDone:
			st.Done = c.Count
		case models.StatusFailed:
			st.Failed = c.Count
		}
	}

	// levels live inside the JSON result; done rows are loaded in batches
	var totalSeconds float64
	var timed int64
	var batch []models.Submission
	err := s.db.Where("status = ?", models.StatusDone).
		Select("id", "result", "created_at", "processed_at").
		FindInBatches(&batch, 200, func(tx *gorm.DB, _ int) error {
			for _, sub := range batch {
				if sub.Result != nil {
					switch sub.Result.Level {
					case models.LevelHigh:
						st.High++
					case models.LevelMedium:
						st.Medium++
					case models.LevelLow:
						st.Low++
					}
				}
				if sub.ProcessedAt != nil {
					totalSeconds += sub.ProcessedAt.Sub(sub.CreatedAt).Seconds()
					timed++
				}
			}
			return nil
		}).Error
	if err != nil {
		return st, err
	}
	if timed > 0 {
		st.AvgProcessingTimeSeconds = totalSeconds / float64(timed)
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := s.db.Model(&models.Submission{}).Where("created_at >= ?", midnight).Count(&st.TodayCount).Error; err != nil {
		return st, err
	}
	return st, nil
}
