package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubmissionStatus is the lifecycle state of an analysis job.
type SubmissionStatus string

const (
	StatusQueued     SubmissionStatus = "queued"
	StatusProcessing SubmissionStatus = "processing"
	StatusDone       SubmissionStatus = "done"
	StatusFailed     SubmissionStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Risk levels reported on a finished analysis.
const (
	LevelHigh   = "alto"
	LevelMedium = "médio"
	LevelLow    = "baixo"
)

// Submission is one request to analyze a URL, tracked through its lifecycle.
// Status moves forward only: queued -> processing -> done|failed.
type Submission struct {
	ID           uint             `json:"id" gorm:"primaryKey"`
	JobID        string           `json:"job_id" gorm:"uniqueIndex;not null"`
	URL          string           `json:"url" gorm:"not null"`
	UserID       *uint            `json:"user_id,omitempty" gorm:"index"`
	Status       SubmissionStatus `json:"status" gorm:"index;not null;default:'queued'"`
	Result       *AnalysisResult  `json:"result,omitempty" gorm:"serializer:json"`
	ErrorMessage string           `json:"error_message,omitempty" gorm:"type:text"`
	Attempts     int              `json:"attempts" gorm:"default:0"`
	CreatedAt    time.Time        `json:"created_at" gorm:"index"`
	StartedAt    *time.Time       `json:"started_at,omitempty"`
	ProcessedAt  *time.Time       `json:"processed_at,omitempty"`
}

// BeforeCreate assigns a job id and the initial status.
func (s *Submission) BeforeCreate(tx *gorm.DB) (err error) {
	if s.JobID == "" {
		s.JobID = uuid.New().String()
	}
	if s.Status == "" {
		s.Status = StatusQueued
	}
	return
}

// Check is the outcome of one named analysis step.
type Check struct {
	Name    string      `json:"name"`
	OK      bool        `json:"ok"`
	Reason  string      `json:"reason"`
	Details interface{} `json:"details,omitempty"`
}

// TrustSummary is the trust scorer output attached to a finished analysis.
type TrustSummary struct {
	Score          float64  `json:"trust_score"`
	Level          string   `json:"trust_level"`
	IsTrusted      bool     `json:"is_trusted"`
	Issues         []string `json:"issues"`
	Info           []string `json:"info"`
	Recommendation string   `json:"recommendation"`
}

// AnalysisResult is the payload persisted on a done submission.
type AnalysisResult struct {
	URL    string        `json:"url"`
	JobID  string        `json:"job_id"`
	Score  int           `json:"score"`
	Level  string        `json:"level"`
	Checks []Check       `json:"checks"`
	Tips   []string      `json:"tips"`
	Trust  *TrustSummary `json:"trust,omitempty"`
}

// HasCheck reports whether a check with the given name was recorded.
func (r *AnalysisResult) HasCheck(name string) bool {
	if r == nil {
		return false
	}
	for _, c := range r.Checks {
		if c.Name == name {
			return true
		}
	}
	return false
}
