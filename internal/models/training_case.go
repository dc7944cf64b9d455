package models

import "time"

// TrainingLesson lists what a user should have noticed in a training case.
type TrainingLesson struct {
	Tips    []string `json:"tips"`
	Signals []string `json:"signals"`
}

// TrainingCase is a seeded phishing example shown in the awareness trainer.
type TrainingCase struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Title       string         `json:"title" gorm:"uniqueIndex;not null"`
	Description string         `json:"description" gorm:"type:text"`
	PayloadURL  string         `json:"payload_url"`
	Lesson      TrainingLesson `json:"lesson" gorm:"serializer:json"`
	CreatedAt   time.Time      `json:"created_at"`
}
