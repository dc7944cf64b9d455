package services

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/containrrr/shoutrrr"
	"gorm.io/gorm"

	"github.com/Wikid82/phishguard/internal/logger"
	"github.com/Wikid82/phishguard/internal/models"
	"github.com/Wikid82/phishguard/internal/util"
)

// Notification events.
const (
	EventAutoBlock  = "auto_block"
	EventQuarantine = "quarantine"
	EventBlacklist  = "blacklist"
)

var ErrNotificationNotFound = errors.New("notification not found")

// ValidEvent reports whether event is one the engine raises.
func ValidEvent(event string) bool {
	switch event {
	case EventAutoBlock, EventQuarantine, EventBlacklist:
		return true
	}
	return false
}

// NotificationFilter narrows List. Zero values match everything.
type NotificationFilter struct {
	UnreadOnly bool
	Event      string
	Limit      int
	Offset     int
}

// NotificationService stores in-app alerts and forwards them to the
// configured shoutrrr destinations.
type NotificationService struct {
	DB   *gorm.DB
	urls []string
	send func(url, message string) error
	wg   sync.WaitGroup
}

func NewNotificationService(db *gorm.DB, urls []string) *NotificationService {
	return &NotificationService{
		DB:   db,
		urls: urls,
		send: func(url, message string) error { return shoutrrr.Send(url, message) },
	}
}

var discordWebhookRegex = regexp.MustCompile(`^https://discord(?:app)?\.com/api/webhooks/(\d+)/([a-zA-Z0-9_-]+)`)

// normalizeURL rewrites plain Discord webhook URLs into shoutrrr form.
func normalizeURL(rawURL string) string {
	matches := discordWebhookRegex.FindStringSubmatch(rawURL)
	if len(matches) == 3 {
		return fmt.Sprintf("discord://%s@%s", matches[2], matches[1])
	}
	return rawURL
}

// Internal Notifications (DB)

func (s *NotificationService) Create(nType models.NotificationType, event, title, message string) (*models.Notification, error) {
	notification := &models.Notification{
		Type:    nType,
		Event:   event,
		Title:   title,
		Message: message,
		Read:    false,
	}
	result := s.DB.Create(notification)
	return notification, result.Error
}

// List returns alerts newest first.
func (s *NotificationService) List(f NotificationFilter) ([]models.Notification, error) {
	var notifications []models.Notification
	query := s.DB.Order("created_at desc").Order("id")
	if f.UnreadOnly {
		query = query.Where("read = ?", false)
	}
	if f.Event != "" {
		query = query.Where("event = ?", f.Event)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit).Offset(f.Offset)
	}
	err := query.Find(&notifications).Error
	return notifications, err
}

func (s *NotificationService) MarkAsRead(id string) error {
	res := s.DB.Model(&models.Notification{}).Where("id = ?", id).Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllAsRead() error {
	return s.DB.Model(&models.Notification{}).Where("read = ?", false).Update("read", true).Error
}

// External Notifications (Shoutrrr)

// Notify records the alert and sends it to every external destination in
// the background. Delivery failures are logged and never returned.
func (s *NotificationService) Notify(event, title, message string) {
	if _, err := s.Create(models.NotificationTypeWarning, event, title, message); err != nil {
		logger.Log().WithError(err).WithField("event", event).Warn("failed to store notification")
	}

	msg := fmt.Sprintf("%s\n\n%s", title, message)
	for i, raw := range s.urls {
		s.wg.Add(1)
		go func(idx int, url string) {
			defer s.wg.Done()
			if err := s.send(normalizeURL(url), msg); err != nil {
				// destinations embed credentials; log the index only
				logger.Log().WithError(err).WithFields(map[string]interface{}{
					"event":       event,
					"destination": idx,
					"title":       util.SanitizeForLog(title),
				}).Warn("failed to send notification")
			}
		}(i, raw)
	}
}

// Wait blocks until in-flight external sends finish.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}
