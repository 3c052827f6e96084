package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/cppla/learnquest/clock"
	"github.com/cppla/learnquest/models"
	"github.com/cppla/learnquest/utils"
)

// Notifier receives streak growth signals. Implementations must return
// immediately and never fail the caller.
type Notifier interface {
	NotifyStreakIncreased(userID uint, streak int)
}

const notificationQueueSize = 256

// NotificationView is the API shape of a notification.
type NotificationView struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Read      bool           `json:"read"`
	Icon      string         `json:"icon"`
	Data      datatypes.JSON `json:"data"`
}

// NotificationService persists in-app notifications from a background worker.
type NotificationService struct {
	db        *gorm.DB
	clock     clock.Clock
	metrics   *Metrics
	log       *zap.Logger
	retention time.Duration

	queue  chan models.Notification
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewNotificationService(d Deps) *NotificationService {
	days := d.Config.NotificationRetentionDays
	if days <= 0 {
		days = 30
	}
	return &NotificationService{
		db:        d.DB,
		clock:     d.Clock,
		metrics:   d.Metrics,
		log:       d.logger().Named("notification"),
		retention: time.Duration(days) * 24 * time.Hour,
		queue:     make(chan models.Notification, notificationQueueSize),
	}
}

// NotifyStreakIncreased enqueues a streak notification. A full queue drops it.
func (s *NotificationService) NotifyStreakIncreased(userID uint, streak int) {
	n := streakNotification(userID, streak, s.clock.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.metrics.notificationDropped()
		return
	}
	select {
	case s.queue <- n:
	default:
		s.metrics.notificationDropped()
		s.log.Warn("notification queue full, dropping", zap.Uint("user_id", userID), zap.Int("streak", streak))
	}
}

func streakNotification(userID uint, streak int, now time.Time) models.Notification {
	data, _ := json.Marshal(map[string]interface{}{"streak": streak})
	return models.Notification{
		PublicID:  uuid.NewString(),
		UserID:    userID,
		Type:      models.NotificationTypeStreak,
		Title:     utils.SanitizeText("Streak increased!"),
		Message:   utils.SanitizeText(fmt.Sprintf("You're on a %d-day streak. Keep it going!", streak)),
		Icon:      "🔥",
		Data:      datatypes.JSON(data),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start runs the writer until ctx ends or Close is called.
func (s *NotificationService) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case n, ok := <-s.queue:
				if !ok {
					return
				}
				s.persist(ctx, n)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops accepting notifications, drains the queue and waits for the writer.
func (s *NotificationService) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *NotificationService) persist(ctx context.Context, n models.Notification) {
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		s.metrics.notificationDropped()
		s.log.Error("persist notification failed", zap.Uint("user_id", n.UserID), zap.Error(err))
	}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uint, limit int) ([]NotificationView, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]NotificationView, 0, len(rows))
	for _, n := range rows {
		out = append(out, NotificationView{
			ID:        n.PublicID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			Timestamp: n.CreatedAt,
			Read:      n.IsRead(),
			Icon:      n.Icon,
			Data:      n.Data,
		})
	}
	return out, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID uint, id string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("public_id = ? AND user_id = ?", id, userID).
		Update("read_at", s.clock.Now())
	if res.Error != nil {
		return fmt.Errorf("mark notification read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of the user and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", s.clock.Now())
	if res.Error != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Delete removes one of the user's notifications.
func (s *NotificationService) Delete(ctx context.Context, userID uint, id string) error {
	res := s.db.WithContext(ctx).
		Where("public_id = ? AND user_id = ?", id, userID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return fmt.Errorf("delete notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// Prune deletes read notifications older than the retention window.
func (s *NotificationService) Prune(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-s.retention)
	res := s.db.WithContext(ctx).
		Where("read_at IS NOT NULL AND created_at < ?", cutoff).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// StartPruner runs Prune every interval until ctx ends.
func (s *NotificationService) StartPruner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Prune(ctx)
				if err != nil {
					s.log.Warn("notification prune failed", zap.Error(err))
					continue
				}
				if n > 0 {
					s.log.Info("pruned notifications", zap.Int64("rows", n))
				}
			}
		}
	}()
}
