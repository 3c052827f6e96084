package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types produced by this service.
const (
	NotificationTypeStreak = "streak"
)

// Notification is an in-app message for a user. ReadAt nil means unread.
type Notification struct {
	ID        uint           `gorm:"primaryKey" json:"-"`
	PublicID  string         `gorm:"size:36;uniqueIndex;not null" json:"id"`
	UserID    uint           `gorm:"index;not null" json:"user_id"`
	Type      string         `gorm:"size:32;not null" json:"type"`
	Title     string         `gorm:"size:255;not null" json:"title"`
	Message   string         `gorm:"type:text;not null" json:"message"`
	Icon      string         `gorm:"size:16" json:"icon"`
	Data      datatypes.JSON `json:"data"`
	ReadAt    *time.Time     `gorm:"index" json:"read_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (n Notification) IsRead() bool { return n.ReadAt != nil }
