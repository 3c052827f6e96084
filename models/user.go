package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// User is the learner identity. Accounts are provisioned by the identity
// collaborator; this service only keeps what progression needs.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Email       string    `gorm:"size:255" json:"email"`
	DisplayName string    `gorm:"size:128" json:"display_name"`
	AvatarURL   string    `gorm:"size:512" json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Name returns the display name, falling back to the username.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

// AfterCreate seeds the zeroed streak and profile of a new account.
func (u *User) AfterCreate(tx *gorm.DB) error {
	onUser := clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}
	if err := tx.Clauses(onUser).Create(&Streak{UserID: u.ID}).Error; err != nil {
		return err
	}
	return tx.Clauses(onUser).Create(NewProfile(u.ID)).Error
}

// AfterDelete removes every progression row owned by the user.
func (u *User) AfterDelete(tx *gorm.DB) error {
	if u.ID == 0 {
		return nil
	}
	for _, owned := range []interface{}{&Streak{}, &Profile{}, &DailyBonusClaim{}, &XPEvent{}, &Notification{}} {
		if err := tx.Where("user_id = ?", u.ID).Delete(owned).Error; err != nil {
			return err
		}
	}
	return nil
}
