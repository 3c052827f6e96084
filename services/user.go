package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/learnquest/models"
	"github.com/cppla/learnquest/utils"
)

// ErrUsernameTaken is returned when provisioning a duplicate username.
var ErrUsernameTaken = errors.New("username already exists")

// NewUser is the provisioning payload sent by the identity service.
type NewUser struct {
	Username    string `json:"username" binding:"required,min=3,max=64"`
	Email       string `json:"email" binding:"omitempty,email,max=255"`
	DisplayName string `json:"display_name" binding:"max=128"`
	AvatarURL   string `json:"avatar_url" binding:"omitempty,url,max=512"`
}

// UserService mirrors learner accounts. Model hooks seed and cascade the
// progression rows.
type UserService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewUserService(d Deps) *UserService {
	return &UserService{db: d.DB, log: d.logger().Named("user")}
}

// Create provisions a user together with its zeroed streak and profile.
func (s *UserService) Create(ctx context.Context, in NewUser) (models.User, error) {
	u := models.User{
		Username:    strings.TrimSpace(in.Username),
		Email:       strings.TrimSpace(in.Email),
		DisplayName: utils.SanitizeText(in.DisplayName),
		AvatarURL:   strings.TrimSpace(in.AvatarURL),
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if utils.IsUniqueViolation(err) {
			return models.User{}, ErrUsernameTaken
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user provisioned", zap.Uint("user_id", u.ID), zap.String("username", u.Username))
	return u, nil
}

// Delete removes the user and every progression row it owns.
func (s *UserService) Delete(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.Take(&u, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return tx.Delete(&u).Error
	})
	if errors.Is(err, ErrUserNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.Info("user deleted", zap.Uint("user_id", userID))
	return nil
}

// Get loads one user.
func (s *UserService) Get(ctx context.Context, userID uint) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Take(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}
