package services

import "errors"

var (
	// ErrUserNotFound is returned when an operation targets an unknown user.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidAmount rejects negative or zero XP grants.
	ErrInvalidAmount = errors.New("invalid xp amount")
	// ErrInvalidSource rejects an XP grant without a source or event key.
	ErrInvalidSource = errors.New("invalid xp source")
	// ErrNotificationNotFound is returned for unknown or foreign notification ids.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrStreakContention means the streak row kept changing under us.
	ErrStreakContention = errors.New("streak update contention")
)
