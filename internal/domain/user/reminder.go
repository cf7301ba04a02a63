package user

import (
	"context"
	"time"
)

// ReminderType distinguishes notification reminder kinds.
type ReminderType string

const (
	ReminderExpirationDate ReminderType = "expiration_date"
	ReminderDataUsage      ReminderType = "data_usage"
)

// Reminder marks that a notification threshold has fired for a user, so
// external dispatchers do not repeat it. Unique on (user, type, threshold).
type Reminder struct {
	ID        uint
	UserID    uint
	Type      ReminderType
	Threshold *int
	ExpiresAt *time.Time
}

// ReminderRepository is the persistence contract for notification reminders.
type ReminderRepository interface {
	Create(ctx context.Context, r *Reminder) error
	ListByUser(ctx context.Context, userID uint) ([]Reminder, error)
	DeleteByUser(ctx context.Context, userID uint) error
	// DeleteExpired evicts reminders whose expires_at has passed and
	// returns the number of rows removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
