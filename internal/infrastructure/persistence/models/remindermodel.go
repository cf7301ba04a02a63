package models

import "time"

// ReminderModel marks a fired notification threshold for a user.
// Unique on (user, type, threshold).
type ReminderModel struct {
	ID        uint   `gorm:"primarykey"`
	UserID    uint   `gorm:"not null;uniqueIndex:idx_reminders_user_type_threshold"`
	Type      string `gorm:"not null;size:24;uniqueIndex:idx_reminders_user_type_threshold"`
	Threshold *int   `gorm:"uniqueIndex:idx_reminders_user_type_threshold"`
	ExpiresAt *time.Time `gorm:"index"`
	CreatedAt time.Time
}

// TableName specifies the table name for GORM
func (ReminderModel) TableName() string {
	return "reminders"
}
