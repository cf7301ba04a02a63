package models

import (
	"time"

	"gorm.io/gorm"
)

// AdminModel is the persistence model for panel administrators.
type AdminModel struct {
	ID              uint   `gorm:"primarykey"`
	Username        string `gorm:"uniqueIndex;not null;size:64"`
	PasswordHash    string `gorm:"not null;size:128"`
	IsSudo          bool   `gorm:"not null;default:false"`
	PasswordResetAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

// TableName specifies the table name for GORM
func (AdminModel) TableName() string {
	return "admins"
}
