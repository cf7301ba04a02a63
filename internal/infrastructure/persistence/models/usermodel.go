package models

import (
	"time"

	"gorm.io/gorm"
)

// UserModel is the persistence model for subscribers.
// This is the anti-corruption layer between domain and database.
type UserModel struct {
	ID                   uint   `gorm:"primarykey"`
	AccountNumber        string `gorm:"uniqueIndex;not null;size:36"`
	AdminID              *uint  `gorm:"index"`
	Status               string `gorm:"not null;default:disabled;size:16;index:idx_users_status"`
	DataLimit            *int64
	UsedTraffic          int64  `gorm:"not null;default:0"`
	ExpireAt             *time.Time
	OnHoldExpireDuration *int64
	OnHoldTimeout        *time.Time
	DataLimitResetStrategy string `gorm:"not null;default:none;size:8"`
	ActiveNodeID         *uint   `gorm:"index"`
	OnlineAt             *time.Time
	AutoDeleteInDays     *int
	LastTrafficResetAt   time.Time
	LastStatusChange     time.Time `gorm:"index"`
	SubRevokedAt         *time.Time
	SubUpdatedAt         *time.Time
	EditedAt             *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
	DeletedAt            gorm.DeletedAt `gorm:"index"`

	Proxies  []ProxyModel    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	NextPlan *NextPlanModel  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// BeforeCreate hook for GORM
func (u *UserModel) BeforeCreate(tx *gorm.DB) error {
	if u.Status == "" {
		u.Status = "disabled"
	}
	if u.DataLimitResetStrategy == "" {
		u.DataLimitResetStrategy = "none"
	}
	return nil
}

// NextPlanModel is the persistence model for a user's pending plan.
// At most one row per user.
type NextPlanModel struct {
	ID                  uint `gorm:"primarykey"`
	UserID              uint `gorm:"uniqueIndex;not null"`
	DataLimit           int64
	ExpireSeconds       *int64
	AddRemainingTraffic bool `gorm:"not null;default:false"`
	FireOnEither        bool `gorm:"not null;default:true"`
	CreatedAt           time.Time
}

// TableName specifies the table name for GORM
func (NextPlanModel) TableName() string {
	return "next_plans"
}
