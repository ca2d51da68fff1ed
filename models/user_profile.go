package models

import (
	"time"

	"github.com/google/uuid"
)

// User profile status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusLeft     = "left"
)

// UserProfile is a sales representative. Only active profiles are eligible
// assignment targets.
type UserProfile struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	Nickname       string     `gorm:"size:255;not null" json:"nickname"`
	Status         string     `gorm:"size:16;not null;default:'active';index:idx_users_profile_status" json:"status"`
	OrganizationID *uuid.UUID `gorm:"type:uuid;index:idx_users_profile_org" json:"organization_id,omitempty"`
	CreatedAt      time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

func (UserProfile) TableName() string {
	return "users_profile"
}

// UserProfileFilter represents filter criteria for user profile queries
type UserProfileFilter struct {
	ID             *int64
	Status         *string
	OrganizationID *uuid.UUID
}

func (u *UserProfile) IsActive() bool {
	return u.Status == UserStatusActive
}
