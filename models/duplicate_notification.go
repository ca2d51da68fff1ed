package models

import (
	"time"

	"github.com/google/uuid"
)

// Duplicate type constants
const (
	DuplicateTypePhone  = "phone"
	DuplicateTypeWechat = "wechat"
	DuplicateTypeBoth   = "both"
)

// Notification status lifecycle: pending -> sent -> read -> handled.
// The engine only creates rows in pending; the delivery collaborator
// advances them.
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusRead    = "read"
	NotificationStatusHandled = "handled"
)

// DuplicateNotification is the advisory alert produced when a new lead
// shares contact identifiers with an existing active lead. It is addressed
// to the original lead's current owner; the new lead still goes through
// normal assignment.
type DuplicateNotification struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	NewLeadID          string     `gorm:"size:64;not null;index:idx_dup_notifications_new" json:"new_leadid"`
	OriginalLeadID     string     `gorm:"size:64;not null;index:idx_dup_notifications_original" json:"original_leadid"`
	DuplicateType      string     `gorm:"size:16;not null" json:"duplicate_type"`
	OwnerUserID        *int64     `gorm:"index:idx_dup_notifications_owner" json:"owner_user_id,omitempty"`
	CustomerPhone      *string    `gorm:"size:32" json:"customer_phone,omitempty"`
	CustomerWechat     *string    `gorm:"size:64" json:"customer_wechat,omitempty"`
	NotificationStatus string     `gorm:"size:16;not null;default:'pending';index:idx_dup_notifications_status" json:"notification_status"`
	HandledAt          *time.Time `json:"handled_at,omitempty"`
	CreatedAt          time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}

func (DuplicateNotification) TableName() string {
	return "duplicate_notifications"
}

// DuplicateNotificationFilter represents filter criteria for notification queries
type DuplicateNotificationFilter struct {
	NewLeadID          *string
	OriginalLeadID     *string
	DuplicateType      *string
	OwnerUserID        *int64
	NotificationStatus *string
	CreatedAfter       *time.Time
	CreatedBefore      *time.Time
}

func (n *DuplicateNotification) IsHandled() bool {
	return n.NotificationStatus == NotificationStatusHandled
}
