package models

import (
	"time"

	"github.com/google/uuid"
)

// AllocationLog is the append-only audit trail of the allocation engine.
// Every decision, successful or failed, produces exactly one row before
// control returns to the caller; rows are never updated.
type AllocationLog struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	LeadID            string            `gorm:"size:64;not null;index:idx_allocation_logs_leadid" json:"leadid"`
	AssignedUserID    *int64            `gorm:"index:idx_allocation_logs_user" json:"assigned_user_id,omitempty"`
	OrganizationID    *uuid.UUID        `gorm:"type:uuid;index:idx_allocation_logs_org" json:"organization_id,omitempty"`
	AllocationMethod  string            `gorm:"size:32;not null;index:idx_allocation_logs_method" json:"allocation_method"`
	IsDuplicate       *bool             `gorm:"default:false;index:idx_allocation_logs_duplicate" json:"is_duplicate"`
	AllocationDetails AllocationDetails `gorm:"type:jsonb" json:"allocation_details"`
	LatencyMS         int64             `gorm:"not null;default:0" json:"latency_ms"`
	CreatedAt         time.Time         `gorm:"default:CURRENT_TIMESTAMP;index:idx_allocation_logs_created_at" json:"created_at"`
}

func (AllocationLog) TableName() string {
	return "allocation_logs"
}

// AllocationLogFilter represents filter criteria for allocation log queries
type AllocationLogFilter struct {
	LeadID           *string
	AssignedUserID   *int64
	OrganizationID   *uuid.UUID
	AllocationMethod *string
	IsDuplicate      *bool
	CreatedAfter     *time.Time
	CreatedBefore    *time.Time
}

func (l *AllocationLog) IsFailure() bool {
	return l.AllocationMethod == AllocationMethodFailed
}
