package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Organization is a sales team. Its Communities array is the footprint used
// by community reallocation to re-derive ownership: the designated admin
// profile becomes the owner of leads mapped into one of its communities.
type Organization struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name           string         `gorm:"size:255;not null" json:"name"`
	ParentID       *uuid.UUID     `gorm:"type:uuid;index:idx_organizations_parent" json:"parent_id,omitempty"`
	AdminProfileID *int64         `gorm:"index:idx_organizations_admin" json:"admin_profile_id,omitempty"`
	Communities    pq.StringArray `gorm:"type:text[]" json:"communities,omitempty"`
	CreatedAt      time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`
}

func (Organization) TableName() string {
	return "organizations"
}

// OrganizationFilter represents filter criteria for organization queries
type OrganizationFilter struct {
	ID       *uuid.UUID
	Name     *string
	ParentID *uuid.UUID
}

// CoversCommunity reports whether the community is inside the footprint.
func (o *Organization) CoversCommunity(community string) bool {
	for _, c := range o.Communities {
		if c == community {
			return true
		}
	}
	return false
}
