package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CommunityMappingRule infers a target physical community from ad-campaign
// metadata. A rule matches when at least one of its populated match keys
// equals the corresponding lead field (exact, case-sensitive). Rules are
// evaluated by priority descending, then confidence score descending.
// At least one match key must be non-null, enforced at write time.
type CommunityMappingRule struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name            string         `gorm:"size:255;not null" json:"name"`
	Description     *string        `gorm:"type:text" json:"description,omitempty"`
	TargetCommunity string         `gorm:"size:255;not null" json:"target_community"`
	Priority        int            `gorm:"not null;default:0;index:idx_community_mapping_priority" json:"priority"`
	ConfidenceScore int            `gorm:"not null;default:100" json:"confidence_score"`
	CampaignIDs     pq.StringArray `gorm:"type:text[]" json:"campaign_ids,omitempty"`
	CampaignNames   pq.StringArray `gorm:"type:text[]" json:"campaign_names,omitempty"`
	UnitIDs         pq.StringArray `gorm:"type:text[]" json:"unit_ids,omitempty"`
	UnitNames       pq.StringArray `gorm:"type:text[]" json:"unit_names,omitempty"`
	CreativeIDs     pq.StringArray `gorm:"type:text[]" json:"creative_ids,omitempty"`
	CreativeNames   pq.StringArray `gorm:"type:text[]" json:"creative_names,omitempty"`
	Areas           pq.StringArray `gorm:"type:text[]" json:"areas,omitempty"`
	Locations       pq.StringArray `gorm:"type:text[]" json:"locations,omitempty"`
	IsActive        *bool          `gorm:"default:true;index:idx_community_mapping_active" json:"is_active"`
	CreatedAt       time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty"`
}

func (CommunityMappingRule) TableName() string {
	return "community_mapping_rules"
}

// CommunityMappingRuleFilter represents filter criteria for mapping rule queries
type CommunityMappingRuleFilter struct {
	ID              *uuid.UUID
	Name            *string
	TargetCommunity *string
	IsActive        *bool
}

func (r *CommunityMappingRule) Active() bool {
	return r.IsActive != nil && *r.IsActive
}

// HasMatchKey reports whether any match key is populated.
func (r *CommunityMappingRule) HasMatchKey() bool {
	for _, set := range [][]string{
		r.CampaignIDs, r.CampaignNames,
		r.UnitIDs, r.UnitNames,
		r.CreativeIDs, r.CreativeNames,
		r.Areas, r.Locations,
	} {
		if len(set) > 0 {
			return true
		}
	}
	return false
}

func containsExact(set pq.StringArray, value *string) bool {
	if len(set) == 0 || value == nil {
		return false
	}
	for _, v := range set {
		if v == *value {
			return true
		}
	}
	return false
}

// MatchesLead reports whether any populated match key equals the
// corresponding lead field.
func (r *CommunityMappingRule) MatchesLead(lead *Lead) bool {
	return containsExact(r.CampaignIDs, lead.CampaignID) ||
		containsExact(r.CampaignNames, lead.CampaignName) ||
		containsExact(r.UnitIDs, lead.UnitID) ||
		containsExact(r.UnitNames, lead.UnitName) ||
		containsExact(r.CreativeIDs, lead.CreativeID) ||
		containsExact(r.CreativeNames, lead.CreativeName) ||
		containsExact(r.Areas, lead.Area) ||
		containsExact(r.Locations, lead.Location)
}
