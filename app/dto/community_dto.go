package dto

// CreateCommunityMappingRuleRequest creates a mapping rule. At least one
// match key set must be non-empty.
type CreateCommunityMappingRuleRequest struct {
	Name            string   `json:"name" validate:"required,max=255"`
	Description     *string  `json:"description,omitempty"`
	TargetCommunity string   `json:"target_community" validate:"required,max=255"`
	Priority        int      `json:"priority"`
	ConfidenceScore int      `json:"confidence_score" validate:"min=0,max=100"`
	CampaignIDs     []string `json:"campaign_ids,omitempty"`
	CampaignNames   []string `json:"campaign_names,omitempty"`
	UnitIDs         []string `json:"unit_ids,omitempty"`
	UnitNames       []string `json:"unit_names,omitempty"`
	CreativeIDs     []string `json:"creative_ids,omitempty"`
	CreativeNames   []string `json:"creative_names,omitempty"`
	Areas           []string `json:"areas,omitempty"`
	Locations       []string `json:"locations,omitempty"`
}

// UpdateCommunityMappingRuleRequest updates a mapping rule
type UpdateCommunityMappingRuleRequest struct {
	ID              string   `json:"id" validate:"required,uuid"`
	Name            *string  `json:"name,omitempty" validate:"omitempty,max=255"`
	Description     *string  `json:"description,omitempty"`
	TargetCommunity *string  `json:"target_community,omitempty" validate:"omitempty,max=255"`
	Priority        *int     `json:"priority,omitempty"`
	ConfidenceScore *int     `json:"confidence_score,omitempty" validate:"omitempty,min=0,max=100"`
	IsActive        *bool    `json:"is_active,omitempty"`
	CampaignIDs     []string `json:"campaign_ids,omitempty"`
	CampaignNames   []string `json:"campaign_names,omitempty"`
	UnitIDs         []string `json:"unit_ids,omitempty"`
	UnitNames       []string `json:"unit_names,omitempty"`
	CreativeIDs     []string `json:"creative_ids,omitempty"`
	CreativeNames   []string `json:"creative_names,omitempty"`
	Areas           []string `json:"areas,omitempty"`
	Locations       []string `json:"locations,omitempty"`
}

// CommunityMappingRuleItem represents a mapping rule row in listings
type CommunityMappingRuleItem struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     *string  `json:"description,omitempty"`
	TargetCommunity string   `json:"target_community"`
	Priority        int      `json:"priority"`
	ConfidenceScore int      `json:"confidence_score"`
	IsActive        bool     `json:"is_active"`
	CampaignIDs     []string `json:"campaign_ids,omitempty"`
	CampaignNames   []string `json:"campaign_names,omitempty"`
	UnitIDs         []string `json:"unit_ids,omitempty"`
	UnitNames       []string `json:"unit_names,omitempty"`
	CreativeIDs     []string `json:"creative_ids,omitempty"`
	CreativeNames   []string `json:"creative_names,omitempty"`
	Areas           []string `json:"areas,omitempty"`
	Locations       []string `json:"locations,omitempty"`
	CreatedAt       string   `json:"created_at"`
}

// TestCommunityMappingRequest evaluates mapping rules against hypothetical
// campaign metadata without persisting any effect
type TestCommunityMappingRequest struct {
	CampaignID   *string `json:"campaign_id,omitempty"`
	CampaignName *string `json:"campaign_name,omitempty"`
	UnitID       *string `json:"unit_id,omitempty"`
	UnitName     *string `json:"unit_name,omitempty"`
	CreativeID   *string `json:"creative_id,omitempty"`
	CreativeName *string `json:"creative_name,omitempty"`
	Area         *string `json:"area,omitempty"`
	Location     *string `json:"location,omitempty"`
}

// TestCommunityMappingResponse reports the winning mapping, if any
type TestCommunityMappingResponse struct {
	Matched         bool    `json:"matched"`
	TargetCommunity *string `json:"target_community,omitempty"`
	MappingRuleID   *string `json:"mapping_rule_id,omitempty"`
	MappingRuleName *string `json:"mapping_rule_name,omitempty"`
	Confidence      *int    `json:"confidence,omitempty"`
}

// ReallocateByCommunityRequest reassigns one lead to the organization
// covering the community
type ReallocateByCommunityRequest struct {
	LeadID    string `json:"leadid" validate:"required,max=64"`
	Community string `json:"community" validate:"required,max=255"`
}

// ReallocateByCommunityResponse reports the reallocation outcome
type ReallocateByCommunityResponse struct {
	LeadID         string `json:"leadid"`
	Community      string `json:"community"`
	AssignedUserID *int64 `json:"assigned_user_id,omitempty"`
	Skipped        bool   `json:"skipped"` // already owned by the target admin
}

// BatchReallocateByCommunityRequest applies community reallocation to every
// lead of the community within an optional creation date range
type BatchReallocateByCommunityRequest struct {
	Community string  `json:"community" validate:"required,max=255"`
	DateStart *string `json:"date_start,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DateEnd   *string `json:"date_end,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// BatchReallocateByCommunityResponse summarizes a batch run. Failures carry
// per-lead errors; a failed lead never aborts the batch.
type BatchReallocateByCommunityResponse struct {
	Community   string            `json:"community"`
	Total       int               `json:"total"`
	Reallocated int               `json:"reallocated"`
	Skipped     int               `json:"skipped"`
	Failed      int               `json:"failed"`
	Errors      map[string]string `json:"errors,omitempty"`
}
