package dto

// TimeRangesDTO restricts a rule to a time window on a set of weekdays
// (1=Monday .. 7=Sunday)
type TimeRangesDTO struct {
	Start    string `json:"start,omitempty" validate:"omitempty,len=5"`
	End      string `json:"end,omitempty" validate:"omitempty,len=5"`
	Weekdays []int  `json:"weekdays,omitempty" validate:"omitempty,dive,min=1,max=7"`
}

// CreateAllocationRuleRequest creates a new allocation rule. Nil filter
// slices mean match-all; empty slices are rejected at write time.
type CreateAllocationRuleRequest struct {
	Name                string         `json:"name" validate:"required,max=255"`
	Description         *string        `json:"description,omitempty"`
	OrganizationID      string         `json:"organization_id" validate:"required,uuid"`
	IsActive            *bool          `json:"is_active,omitempty"`
	Priority            int            `json:"priority"`
	SourceTypes         []string       `json:"source_types,omitempty"`
	LeadTypes           []string       `json:"lead_types,omitempty"`
	CommunityTypes      []string       `json:"community_types,omitempty"`
	TimeRanges          *TimeRangesDTO `json:"time_ranges,omitempty"`
	TargetType          string         `json:"target_type" validate:"required,oneof=user organization"`
	TargetUsers         []int64        `json:"target_users,omitempty"`
	TargetOrganizations []string       `json:"target_organizations,omitempty" validate:"omitempty,dive,uuid"`
	AllocationMethod    string         `json:"allocation_method" validate:"required,oneof=round_robin random workload"`
}

// UpdateAllocationRuleRequest updates an existing rule; nil fields are left
// unchanged
type UpdateAllocationRuleRequest struct {
	ID                  string         `json:"id" validate:"required,uuid"`
	Name                *string        `json:"name,omitempty" validate:"omitempty,max=255"`
	Description         *string        `json:"description,omitempty"`
	IsActive            *bool          `json:"is_active,omitempty"`
	Priority            *int           `json:"priority,omitempty"`
	SourceTypes         []string       `json:"source_types,omitempty"`
	LeadTypes           []string       `json:"lead_types,omitempty"`
	CommunityTypes      []string       `json:"community_types,omitempty"`
	TimeRanges          *TimeRangesDTO `json:"time_ranges,omitempty"`
	TargetType          *string        `json:"target_type,omitempty" validate:"omitempty,oneof=user organization"`
	TargetUsers         []int64        `json:"target_users,omitempty"`
	TargetOrganizations []string       `json:"target_organizations,omitempty" validate:"omitempty,dive,uuid"`
	AllocationMethod    *string        `json:"allocation_method,omitempty" validate:"omitempty,oneof=round_robin random workload"`
}

// AllocationRuleItem represents a rule row in listings
type AllocationRuleItem struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Description         *string        `json:"description,omitempty"`
	OrganizationID      string         `json:"organization_id"`
	IsActive            bool           `json:"is_active"`
	Priority            int            `json:"priority"`
	SourceTypes         []string       `json:"source_types,omitempty"`
	LeadTypes           []string       `json:"lead_types,omitempty"`
	CommunityTypes      []string       `json:"community_types,omitempty"`
	TimeRanges          *TimeRangesDTO `json:"time_ranges,omitempty"`
	TargetType          string         `json:"target_type"`
	TargetUsers         []int64        `json:"target_users,omitempty"`
	TargetOrganizations []string       `json:"target_organizations,omitempty"`
	AllocationMethod    string         `json:"allocation_method"`
	CreatedAt           string         `json:"created_at"`
}

// ListAllocationRulesRequest filters the rule listing
type ListAllocationRulesRequest struct {
	OrganizationID string `json:"organization_id" validate:"required,uuid"`
	IsActive       *bool  `json:"is_active,omitempty"`
}

// DeleteAllocationRuleResponse reports how the delete was carried out:
// rules referenced by logs are deactivated instead of removed
type DeleteAllocationRuleResponse struct {
	ID          string `json:"id"`
	Deactivated bool   `json:"deactivated"`
}
