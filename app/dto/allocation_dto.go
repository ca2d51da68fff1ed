package dto

// AssignmentDirective is the typed side-channel for manual assignment at
// lead creation. It replaces directives smuggled into free-text remark
// fields; the engine never parses prose.
type AssignmentDirective struct {
	AssignedUserID *int64  `json:"assigned_user_id,omitempty" validate:"omitempty,gt=0"`
	Community      *string `json:"community,omitempty" validate:"omitempty,max=255"`
	Reason         string  `json:"reason,omitempty" validate:"max=500"`
}

// LeadPayload carries the intake attributes of a new lead. LeadID comes
// from the ad platform; when absent the engine mints one.
type LeadPayload struct {
	LeadID       *string `json:"leadid,omitempty" validate:"omitempty,max=64"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Wechat       *string `json:"wechat,omitempty" validate:"omitempty,max=64"`
	Source       string  `json:"source" validate:"required,max=64"`
	LeadType     string  `json:"leadtype" validate:"max=64"`
	CampaignID   *string `json:"campaignid,omitempty"`
	CampaignName *string `json:"campaignname,omitempty"`
	UnitID       *string `json:"unitid,omitempty"`
	UnitName     *string `json:"unitname,omitempty"`
	CreativeID   *string `json:"creativedid,omitempty"`
	CreativeName *string `json:"creativename,omitempty"`
	Area         *string `json:"area,omitempty"`
	Location     *string `json:"location,omitempty"`
	Remark       *string `json:"remark,omitempty"`
}

// AllocateLeadRequest is the lead-created event consumed by the engine
type AllocateLeadRequest struct {
	OrganizationID string               `json:"organization_id" validate:"required,uuid"`
	Lead           LeadPayload          `json:"lead_data" validate:"required"`
	Directive      *AssignmentDirective `json:"directive,omitempty"`
}

// AllocateLeadResponse reports the assignment decision for a new lead
type AllocateLeadResponse struct {
	LeadID           string  `json:"leadid"`
	Assigned         bool    `json:"assigned"`
	AssignedUserID   *int64  `json:"assigned_user_id,omitempty"`
	AssignedUserName *string `json:"assigned_user_name,omitempty"`
	Community        *string `json:"community,omitempty"`
	AllocationMethod string  `json:"allocation_method"`
	MatchedRuleID    *string `json:"matched_rule_id,omitempty"`
	IsDuplicate      bool    `json:"is_duplicate"`
	DuplicateType    *string `json:"duplicate_type,omitempty"`
	FailureCode      *string `json:"failure_code,omitempty"`
	LatencyMS        int64   `json:"latency_ms"`
}

// ManualReassignRequest moves a lead to an explicit user with a reason
type ManualReassignRequest struct {
	LeadID    string `json:"leadid" validate:"required,max=64"`
	NewUserID int64  `json:"new_user_id" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"max=500"`
}

// ManualReassignResponse confirms a manual reassignment
type ManualReassignResponse struct {
	LeadID           string `json:"leadid"`
	AssignedUserID   int64  `json:"assigned_user_id"`
	AssignedUserName string `json:"assigned_user_name"`
}

// TestAllocationRequest evaluates rules against a hypothetical lead without
// persisting any effect
type TestAllocationRequest struct {
	OrganizationID string      `json:"organization_id" validate:"required,uuid"`
	Lead           LeadPayload `json:"lead_data" validate:"required"`
}

// TestAllocationResponse reports the dry-run outcome
type TestAllocationResponse struct {
	Matched          bool    `json:"matched"`
	MatchedRuleID    *string `json:"matched_rule_id,omitempty"`
	MatchedRuleName  *string `json:"matched_rule_name,omitempty"`
	AllocationMethod string  `json:"allocation_method"`
	WouldAssignTo    *int64  `json:"would_assign_to,omitempty"`
	FailureCode      *string `json:"failure_code,omitempty"`
}
