package dto

// AllocationStatsRequest bounds the statistics window by creation date
type AllocationStatsRequest struct {
	OrganizationID string  `json:"organization_id" validate:"required,uuid"`
	DateStart      *string `json:"date_start,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DateEnd        *string `json:"date_end,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// MethodCount is the per-method slice of the allocation breakdown
type MethodCount struct {
	Method string `json:"method"`
	Count  int64  `json:"count"`
}

// UserCount is the per-assignee slice of the allocation breakdown
type UserCount struct {
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	Count    int64  `json:"count"`
}

// AllocationStatsResponse summarizes allocation outcomes over the window
type AllocationStatsResponse struct {
	OrganizationID string        `json:"organization_id"`
	DateStart      *string       `json:"date_start,omitempty"`
	DateEnd        *string       `json:"date_end,omitempty"`
	TotalLeads     int64         `json:"total_leads"`
	AllocatedLeads int64         `json:"allocated_leads"`
	FailedLeads    int64         `json:"failed_leads"`
	DuplicateLeads int64         `json:"duplicate_leads"`
	AllocationRate float64       `json:"allocation_rate"`
	DuplicateRate  float64       `json:"duplicate_rate"`
	AvgLatencyMS   float64       `json:"avg_latency_ms"`
	ByMethod       []MethodCount `json:"by_method"`
	ByAssignee     []UserCount   `json:"by_assignee"`
	CacheHit       bool          `json:"cache_hit"`
}
