// Package models contains domain entities and business models for the lead allocation engine
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Allocation method constants
const (
	AllocationMethodRoundRobin = "round_robin"
	AllocationMethodRandom     = "random"
	AllocationMethodWorkload   = "workload"

	// Methods recorded in logs but never configured on a rule
	AllocationMethodDefault        = "default"
	AllocationMethodManual         = "manual"
	AllocationMethodManualReassign = "manual_reassign"
	AllocationMethodCommunity      = "community_reallocation"
	AllocationMethodFailed         = "failed"
)

// Target type constants
const (
	TargetTypeUser         = "user"
	TargetTypeOrganization = "organization"
)

// TimeRanges restricts a rule to a time-of-day window on a set of weekdays.
// Weekdays use 1..7 for Monday..Sunday. A nil TimeRanges matches at any time.
type TimeRanges struct {
	Start    string `json:"start,omitempty"` // "HH:MM", inclusive
	End      string `json:"end,omitempty"`   // "HH:MM", exclusive
	Weekdays []int  `json:"weekdays,omitempty"`
}

func (t TimeRanges) Value() (driver.Value, error) {
	return json.Marshal(t)
}

func (t *TimeRanges) Scan(value any) error {
	if value == nil {
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("unsupported type %T for TimeRanges", value)
		}
		b = []byte(s)
	}
	return json.Unmarshal(b, t)
}

// Covers reports whether the given instant falls inside the window.
func (t *TimeRanges) Covers(at time.Time) bool {
	if t == nil {
		return true
	}

	if len(t.Weekdays) > 0 {
		// time.Weekday is 0=Sunday; rules use 1=Monday..7=Sunday
		day := int(at.Weekday())
		if day == 0 {
			day = 7
		}
		found := false
		for _, wd := range t.Weekdays {
			if wd == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	minute := at.Hour()*60 + at.Minute()
	if t.Start != "" {
		start, err := parseClock(t.Start)
		if err != nil || minute < start {
			return false
		}
	}
	if t.End != "" {
		end, err := parseClock(t.End)
		if err != nil || minute >= end {
			return false
		}
	}

	return true
}

// Validate rejects malformed windows at rule write time.
func (t *TimeRanges) Validate() error {
	if t == nil {
		return nil
	}
	if t.Start != "" {
		if _, err := parseClock(t.Start); err != nil {
			return fmt.Errorf("invalid start time %q: %w", t.Start, err)
		}
	}
	if t.End != "" {
		if _, err := parseClock(t.End); err != nil {
			return fmt.Errorf("invalid end time %q: %w", t.End, err)
		}
	}
	for _, wd := range t.Weekdays {
		if wd < 1 || wd > 7 {
			return fmt.Errorf("weekday %d out of range 1..7", wd)
		}
	}
	return nil
}

func parseClock(s string) (int, error) {
	parsed, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// AllocationRule routes new leads to a target pool. Filter columns are
// NULL for match-all; a non-empty array is a membership set. Empty arrays
// are rejected at write time so match time never sees them.
type AllocationRule struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name                string         `gorm:"size:255;not null" json:"name"`
	Description         *string        `gorm:"type:text" json:"description,omitempty"`
	OrganizationID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_allocation_rules_org" json:"organization_id"`
	IsActive            *bool          `gorm:"default:true;index:idx_allocation_rules_active" json:"is_active"`
	Priority            int            `gorm:"not null;default:0;index:idx_allocation_rules_priority" json:"priority"`
	SourceTypes         pq.StringArray `gorm:"type:text[]" json:"source_types,omitempty"`
	LeadTypes           pq.StringArray `gorm:"type:text[]" json:"lead_types,omitempty"`
	CommunityTypes      pq.StringArray `gorm:"type:text[]" json:"community_types,omitempty"`
	TimeRanges          *TimeRanges    `gorm:"type:jsonb" json:"time_ranges,omitempty"`
	TargetType          string         `gorm:"size:20;not null;default:'user'" json:"target_type"`
	TargetUsers         pq.Int64Array  `gorm:"type:bigint[]" json:"target_users,omitempty"`
	TargetOrganizations pq.StringArray `gorm:"type:uuid[]" json:"target_organizations,omitempty"`
	AllocationMethod    string         `gorm:"size:20;not null;default:'round_robin'" json:"allocation_method"`
	CreatedAt           time.Time      `gorm:"default:CURRENT_TIMESTAMP;index:idx_allocation_rules_created_at" json:"created_at"`
	UpdatedAt           *time.Time     `json:"updated_at,omitempty"`
}

func (AllocationRule) TableName() string {
	return "allocation_rules"
}

// AllocationRuleFilter represents filter criteria for rule queries
type AllocationRuleFilter struct {
	ID             *uuid.UUID
	OrganizationID *uuid.UUID
	IsActive       *bool
	TargetType     *string
	Name           *string
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}

func (r *AllocationRule) Active() bool {
	return r.IsActive != nil && *r.IsActive
}

// matchesSet applies null-as-wildcard set membership.
func matchesSet(filter pq.StringArray, value string) bool {
	if filter == nil {
		return true
	}
	for _, v := range filter {
		if v == value {
			return true
		}
	}
	return false
}

// MatchesSource reports whether the lead source satisfies the source filter.
func (r *AllocationRule) MatchesSource(source string) bool {
	return matchesSet(r.SourceTypes, source)
}

// MatchesLeadType reports whether the lead type satisfies the lead type filter.
func (r *AllocationRule) MatchesLeadType(leadType string) bool {
	return matchesSet(r.LeadTypes, leadType)
}

// MatchesCommunity reports whether the community hint satisfies the community filter.
func (r *AllocationRule) MatchesCommunity(community string) bool {
	return matchesSet(r.CommunityTypes, community)
}

// MatchesTime reports whether the rule applies at the given instant.
func (r *AllocationRule) MatchesTime(at time.Time) bool {
	return r.TimeRanges.Covers(at)
}
