package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// AllocationDetails is a tagged union keyed by Method, carrying only the
// facts relevant to that method. Community is also populated alongside the
// method variant when a mapping rule inferred the community hint, so the
// log row records which rule produced it and at what confidence. Stored as
// a jsonb column.
type AllocationDetails struct {
	Method    string            `json:"method"`
	Rule      *RuleDetails      `json:"rule,omitempty"`
	Manual    *ManualDetails    `json:"manual,omitempty"`
	Community *CommunityDetails `json:"community,omitempty"`
	Failure   *FailureDetails   `json:"failure,omitempty"`

	// Set when duplicate detection found a second original via a different
	// identifier than the primary one.
	SecondaryOriginalLeadID *string `json:"secondary_original_leadid,omitempty"`
}

// RuleDetails records which allocation rule produced the decision.
type RuleDetails struct {
	RuleID   uuid.UUID `json:"rule_id"`
	RuleName string    `json:"rule_name"`
	Priority int       `json:"priority"`
}

// ManualDetails records a manual assignment or reassignment.
type ManualDetails struct {
	AssignedBy *int64 `json:"assigned_by,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Source     string `json:"source,omitempty"` // directive | manual_reassign
}

// CommunityDetails records a community-mapping reallocation.
type CommunityDetails struct {
	MappingRuleID   *uuid.UUID `json:"mapping_rule_id,omitempty"`
	MappingRuleName string     `json:"mapping_rule_name,omitempty"`
	Confidence      int        `json:"confidence,omitempty"`
	Community       string     `json:"community"`
}

// FailureDetails records why no assignment was produced.
type FailureDetails struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

func (d AllocationDetails) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *AllocationDetails) Scan(value any) error {
	if value == nil {
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("unsupported type %T for AllocationDetails", value)
		}
		b = []byte(s)
	}
	return json.Unmarshal(b, d)
}

// RuleAllocationDetails builds the variant for a rule-matched decision.
func RuleAllocationDetails(method string, rule *AllocationRule) AllocationDetails {
	return AllocationDetails{
		Method: method,
		Rule: &RuleDetails{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Priority: rule.Priority,
		},
	}
}

// DefaultAllocationDetails builds the variant for the default-pool fallback.
func DefaultAllocationDetails() AllocationDetails {
	return AllocationDetails{Method: AllocationMethodDefault}
}

// ManualAllocationDetails builds the variant for manual assignment paths.
func ManualAllocationDetails(method string, assignedBy *int64, reason, source string) AllocationDetails {
	return AllocationDetails{
		Method: method,
		Manual: &ManualDetails{
			AssignedBy: assignedBy,
			Reason:     reason,
			Source:     source,
		},
	}
}

// MappingCommunityDetails records a community and, when a mapping rule
// produced it, the rule's identity and confidence.
func MappingCommunityDetails(rule *CommunityMappingRule, community string) *CommunityDetails {
	d := &CommunityDetails{Community: community}
	if rule != nil {
		d.MappingRuleID = &rule.ID
		d.MappingRuleName = rule.Name
		d.Confidence = rule.ConfidenceScore
	}
	return d
}

// CommunityAllocationDetails builds the variant for community reallocation.
func CommunityAllocationDetails(rule *CommunityMappingRule, community string) AllocationDetails {
	return AllocationDetails{
		Method:    AllocationMethodCommunity,
		Community: MappingCommunityDetails(rule, community),
	}
}

// FailureAllocationDetails builds the variant for a failed decision.
func FailureAllocationDetails(code, reason string) AllocationDetails {
	return AllocationDetails{
		Method: AllocationMethodFailed,
		Failure: &FailureDetails{
			Code:   code,
			Reason: reason,
		},
	}
}
