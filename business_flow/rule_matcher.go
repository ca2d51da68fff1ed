package businessflow

import (
	"sort"
	"time"

	"github.com/linkcrm/lead-engine/models"
)

// LeadSignals carries the attributes of a new lead that rule filters see.
// Community is the hint derived before matching (directive or mapping); a
// nil community only satisfies rules without a community filter.
type LeadSignals struct {
	Source    string
	LeadType  string
	Community *string
	At        time.Time
}

// RuleMatcher selects the allocation rule that governs a new lead
type RuleMatcher interface {
	// Match returns the winning rule, or nil when no active rule applies.
	// Precedence is priority descending, then created_at ascending.
	Match(rules []*models.AllocationRule, sig LeadSignals) *models.AllocationRule
}

// RuleMatcherImpl implements RuleMatcher
type RuleMatcherImpl struct{}

// NewRuleMatcher constructs a RuleMatcher
func NewRuleMatcher() RuleMatcher {
	return &RuleMatcherImpl{}
}

func (m *RuleMatcherImpl) Match(rules []*models.AllocationRule, sig LeadSignals) *models.AllocationRule {
	ordered := make([]*models.AllocationRule, 0, len(rules))
	for _, r := range rules {
		if r.Active() {
			ordered = append(ordered, r)
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	for _, r := range ordered {
		if m.matches(r, sig) {
			return r
		}
	}
	return nil
}

func (m *RuleMatcherImpl) matches(r *models.AllocationRule, sig LeadSignals) bool {
	if !r.MatchesSource(sig.Source) {
		return false
	}
	if !r.MatchesLeadType(sig.LeadType) {
		return false
	}
	if r.CommunityTypes != nil {
		if sig.Community == nil || !r.MatchesCommunity(*sig.Community) {
			return false
		}
	}
	return r.MatchesTime(sig.At)
}
