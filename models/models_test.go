package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/linkcrm/lead-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeRangesCovers(t *testing.T) {
	// 2026-08-24 is a Monday
	monday := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
	sunday := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)

	t.Run("NilMatchesAnyTime", func(t *testing.T) {
		var tr *TimeRanges
		assert.True(t, tr.Covers(monday))
		assert.True(t, tr.Covers(sunday))
	})

	t.Run("StartInclusiveEndExclusive", func(t *testing.T) {
		tr := &TimeRanges{Start: "10:30", End: "18:00"}
		assert.True(t, tr.Covers(monday))
		assert.False(t, tr.Covers(time.Date(2026, 8, 24, 10, 29, 0, 0, time.UTC)))
		assert.False(t, tr.Covers(time.Date(2026, 8, 24, 18, 0, 0, 0, time.UTC)))
		assert.True(t, tr.Covers(time.Date(2026, 8, 24, 17, 59, 0, 0, time.UTC)))
	})

	t.Run("WeekdaysUseMondayAsOne", func(t *testing.T) {
		tr := &TimeRanges{Weekdays: []int{1}}
		assert.True(t, tr.Covers(monday))
		assert.False(t, tr.Covers(sunday))

		tr = &TimeRanges{Weekdays: []int{7}}
		assert.True(t, tr.Covers(sunday))
		assert.False(t, tr.Covers(monday))
	})

	t.Run("WeekdayAndClockBothRequired", func(t *testing.T) {
		tr := &TimeRanges{Start: "09:00", End: "12:00", Weekdays: []int{1, 2, 3, 4, 5}}
		assert.True(t, tr.Covers(monday))
		assert.False(t, tr.Covers(sunday))
		assert.False(t, tr.Covers(time.Date(2026, 8, 24, 13, 0, 0, 0, time.UTC)))
	})
}

func TestTimeRangesValidate(t *testing.T) {
	t.Run("NilIsValid", func(t *testing.T) {
		var tr *TimeRanges
		assert.NoError(t, tr.Validate())
	})

	t.Run("ValidWindow", func(t *testing.T) {
		tr := &TimeRanges{Start: "09:00", End: "18:00", Weekdays: []int{1, 7}}
		assert.NoError(t, tr.Validate())
	})

	t.Run("MalformedClock", func(t *testing.T) {
		tr := &TimeRanges{Start: "25:00"}
		assert.Error(t, tr.Validate())

		tr = &TimeRanges{End: "9am"}
		assert.Error(t, tr.Validate())
	})

	t.Run("WeekdayOutOfRange", func(t *testing.T) {
		tr := &TimeRanges{Weekdays: []int{0}}
		assert.Error(t, tr.Validate())

		tr = &TimeRanges{Weekdays: []int{8}}
		assert.Error(t, tr.Validate())
	})
}

func TestAllocationRuleFilters(t *testing.T) {
	t.Run("NullFilterMatchesEverything", func(t *testing.T) {
		rule := &AllocationRule{}
		assert.True(t, rule.MatchesSource(LeadSourceDouyin))
		assert.True(t, rule.MatchesLeadType("表单"))
		assert.True(t, rule.MatchesCommunity("翡翠湾"))
	})

	t.Run("MembershipSet", func(t *testing.T) {
		rule := &AllocationRule{
			SourceTypes: pq.StringArray{LeadSourceDouyin, LeadSourceWeixin},
		}
		assert.True(t, rule.MatchesSource(LeadSourceDouyin))
		assert.False(t, rule.MatchesSource(LeadSourceXiaohong))
	})

	t.Run("Active", func(t *testing.T) {
		rule := &AllocationRule{}
		assert.False(t, rule.Active())

		rule.IsActive = utils.ToPtr(false)
		assert.False(t, rule.Active())

		rule.IsActive = utils.ToPtr(true)
		assert.True(t, rule.Active())
	})
}

func TestRoundRobinCursorNextPosition(t *testing.T) {
	cursor := &RoundRobinCursor{RuleID: uuid.New(), Position: -1}
	assert.Equal(t, 0, cursor.NextPosition(3))

	cursor.Position = 0
	assert.Equal(t, 1, cursor.NextPosition(3))

	cursor.Position = 2
	assert.Equal(t, 0, cursor.NextPosition(3))

	// Pool shrank below the stored position
	cursor.Position = 5
	assert.Equal(t, 0, cursor.NextPosition(3))

	assert.Equal(t, 0, cursor.NextPosition(0))
}

func TestFollowupIsTerminal(t *testing.T) {
	open := []string{
		FollowupStagePending,
		FollowupStageConfirm,
		FollowupStageScheduled,
		FollowupStageVisited,
	}
	for _, stage := range open {
		f := &Followup{FollowupStage: stage}
		assert.False(t, f.IsTerminal(), stage)
	}

	for _, stage := range TerminalFollowupStages {
		f := &Followup{FollowupStage: stage}
		assert.True(t, f.IsTerminal(), stage)
	}
}

func TestOrganizationCoversCommunity(t *testing.T) {
	org := &Organization{
		ID:          uuid.New(),
		Name:        "华东一区",
		Communities: pq.StringArray{"翡翠湾", "江南府"},
	}

	assert.True(t, org.CoversCommunity("翡翠湾"))
	assert.False(t, org.CoversCommunity("云麓"))

	empty := &Organization{ID: uuid.New(), Name: "空"}
	assert.False(t, empty.CoversCommunity("翡翠湾"))
}

func TestCommunityMappingRuleMatching(t *testing.T) {
	rule := &CommunityMappingRule{
		ID:              uuid.New(),
		Name:            "抖音翡翠湾",
		TargetCommunity: "翡翠湾",
		CampaignIDs:     pq.StringArray{"camp-1"},
		Areas:           pq.StringArray{"浦东"},
		IsActive:        utils.ToPtr(true),
	}

	t.Run("HasMatchKey", func(t *testing.T) {
		assert.True(t, rule.HasMatchKey())
		assert.False(t, (&CommunityMappingRule{Name: "bare"}).HasMatchKey())
	})

	t.Run("AnyPopulatedKeyMatches", func(t *testing.T) {
		assert.True(t, rule.MatchesLead(&Lead{CampaignID: utils.ToPtr("camp-1")}))
		assert.True(t, rule.MatchesLead(&Lead{Area: utils.ToPtr("浦东")}))
		assert.False(t, rule.MatchesLead(&Lead{CampaignID: utils.ToPtr("camp-2")}))
		assert.False(t, rule.MatchesLead(&Lead{}))
	})

	t.Run("MatchIsExactAndCaseSensitive", func(t *testing.T) {
		assert.False(t, rule.MatchesLead(&Lead{CampaignID: utils.ToPtr("CAMP-1")}))
		assert.False(t, rule.MatchesLead(&Lead{CampaignID: utils.ToPtr("camp-1 ")}))
	})
}

func TestDuplicateNotificationIsHandled(t *testing.T) {
	n := &DuplicateNotification{NotificationStatus: NotificationStatusPending}
	assert.False(t, n.IsHandled())

	n.NotificationStatus = NotificationStatusHandled
	assert.True(t, n.IsHandled())
}

func TestAllocationLogIsFailure(t *testing.T) {
	log := &AllocationLog{AllocationMethod: AllocationMethodRoundRobin}
	assert.False(t, log.IsFailure())

	log.AllocationMethod = AllocationMethodFailed
	assert.True(t, log.IsFailure())
}

func TestTimeRangesScanRoundTrip(t *testing.T) {
	tr := TimeRanges{Start: "09:00", End: "18:00", Weekdays: []int{1, 2, 3}}

	value, err := tr.Value()
	require.NoError(t, err)

	var decoded TimeRanges
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, tr, decoded)
}
