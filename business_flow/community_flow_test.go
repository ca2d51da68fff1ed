package businessflow

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/linkcrm/lead-engine/app/dto"
	"github.com/linkcrm/lead-engine/models"
	"github.com/linkcrm/lead-engine/repository"
	"github.com/linkcrm/lead-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMappingRepo serves mapping rules in the repository's contract order.
type fakeMappingRepo struct {
	repository.CommunityMappingRuleRepository
	rules []*models.CommunityMappingRule
}

func (f *fakeMappingRepo) ListActive(_ context.Context) ([]*models.CommunityMappingRule, error) {
	active := make([]*models.CommunityMappingRule, 0, len(f.rules))
	for _, r := range f.rules {
		if r.Active() {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		if active[i].ConfidenceScore != active[j].ConfidenceScore {
			return active[i].ConfidenceScore > active[j].ConfidenceScore
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

func mappingRule(name, community string, priority, confidence int, campaignIDs ...string) *models.CommunityMappingRule {
	return &models.CommunityMappingRule{
		ID:              uuid.New(),
		Name:            name,
		TargetCommunity: community,
		Priority:        priority,
		ConfidenceScore: confidence,
		CampaignIDs:     pq.StringArray(campaignIDs),
		IsActive:        utils.ToPtr(true),
		CreatedAt:       utils.UTCNow(),
	}
}

func newMappingFlow(rules ...*models.CommunityMappingRule) CommunityFlow {
	return NewCommunityFlow(&fakeMappingRepo{rules: rules}, nil, nil, nil, nil, nil)
}

func TestMapCommunity(t *testing.T) {
	ctx := context.Background()
	lead := &models.Lead{LeadID: "lead-1", CampaignID: utils.ToPtr("camp-1")}

	t.Run("NoRules", func(t *testing.T) {
		result, err := newMappingFlow().MapCommunity(ctx, lead)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("PriorityDescWins", func(t *testing.T) {
		low := mappingRule("low", "江南府", 10, 100, "camp-1")
		high := mappingRule("high", "翡翠湾", 20, 50, "camp-1")

		result, err := newMappingFlow(low, high).MapCommunity(ctx, lead)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "翡翠湾", result.Community)
		assert.Equal(t, "high", result.Rule.Name)
	})

	t.Run("ConfidenceBreaksPriorityTie", func(t *testing.T) {
		weak := mappingRule("weak", "江南府", 10, 60, "camp-1")
		strong := mappingRule("strong", "翡翠湾", 10, 90, "camp-1")

		result, err := newMappingFlow(weak, strong).MapCommunity(ctx, lead)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "strong", result.Rule.Name)
	})

	t.Run("InactiveRulesAreIgnored", func(t *testing.T) {
		inactive := mappingRule("inactive", "翡翠湾", 99, 100, "camp-1")
		inactive.IsActive = utils.ToPtr(false)

		result, err := newMappingFlow(inactive).MapCommunity(ctx, lead)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("NonMatchingHighPriorityFallsThrough", func(t *testing.T) {
		other := mappingRule("other", "云麓", 50, 100, "camp-9")
		match := mappingRule("match", "翡翠湾", 10, 100, "camp-1")

		result, err := newMappingFlow(other, match).MapCommunity(ctx, lead)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "match", result.Rule.Name)
	})
}

func TestTestMapping(t *testing.T) {
	ctx := context.Background()
	metadata := NewClientMetadata("127.0.0.1", "test-agent")
	rule := mappingRule("douyin", "翡翠湾", 10, 80, "camp-1")
	flow := newMappingFlow(rule)

	t.Run("Matched", func(t *testing.T) {
		res, err := flow.TestMapping(ctx, &dto.TestCommunityMappingRequest{
			CampaignID: utils.ToPtr("camp-1"),
		}, metadata)
		require.NoError(t, err)
		assert.True(t, res.Matched)
		require.NotNil(t, res.TargetCommunity)
		assert.Equal(t, "翡翠湾", *res.TargetCommunity)
		require.NotNil(t, res.Confidence)
		assert.Equal(t, 80, *res.Confidence)
		require.NotNil(t, res.MappingRuleID)
		assert.Equal(t, rule.ID.String(), *res.MappingRuleID)
	})

	t.Run("NotMatched", func(t *testing.T) {
		res, err := flow.TestMapping(ctx, &dto.TestCommunityMappingRequest{
			CampaignID: utils.ToPtr("camp-9"),
		}, metadata)
		require.NoError(t, err)
		assert.False(t, res.Matched)
		assert.Nil(t, res.TargetCommunity)
	})
}

// reallocationEnv wires a CommunityFlow over in-memory stores with one
// organization whose footprint is the given communities.
type reallocationEnv struct {
	org       *models.Organization
	leads     *fakeLeadStore
	followups *fakeFollowupStore
	logs      *fakeLogStore
	flow      CommunityFlow
}

func newReallocationEnv(admin *int64, communities ...string) *reallocationEnv {
	env := &reallocationEnv{
		org: &models.Organization{
			ID:             uuid.New(),
			Name:           "华东一区",
			AdminProfileID: admin,
			Communities:    pq.StringArray(communities),
		},
		leads:     newFakeLeadStore(),
		followups: newFakeFollowupStore(),
		logs:      &fakeLogStore{},
	}
	env.leads.followups = env.followups

	orgs := &fakeOrgStore{orgs: map[uuid.UUID]*models.Organization{env.org.ID: env.org}}
	env.flow = NewCommunityFlow(&fakeMappingRepo{}, env.leads, env.followups, env.logs, orgs, fakeTxManager{})
	return env
}

func (e *reallocationEnv) addLead(leadID string, owner *int64, community *string) {
	ctx := context.Background()
	_ = e.leads.Save(ctx, &models.Lead{
		LeadID:    leadID,
		Source:    models.LeadSourceDouyin,
		CreatedAt: utils.UTCNow(),
	})
	_ = e.followups.Save(ctx, &models.Followup{
		LeadID:               leadID,
		InterviewsalesUserID: owner,
		ScheduledCommunity:   community,
		FollowupStage:        models.FollowupStagePending,
		CreatedAt:            utils.UTCNow(),
	})
}

func TestReallocateByCommunity(t *testing.T) {
	ctx := context.Background()
	metadata := NewClientMetadata("127.0.0.1", "test-agent")
	admin := int64(99)

	t.Run("MovesLeadToCommunityAdmin", func(t *testing.T) {
		env := newReallocationEnv(&admin, "翡翠湾")
		env.addLead("lead-1", utils.ToPtr(int64(11)), nil)

		resp, err := env.flow.ReallocateByCommunity(ctx, &dto.ReallocateByCommunityRequest{
			LeadID:    "lead-1",
			Community: "翡翠湾",
		}, metadata)
		require.NoError(t, err)
		assert.False(t, resp.Skipped)
		require.NotNil(t, resp.AssignedUserID)
		assert.Equal(t, admin, *resp.AssignedUserID)

		followup, err := env.followups.ByLeadID(ctx, "lead-1")
		require.NoError(t, err)
		require.NotNil(t, followup.InterviewsalesUserID)
		assert.Equal(t, admin, *followup.InterviewsalesUserID)
		require.NotNil(t, followup.ScheduledCommunity)
		assert.Equal(t, "翡翠湾", *followup.ScheduledCommunity)

		require.Len(t, env.logs.rows, 1)
		row := env.logs.rows[0]
		assert.Equal(t, models.AllocationMethodCommunity, row.AllocationMethod)
		require.NotNil(t, row.AllocationDetails.Community)
		assert.Equal(t, "翡翠湾", row.AllocationDetails.Community.Community)
		assert.Nil(t, row.AllocationDetails.Community.MappingRuleID)
	})

	t.Run("AlreadyOwnedLeadIsSkipped", func(t *testing.T) {
		env := newReallocationEnv(&admin, "翡翠湾")
		env.addLead("lead-1", &admin, utils.ToPtr("翡翠湾"))

		resp, err := env.flow.ReallocateByCommunity(ctx, &dto.ReallocateByCommunityRequest{
			LeadID:    "lead-1",
			Community: "翡翠湾",
		}, metadata)
		require.NoError(t, err)
		assert.True(t, resp.Skipped)
		assert.Nil(t, resp.AssignedUserID)

		// A skip leaves no audit trail
		assert.Empty(t, env.logs.rows)
	})

	t.Run("LeadNotFound", func(t *testing.T) {
		env := newReallocationEnv(&admin, "翡翠湾")

		_, err := env.flow.ReallocateByCommunity(ctx, &dto.ReallocateByCommunityRequest{
			LeadID:    "missing",
			Community: "翡翠湾",
		}, metadata)
		assert.True(t, IsLeadNotFound(err))
	})

	t.Run("NoOrganizationCoversCommunity", func(t *testing.T) {
		env := newReallocationEnv(&admin, "翡翠湾")
		env.addLead("lead-1", utils.ToPtr(int64(11)), nil)

		_, err := env.flow.ReallocateByCommunity(ctx, &dto.ReallocateByCommunityRequest{
			LeadID:    "lead-1",
			Community: "云麓",
		}, metadata)
		assert.True(t, IsNoOrganizationForCommunity(err))
	})

	t.Run("OrganizationWithoutAdmin", func(t *testing.T) {
		env := newReallocationEnv(nil, "翡翠湾")
		env.addLead("lead-1", utils.ToPtr(int64(11)), nil)

		_, err := env.flow.ReallocateByCommunity(ctx, &dto.ReallocateByCommunityRequest{
			LeadID:    "lead-1",
			Community: "翡翠湾",
		}, metadata)
		assert.True(t, IsOrganizationHasNoAdmin(err))
	})

	t.Run("MissingFollowup", func(t *testing.T) {
		env := newReallocationEnv(&admin, "翡翠湾")
		require.NoError(t, env.leads.Save(ctx, &models.Lead{
			LeadID:    "lead-1",
			Source:    models.LeadSourceDouyin,
			CreatedAt: utils.UTCNow(),
		}))

		_, err := env.flow.ReallocateByCommunity(ctx, &dto.ReallocateByCommunityRequest{
			LeadID:    "lead-1",
			Community: "翡翠湾",
		}, metadata)
		assert.True(t, IsFollowupNotFound(err))
	})
}

func TestBatchReallocateByCommunity(t *testing.T) {
	ctx := context.Background()
	metadata := NewClientMetadata("127.0.0.1", "test-agent")
	admin := int64(99)

	t.Run("ReallocatesEveryLeadOfTheCommunity", func(t *testing.T) {
		env := newReallocationEnv(&admin, "翡翠湾")
		env.addLead("lead-1", utils.ToPtr(int64(11)), utils.ToPtr("翡翠湾"))
		env.addLead("lead-2", utils.ToPtr(int64(22)), utils.ToPtr("翡翠湾"))
		env.addLead("lead-3", utils.ToPtr(int64(22)), utils.ToPtr("江南府"))

		resp, err := env.flow.BatchReallocateByCommunity(ctx, &dto.BatchReallocateByCommunityRequest{
			Community: "翡翠湾",
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Total)
		assert.Equal(t, 2, resp.Reallocated)
		assert.Equal(t, 0, resp.Skipped)
		assert.Equal(t, 0, resp.Failed)

		for _, leadID := range []string{"lead-1", "lead-2"} {
			followup, err := env.followups.ByLeadID(ctx, leadID)
			require.NoError(t, err)
			require.NotNil(t, followup.InterviewsalesUserID)
			assert.Equal(t, admin, *followup.InterviewsalesUserID)
		}
	})

	t.Run("RerunIsIdempotent", func(t *testing.T) {
		env := newReallocationEnv(&admin, "翡翠湾")
		env.addLead("lead-1", utils.ToPtr(int64(11)), utils.ToPtr("翡翠湾"))

		first, err := env.flow.BatchReallocateByCommunity(ctx, &dto.BatchReallocateByCommunityRequest{
			Community: "翡翠湾",
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, 1, first.Reallocated)

		second, err := env.flow.BatchReallocateByCommunity(ctx, &dto.BatchReallocateByCommunityRequest{
			Community: "翡翠湾",
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, 1, second.Total)
		assert.Equal(t, 0, second.Reallocated)
		assert.Equal(t, 1, second.Skipped)
		assert.Len(t, env.logs.rows, 1)
	})

	t.Run("DriftedOwnerIsReallocatedOnRerun", func(t *testing.T) {
		env := newReallocationEnv(&admin, "翡翠湾")
		env.addLead("lead-1", utils.ToPtr(int64(11)), utils.ToPtr("翡翠湾"))

		first, err := env.flow.BatchReallocateByCommunity(ctx, &dto.BatchReallocateByCommunityRequest{
			Community: "翡翠湾",
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, 1, first.Reallocated)

		// Ownership moves away between runs, e.g. through a manual reassign
		drifted := int64(42)
		require.NoError(t, env.followups.UpdateOwner(ctx, "lead-1", &drifted, nil))

		second, err := env.flow.BatchReallocateByCommunity(ctx, &dto.BatchReallocateByCommunityRequest{
			Community: "翡翠湾",
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, 1, second.Reallocated)
		assert.Equal(t, 0, second.Skipped)

		followup, err := env.followups.ByLeadID(ctx, "lead-1")
		require.NoError(t, err)
		require.NotNil(t, followup.InterviewsalesUserID)
		assert.Equal(t, admin, *followup.InterviewsalesUserID)
		assert.Len(t, env.logs.rows, 2)
	})

	t.Run("FailedLeadDoesNotAbortTheBatch", func(t *testing.T) {
		env := newReallocationEnv(&admin, "翡翠湾")
		env.addLead("lead-1", utils.ToPtr(int64(11)), utils.ToPtr("翡翠湾"))
		env.addLead("lead-2", utils.ToPtr(int64(22)), utils.ToPtr("翡翠湾"))
		env.followups.updateErr = map[string]error{"lead-2": ErrFollowupNotFound}

		resp, err := env.flow.BatchReallocateByCommunity(ctx, &dto.BatchReallocateByCommunityRequest{
			Community: "翡翠湾",
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Total)
		assert.Equal(t, 1, resp.Reallocated)
		assert.Equal(t, 1, resp.Failed)
		assert.Contains(t, resp.Errors, "lead-2")
	})

	t.Run("DateRangeBoundsTheBatch", func(t *testing.T) {
		env := newReallocationEnv(&admin, "翡翠湾")
		env.addLead("lead-1", utils.ToPtr(int64(11)), utils.ToPtr("翡翠湾"))
		env.addLead("lead-2", utils.ToPtr(int64(22)), utils.ToPtr("翡翠湾"))
		env.leads.rows["lead-2"].CreatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

		resp, err := env.flow.BatchReallocateByCommunity(ctx, &dto.BatchReallocateByCommunityRequest{
			Community: "翡翠湾",
			DateStart: utils.ToPtr("2026-01-01"),
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, 1, resp.Total)
		assert.Equal(t, 1, resp.Reallocated)
	})

	t.Run("InvalidDateRange", func(t *testing.T) {
		env := newReallocationEnv(&admin, "翡翠湾")

		_, err := env.flow.BatchReallocateByCommunity(ctx, &dto.BatchReallocateByCommunityRequest{
			Community: "翡翠湾",
			DateStart: utils.ToPtr("2026-08-10"),
			DateEnd:   utils.ToPtr("2026-08-01"),
		}, metadata)
		assert.True(t, IsStartDateAfterEndDate(err))
	})
}
