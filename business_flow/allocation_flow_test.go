package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/linkcrm/lead-engine/app/dto"
	"github.com/linkcrm/lead-engine/config"
	"github.com/linkcrm/lead-engine/models"
	"github.com/linkcrm/lead-engine/repository"
	"github.com/linkcrm/lead-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTxManager runs the unit of work directly; persistence fakes are
// in-memory so there is nothing to roll back.
type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// fakeLeadStore keeps saved leads in insertion order so duplicate lookups
// return the earliest original first. When followups is set, ListByCommunity
// resolves community membership through each lead's followup.
type fakeLeadStore struct {
	repository.LeadRepository
	rows      map[string]*models.Lead
	order     []string
	followups *fakeFollowupStore
}

func newFakeLeadStore() *fakeLeadStore {
	return &fakeLeadStore{rows: make(map[string]*models.Lead)}
}

func (f *fakeLeadStore) Save(_ context.Context, lead *models.Lead) error {
	if _, ok := f.rows[lead.LeadID]; !ok {
		f.order = append(f.order, lead.LeadID)
	}
	f.rows[lead.LeadID] = lead
	return nil
}

func (f *fakeLeadStore) ByLeadID(_ context.Context, leadID string) (*models.Lead, error) {
	return f.rows[leadID], nil
}

func (f *fakeLeadStore) FindActiveByPhone(_ context.Context, phone, excludeLeadID string) ([]*models.Lead, error) {
	var out []*models.Lead
	for _, id := range f.order {
		l := f.rows[id]
		if l.LeadID != excludeLeadID && l.Phone != nil && *l.Phone == phone {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLeadStore) FindActiveByWechat(_ context.Context, wechat, excludeLeadID string) ([]*models.Lead, error) {
	var out []*models.Lead
	for _, id := range f.order {
		l := f.rows[id]
		if l.LeadID != excludeLeadID && l.Wechat != nil && *l.Wechat == wechat {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLeadStore) ListByCommunity(_ context.Context, community string, start, end *time.Time) ([]*models.Lead, error) {
	var out []*models.Lead
	for _, id := range f.order {
		l := f.rows[id]
		followup := f.followups.rows[l.LeadID]
		if followup == nil || followup.ScheduledCommunity == nil || *followup.ScheduledCommunity != community {
			continue
		}
		if start != nil && l.CreatedAt.Before(*start) {
			continue
		}
		if end != nil && l.CreatedAt.After(*end) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// fakeFollowupStore mirrors the join used by batch reallocation: a lead
// belongs to a community when its followup is scheduled there.
type fakeFollowupStore struct {
	repository.FollowupRepository
	rows      map[string]*models.Followup
	updateErr map[string]error
}

func newFakeFollowupStore() *fakeFollowupStore {
	return &fakeFollowupStore{rows: make(map[string]*models.Followup)}
}

func (f *fakeFollowupStore) Save(_ context.Context, followup *models.Followup) error {
	f.rows[followup.LeadID] = followup
	return nil
}

func (f *fakeFollowupStore) ByLeadID(_ context.Context, leadID string) (*models.Followup, error) {
	return f.rows[leadID], nil
}

func (f *fakeFollowupStore) UpdateOwner(_ context.Context, leadID string, userID *int64, community *string) error {
	if err := f.updateErr[leadID]; err != nil {
		return err
	}
	followup, ok := f.rows[leadID]
	if !ok {
		return ErrFollowupNotFound
	}
	followup.InterviewsalesUserID = userID
	if community != nil {
		followup.ScheduledCommunity = community
	}
	return nil
}

func (f *fakeFollowupStore) CountOpenByUsers(_ context.Context, userIDs []int64, _ time.Time) (map[int64]int64, error) {
	out := make(map[int64]int64, len(userIDs))
	for _, id := range userIDs {
		out[id] = 0
		for _, followup := range f.rows {
			if followup.InterviewsalesUserID != nil && *followup.InterviewsalesUserID == id && !followup.IsTerminal() {
				out[id]++
			}
		}
	}
	return out, nil
}

// fakeLogStore appends allocation log rows in memory.
type fakeLogStore struct {
	repository.AllocationLogRepository
	rows []*models.AllocationLog
}

func (f *fakeLogStore) Save(_ context.Context, row *models.AllocationLog) error {
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeLogStore) byLead(leadID string) []*models.AllocationLog {
	var out []*models.AllocationLog
	for _, row := range f.rows {
		if row.LeadID == leadID {
			out = append(out, row)
		}
	}
	return out
}

type fakeUserStore struct {
	repository.UserProfileRepository
	users map[int64]*models.UserProfile
}

func (f *fakeUserStore) ByID(_ context.Context, id int64) (*models.UserProfile, error) {
	return f.users[id], nil
}

func (f *fakeUserStore) ListActiveByIDs(_ context.Context, ids []int64) ([]*models.UserProfile, error) {
	var out []*models.UserProfile
	for _, id := range ids {
		if u, ok := f.users[id]; ok && u.IsActive() {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeOrgStore struct {
	repository.OrganizationRepository
	orgs map[uuid.UUID]*models.Organization
}

func (f *fakeOrgStore) ByID(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	return f.orgs[id], nil
}

func (f *fakeOrgStore) ByCommunity(_ context.Context, community string) (*models.Organization, error) {
	for _, org := range f.orgs {
		if org.CoversCommunity(community) {
			return org, nil
		}
	}
	return nil, nil
}

type fakeRuleStore struct {
	repository.AllocationRuleRepository
	rules []*models.AllocationRule
}

func (f *fakeRuleStore) ListActiveByOrganization(_ context.Context, organizationID uuid.UUID) ([]*models.AllocationRule, error) {
	var out []*models.AllocationRule
	for _, r := range f.rules {
		if r.OrganizationID == organizationID && r.Active() {
			out = append(out, r)
		}
	}
	return out, nil
}

// allocationEnv wires an AllocationFlow over in-memory stores. The user
// directory always contains active profiles 11 and 22 and a departed 33.
type allocationEnv struct {
	org       *models.Organization
	rules     *fakeRuleStore
	leads     *fakeLeadStore
	followups *fakeFollowupStore
	logs      *fakeLogStore
	users     *fakeUserStore
	notifier  *fakeNotifier
	flow      AllocationFlow
}

func newAllocationEnv(cfg config.AllocationConfig, mappings ...*models.CommunityMappingRule) *allocationEnv {
	if cfg.WorkloadWindowDays == 0 {
		cfg.WorkloadWindowDays = 30
	}
	if cfg.CursorMaxRetries == 0 {
		cfg.CursorMaxRetries = 3
	}

	env := &allocationEnv{
		org:       &models.Organization{ID: uuid.New(), Name: "华东一区"},
		rules:     &fakeRuleStore{},
		leads:     newFakeLeadStore(),
		followups: newFakeFollowupStore(),
		logs:      &fakeLogStore{},
		notifier:  &fakeNotifier{},
		users: &fakeUserStore{users: map[int64]*models.UserProfile{
			11: {ID: 11, Nickname: "销售11", Status: models.UserStatusActive},
			22: {ID: 22, Nickname: "销售22", Status: models.UserStatusActive},
			33: {ID: 33, Nickname: "销售33", Status: models.UserStatusLeft},
		}},
	}

	env.leads.followups = env.followups
	orgRepo := &fakeOrgStore{orgs: map[uuid.UUID]*models.Organization{env.org.ID: env.org}}
	strategy := NewAssignmentStrategy(newFakeCursorRepo(), env.followups, cfg)
	duplicates := NewDuplicateFlow(env.leads, env.followups, newFakeNotifRepo(), env.notifier)
	communities := NewCommunityFlow(&fakeMappingRepo{rules: mappings}, env.leads, env.followups, env.logs, orgRepo, fakeTxManager{})

	env.flow = NewAllocationFlow(
		env.rules, env.leads, env.followups, env.logs, env.users, orgRepo,
		NewRuleMatcher(), strategy, duplicates, communities, fakeTxManager{}, cfg,
	)
	return env
}

func (e *allocationEnv) addRule(name string, priority int, method string, targets ...int64) *models.AllocationRule {
	rule := &models.AllocationRule{
		ID:               uuid.New(),
		Name:             name,
		OrganizationID:   e.org.ID,
		IsActive:         utils.ToPtr(true),
		Priority:         priority,
		TargetType:       models.TargetTypeUser,
		TargetUsers:      pq.Int64Array(targets),
		AllocationMethod: method,
		CreatedAt:        utils.UTCNow(),
	}
	e.rules.rules = append(e.rules.rules, rule)
	return rule
}

func allocateRequest(orgID uuid.UUID, leadID string) *dto.AllocateLeadRequest {
	return &dto.AllocateLeadRequest{
		OrganizationID: orgID.String(),
		Lead: dto.LeadPayload{
			LeadID: utils.ToPtr(leadID),
			Phone:  utils.ToPtr("138" + leadID[len(leadID)-1:] + "0000000"),
			Source: models.LeadSourceDouyin,
		},
	}
}

func TestAllocateLead(t *testing.T) {
	ctx := context.Background()
	metadata := NewClientMetadata("127.0.0.1", "test-agent")

	t.Run("RuleMatchedAssignment", func(t *testing.T) {
		env := newAllocationEnv(config.AllocationConfig{})
		rule := env.addRule("抖音白班", 10, models.AllocationMethodRoundRobin, 11, 22)

		resp, err := env.flow.AllocateLead(ctx, allocateRequest(env.org.ID, "lead-1"), metadata)
		require.NoError(t, err)

		assert.True(t, resp.Assigned)
		require.NotNil(t, resp.AssignedUserID)
		assert.Equal(t, int64(11), *resp.AssignedUserID)
		require.NotNil(t, resp.AssignedUserName)
		assert.Equal(t, "销售11", *resp.AssignedUserName)
		assert.Equal(t, models.AllocationMethodRoundRobin, resp.AllocationMethod)
		require.NotNil(t, resp.MatchedRuleID)
		assert.Equal(t, rule.ID.String(), *resp.MatchedRuleID)
		assert.False(t, resp.IsDuplicate)

		lead, err := env.leads.ByLeadID(ctx, "lead-1")
		require.NoError(t, err)
		require.NotNil(t, lead)

		followup, err := env.followups.ByLeadID(ctx, "lead-1")
		require.NoError(t, err)
		require.NotNil(t, followup)
		require.NotNil(t, followup.InterviewsalesUserID)
		assert.Equal(t, int64(11), *followup.InterviewsalesUserID)
		assert.Equal(t, models.FollowupStagePending, followup.FollowupStage)

		logs := env.logs.byLead("lead-1")
		require.Len(t, logs, 1)
		assert.Equal(t, models.AllocationMethodRoundRobin, logs[0].AllocationMethod)
		require.NotNil(t, logs[0].AllocationDetails.Rule)
		assert.Equal(t, rule.ID, logs[0].AllocationDetails.Rule.RuleID)
	})

	t.Run("RoundRobinAdvancesAcrossRequests", func(t *testing.T) {
		env := newAllocationEnv(config.AllocationConfig{})
		env.addRule("抖音白班", 10, models.AllocationMethodRoundRobin, 11, 22)

		var got []int64
		for _, id := range []string{"lead-1", "lead-2", "lead-3"} {
			resp, err := env.flow.AllocateLead(ctx, allocateRequest(env.org.ID, id), metadata)
			require.NoError(t, err)
			require.NotNil(t, resp.AssignedUserID)
			got = append(got, *resp.AssignedUserID)
		}
		assert.Equal(t, []int64{11, 22, 11}, got)
	})

	t.Run("InactiveTargetsAreFilteredOut", func(t *testing.T) {
		env := newAllocationEnv(config.AllocationConfig{})
		env.addRule("抖音白班", 10, models.AllocationMethodRoundRobin, 33, 22)

		resp, err := env.flow.AllocateLead(ctx, allocateRequest(env.org.ID, "lead-1"), metadata)
		require.NoError(t, err)
		require.NotNil(t, resp.AssignedUserID)
		assert.Equal(t, int64(22), *resp.AssignedUserID)
	})

	t.Run("RuleWithNoActiveTargetFailsButPersists", func(t *testing.T) {
		env := newAllocationEnv(config.AllocationConfig{})
		env.addRule("离职小组", 10, models.AllocationMethodRoundRobin, 33)

		resp, err := env.flow.AllocateLead(ctx, allocateRequest(env.org.ID, "lead-1"), metadata)
		require.NoError(t, err)

		assert.False(t, resp.Assigned)
		assert.Nil(t, resp.AssignedUserID)
		require.NotNil(t, resp.FailureCode)
		assert.Equal(t, FailureCodeNoEligibleTarget, *resp.FailureCode)
		assert.Equal(t, models.AllocationMethodFailed, resp.AllocationMethod)

		// Failure still lands the lead, an ownerless followup, and a log row
		followup, err := env.followups.ByLeadID(ctx, "lead-1")
		require.NoError(t, err)
		require.NotNil(t, followup)
		assert.Nil(t, followup.InterviewsalesUserID)

		logs := env.logs.byLead("lead-1")
		require.Len(t, logs, 1)
		require.NotNil(t, logs[0].AllocationDetails.Failure)
		assert.Equal(t, FailureCodeNoEligibleTarget, logs[0].AllocationDetails.Failure.Code)
	})

	t.Run("DirectiveBypassesRules", func(t *testing.T) {
		env := newAllocationEnv(config.AllocationConfig{})
		env.addRule("抖音白班", 10, models.AllocationMethodRoundRobin, 11)

		req := allocateRequest(env.org.ID, "lead-1")
		req.Directive = &dto.AssignmentDirective{AssignedUserID: utils.ToPtr(int64(22)), Reason: "渠道指定"}

		resp, err := env.flow.AllocateLead(ctx, req, metadata)
		require.NoError(t, err)
		require.NotNil(t, resp.AssignedUserID)
		assert.Equal(t, int64(22), *resp.AssignedUserID)
		assert.Equal(t, models.AllocationMethodManual, resp.AllocationMethod)
		assert.Nil(t, resp.MatchedRuleID)

		logs := env.logs.byLead("lead-1")
		require.Len(t, logs, 1)
		require.NotNil(t, logs[0].AllocationDetails.Manual)
		assert.Equal(t, "渠道指定", logs[0].AllocationDetails.Manual.Reason)
	})

	t.Run("DirectiveWithInactiveAssigneeFails", func(t *testing.T) {
		env := newAllocationEnv(config.AllocationConfig{})

		req := allocateRequest(env.org.ID, "lead-1")
		req.Directive = &dto.AssignmentDirective{AssignedUserID: utils.ToPtr(int64(33))}

		resp, err := env.flow.AllocateLead(ctx, req, metadata)
		require.NoError(t, err)
		assert.False(t, resp.Assigned)
		require.NotNil(t, resp.FailureCode)
		assert.Equal(t, FailureCodeAssigneeInvalid, *resp.FailureCode)
		assert.Len(t, env.logs.byLead("lead-1"), 1)
	})

	t.Run("NoMatchFallsToDefaultPool", func(t *testing.T) {
		env := newAllocationEnv(config.AllocationConfig{
			DefaultTargetUsers: []int64{11, 22},
			DefaultMethod:      models.AllocationMethodRoundRobin,
		})

		resp, err := env.flow.AllocateLead(ctx, allocateRequest(env.org.ID, "lead-1"), metadata)
		require.NoError(t, err)
		assert.True(t, resp.Assigned)
		assert.Equal(t, models.AllocationMethodDefault, resp.AllocationMethod)
		require.NotNil(t, resp.AssignedUserID)
		assert.Equal(t, int64(11), *resp.AssignedUserID)
		assert.Nil(t, resp.MatchedRuleID)
	})

	t.Run("NoMatchWithoutDefaultPoolFails", func(t *testing.T) {
		env := newAllocationEnv(config.AllocationConfig{})

		resp, err := env.flow.AllocateLead(ctx, allocateRequest(env.org.ID, "lead-1"), metadata)
		require.NoError(t, err)
		assert.False(t, resp.Assigned)
		require.NotNil(t, resp.FailureCode)
		assert.Equal(t, FailureCodeNoDefaultPool, *resp.FailureCode)
		assert.Len(t, env.logs.byLead("lead-1"), 1)
	})

	t.Run("DuplicatePhoneIsFlaggedButStillAssigned", func(t *testing.T) {
		env := newAllocationEnv(config.AllocationConfig{})
		env.addRule("抖音白班", 10, models.AllocationMethodRoundRobin, 11, 22)

		first, err := env.flow.AllocateLead(ctx, allocateRequest(env.org.ID, "lead-1"), metadata)
		require.NoError(t, err)
		require.NotNil(t, first.AssignedUserID)

		req := allocateRequest(env.org.ID, "lead-2")
		req.Lead.Phone = utils.ToPtr("13999990000")
		dup := allocateRequest(env.org.ID, "lead-3")
		dup.Lead.Phone = req.Lead.Phone

		_, err = env.flow.AllocateLead(ctx, req, metadata)
		require.NoError(t, err)

		resp, err := env.flow.AllocateLead(ctx, dup, metadata)
		require.NoError(t, err)
		assert.True(t, resp.Assigned)
		assert.True(t, resp.IsDuplicate)
		require.NotNil(t, resp.DuplicateType)
		assert.Equal(t, models.DuplicateTypePhone, *resp.DuplicateType)
		require.Len(t, env.notifier.delivered, 1)
		assert.Equal(t, "lead-2", env.notifier.delivered[0].OriginalLeadID)

		logs := env.logs.byLead("lead-3")
		require.Len(t, logs, 1)
		require.NotNil(t, logs[0].IsDuplicate)
		assert.True(t, *logs[0].IsDuplicate)
	})

	t.Run("ExistingLeadIDConflicts", func(t *testing.T) {
		env := newAllocationEnv(config.AllocationConfig{DefaultTargetUsers: []int64{11}, DefaultMethod: models.AllocationMethodRoundRobin})

		_, err := env.flow.AllocateLead(ctx, allocateRequest(env.org.ID, "lead-1"), metadata)
		require.NoError(t, err)

		_, err = env.flow.AllocateLead(ctx, allocateRequest(env.org.ID, "lead-1"), metadata)
		assert.True(t, IsLeadAlreadyExists(err))
	})

	t.Run("UnknownOrganization", func(t *testing.T) {
		env := newAllocationEnv(config.AllocationConfig{})

		_, err := env.flow.AllocateLead(ctx, allocateRequest(uuid.New(), "lead-1"), metadata)
		assert.True(t, IsOrganizationNotFound(err))

		req := allocateRequest(env.org.ID, "lead-1")
		req.OrganizationID = "not-a-uuid"
		_, err = env.flow.AllocateLead(ctx, req, metadata)
		assert.Error(t, err)
	})

	t.Run("MappedCommunityReachesRuleAndFollowup", func(t *testing.T) {
		mapping := mappingRule("抖音翡翠湾", "翡翠湾", 10, 90, "camp-1")
		env := newAllocationEnv(config.AllocationConfig{}, mapping)
		rule := env.addRule("翡翠湾小组", 10, models.AllocationMethodRoundRobin, 22)
		rule.CommunityTypes = pq.StringArray{"翡翠湾"}

		req := allocateRequest(env.org.ID, "lead-1")
		req.Lead.CampaignID = utils.ToPtr("camp-1")

		resp, err := env.flow.AllocateLead(ctx, req, metadata)
		require.NoError(t, err)
		require.NotNil(t, resp.Community)
		assert.Equal(t, "翡翠湾", *resp.Community)
		require.NotNil(t, resp.AssignedUserID)
		assert.Equal(t, int64(22), *resp.AssignedUserID)

		followup, err := env.followups.ByLeadID(ctx, "lead-1")
		require.NoError(t, err)
		require.NotNil(t, followup.ScheduledCommunity)
		assert.Equal(t, "翡翠湾", *followup.ScheduledCommunity)

		// The log keeps both the matched rule and the mapping provenance
		logs := env.logs.byLead("lead-1")
		require.Len(t, logs, 1)
		require.NotNil(t, logs[0].AllocationDetails.Rule)
		assert.Equal(t, rule.ID, logs[0].AllocationDetails.Rule.RuleID)
		community := logs[0].AllocationDetails.Community
		require.NotNil(t, community)
		assert.Equal(t, "翡翠湾", community.Community)
		require.NotNil(t, community.MappingRuleID)
		assert.Equal(t, mapping.ID, *community.MappingRuleID)
		assert.Equal(t, mapping.Name, community.MappingRuleName)
		assert.Equal(t, 90, community.Confidence)
	})

	t.Run("DirectiveCommunityOverridesMapping", func(t *testing.T) {
		env := newAllocationEnv(config.AllocationConfig{
			DefaultTargetUsers: []int64{11},
			DefaultMethod:      models.AllocationMethodRoundRobin,
		}, mappingRule("抖音翡翠湾", "翡翠湾", 10, 90, "camp-1"))

		req := allocateRequest(env.org.ID, "lead-1")
		req.Lead.CampaignID = utils.ToPtr("camp-1")
		req.Directive = &dto.AssignmentDirective{Community: utils.ToPtr("江南府")}

		resp, err := env.flow.AllocateLead(ctx, req, metadata)
		require.NoError(t, err)
		require.NotNil(t, resp.Community)
		assert.Equal(t, "江南府", *resp.Community)

		// No mapping rule fired, so the log carries no mapping provenance
		logs := env.logs.byLead("lead-1")
		require.Len(t, logs, 1)
		assert.Nil(t, logs[0].AllocationDetails.Community)
	})
}

func TestTestAllocation(t *testing.T) {
	ctx := context.Background()
	metadata := NewClientMetadata("127.0.0.1", "test-agent")

	t.Run("DryRunPersistsNothing", func(t *testing.T) {
		env := newAllocationEnv(config.AllocationConfig{})
		rule := env.addRule("抖音白班", 10, models.AllocationMethodRoundRobin, 11, 22)

		req := &dto.TestAllocationRequest{
			OrganizationID: env.org.ID.String(),
			Lead:           dto.LeadPayload{Source: models.LeadSourceDouyin},
		}

		resp, err := env.flow.TestAllocation(ctx, req, metadata)
		require.NoError(t, err)
		assert.True(t, resp.Matched)
		require.NotNil(t, resp.MatchedRuleID)
		assert.Equal(t, rule.ID.String(), *resp.MatchedRuleID)
		require.NotNil(t, resp.WouldAssignTo)
		assert.Equal(t, int64(11), *resp.WouldAssignTo)

		assert.Empty(t, env.leads.rows)
		assert.Empty(t, env.followups.rows)
		assert.Empty(t, env.logs.rows)

		// The cursor did not advance, so a real allocation starts at the head
		allocated, err := env.flow.AllocateLead(ctx, allocateRequest(env.org.ID, "lead-1"), metadata)
		require.NoError(t, err)
		require.NotNil(t, allocated.AssignedUserID)
		assert.Equal(t, int64(11), *allocated.AssignedUserID)
	})

	t.Run("NoMatchReportsFailureCode", func(t *testing.T) {
		env := newAllocationEnv(config.AllocationConfig{})

		resp, err := env.flow.TestAllocation(ctx, &dto.TestAllocationRequest{
			OrganizationID: env.org.ID.String(),
			Lead:           dto.LeadPayload{Source: models.LeadSourceDouyin},
		}, metadata)
		require.NoError(t, err)
		assert.False(t, resp.Matched)
		require.NotNil(t, resp.FailureCode)
		assert.Equal(t, FailureCodeNoDefaultPool, *resp.FailureCode)
	})
}

func TestManualReassign(t *testing.T) {
	ctx := context.Background()
	metadata := NewClientMetadata("127.0.0.1", "test-agent")

	seed := func(t *testing.T) *allocationEnv {
		t.Helper()
		env := newAllocationEnv(config.AllocationConfig{})
		env.addRule("抖音白班", 10, models.AllocationMethodRoundRobin, 11)
		_, err := env.flow.AllocateLead(ctx, allocateRequest(env.org.ID, "lead-1"), metadata)
		require.NoError(t, err)
		return env
	}

	t.Run("LeadNotFound", func(t *testing.T) {
		env := newAllocationEnv(config.AllocationConfig{})
		_, err := env.flow.ManualReassign(ctx, &dto.ManualReassignRequest{LeadID: "missing", NewUserID: 22}, metadata)
		assert.True(t, IsLeadNotFound(err))
	})

	t.Run("AssigneeNotFound", func(t *testing.T) {
		env := seed(t)
		_, err := env.flow.ManualReassign(ctx, &dto.ManualReassignRequest{LeadID: "lead-1", NewUserID: 999}, metadata)
		assert.True(t, IsAssigneeNotFound(err))
	})

	t.Run("InactiveAssignee", func(t *testing.T) {
		env := seed(t)
		_, err := env.flow.ManualReassign(ctx, &dto.ManualReassignRequest{LeadID: "lead-1", NewUserID: 33}, metadata)
		assert.True(t, IsAssigneeInactive(err))
	})

	t.Run("MovesOwnershipAndLogs", func(t *testing.T) {
		env := seed(t)

		resp, err := env.flow.ManualReassign(ctx, &dto.ManualReassignRequest{
			LeadID:    "lead-1",
			NewUserID: 22,
			Reason:    "客户指定顾问",
		}, metadata)
		require.NoError(t, err)
		assert.Equal(t, int64(22), resp.AssignedUserID)
		assert.Equal(t, "销售22", resp.AssignedUserName)

		followup, err := env.followups.ByLeadID(ctx, "lead-1")
		require.NoError(t, err)
		require.NotNil(t, followup.InterviewsalesUserID)
		assert.Equal(t, int64(22), *followup.InterviewsalesUserID)

		logs := env.logs.byLead("lead-1")
		require.Len(t, logs, 2)
		last := logs[len(logs)-1]
		assert.Equal(t, models.AllocationMethodManualReassign, last.AllocationMethod)
		require.NotNil(t, last.AllocationDetails.Manual)
		assert.Equal(t, "客户指定顾问", last.AllocationDetails.Manual.Reason)
	})
}
