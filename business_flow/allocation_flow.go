package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linkcrm/lead-engine/app/dto"
	"github.com/linkcrm/lead-engine/config"
	"github.com/linkcrm/lead-engine/models"
	"github.com/linkcrm/lead-engine/repository"
	"github.com/linkcrm/lead-engine/utils"
)

// Failure codes recorded on failed allocation logs
const (
	FailureCodeNoEligibleTarget = "NO_ELIGIBLE_TARGET"
	FailureCodeNoDefaultPool    = "NO_DEFAULT_POOL"
	FailureCodeCursorContention = "CURSOR_CONTENTION"
	FailureCodeAssigneeInvalid  = "ASSIGNEE_INVALID"
)

// AllocationFlow defines the assignment operations of the engine
type AllocationFlow interface {
	AllocateLead(ctx context.Context, req *dto.AllocateLeadRequest, metadata *ClientMetadata) (*dto.AllocateLeadResponse, error)
	ManualReassign(ctx context.Context, req *dto.ManualReassignRequest, metadata *ClientMetadata) (*dto.ManualReassignResponse, error)
	TestAllocation(ctx context.Context, req *dto.TestAllocationRequest, metadata *ClientMetadata) (*dto.TestAllocationResponse, error)
}

// AllocationFlowImpl implements AllocationFlow
type AllocationFlowImpl struct {
	ruleRepo     repository.AllocationRuleRepository
	leadRepo     repository.LeadRepository
	followupRepo repository.FollowupRepository
	logRepo      repository.AllocationLogRepository
	userRepo     repository.UserProfileRepository
	orgRepo      repository.OrganizationRepository
	matcher      RuleMatcher
	strategy     AssignmentStrategy
	duplicates   DuplicateFlow
	communities  CommunityFlow
	txManager    repository.TxManager
	allocCfg     config.AllocationConfig
}

// NewAllocationFlow constructs an AllocationFlow
func NewAllocationFlow(
	ruleRepo repository.AllocationRuleRepository,
	leadRepo repository.LeadRepository,
	followupRepo repository.FollowupRepository,
	logRepo repository.AllocationLogRepository,
	userRepo repository.UserProfileRepository,
	orgRepo repository.OrganizationRepository,
	matcher RuleMatcher,
	strategy AssignmentStrategy,
	duplicates DuplicateFlow,
	communities CommunityFlow,
	txManager repository.TxManager,
	allocCfg config.AllocationConfig,
) AllocationFlow {
	return &AllocationFlowImpl{
		ruleRepo:     ruleRepo,
		leadRepo:     leadRepo,
		followupRepo: followupRepo,
		logRepo:      logRepo,
		userRepo:     userRepo,
		orgRepo:      orgRepo,
		matcher:      matcher,
		strategy:     strategy,
		duplicates:   duplicates,
		communities:  communities,
		txManager:    txManager,
		allocCfg:     allocCfg,
	}
}

// allocationDecision is the outcome of the decision pipeline before it is
// persisted. A failure decision still produces a lead, an ownerless
// followup, and a failed log row.
type allocationDecision struct {
	UserID        *int64
	Method        string
	Details       models.AllocationDetails
	MatchedRule   *models.AllocationRule
	FailureCode   *string
	FailureReason string
}

func (d *allocationDecision) failed() bool {
	return d.FailureCode != nil
}

// AllocateLead handles a lead-created event: community inference, duplicate
// detection, rule matching, strategy selection, and atomic persistence of
// the lead, its followup, notifications, and exactly one allocation log.
func (f *AllocationFlowImpl) AllocateLead(ctx context.Context, req *dto.AllocateLeadRequest, metadata *ClientMetadata) (*dto.AllocateLeadResponse, error) {
	started := time.Now()

	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		return nil, NewBusinessError("ALLOCATE_LEAD_VALIDATION_FAILED", "Invalid organization ID", err)
	}
	org, err := f.orgRepo.ByID(ctx, orgID)
	if err != nil {
		return nil, NewBusinessError("ALLOCATE_LEAD_FAILED", "Failed to load organization", err)
	}
	if org == nil {
		return nil, NewBusinessError("ALLOCATE_LEAD_NOT_FOUND", "Organization not found", ErrOrganizationNotFound)
	}

	lead := leadFromPayload(&req.Lead)
	existing, err := f.leadRepo.ByLeadID(ctx, lead.LeadID)
	if err != nil {
		return nil, NewBusinessError("ALLOCATE_LEAD_FAILED", "Failed to check lead ID", err)
	}
	if existing != nil {
		return nil, NewBusinessError("ALLOCATE_LEAD_CONFLICT", "Lead already exists", ErrLeadAlreadyExists)
	}

	community, mapping, err := f.resolveCommunity(ctx, lead, req.Directive)
	if err != nil {
		return nil, NewBusinessError("ALLOCATE_LEAD_FAILED", "Failed to infer community", err)
	}

	// Advisory only: the new lead still goes through normal assignment
	dup, err := f.duplicates.Detect(ctx, lead)
	if err != nil {
		return nil, NewBusinessError("ALLOCATE_LEAD_FAILED", "Duplicate detection failed", err)
	}

	var (
		decision      *allocationDecision
		notifications []*models.DuplicateNotification
		latencyMS     int64
	)
	err = f.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := f.leadRepo.Save(txCtx, lead); err != nil {
			return err
		}

		// Strategy selection runs inside the unit of work so the cursor
		// advance commits or rolls back with the followup and the log
		decision, err = f.decide(txCtx, org, lead, community, req.Directive, false)
		if err != nil {
			return err
		}

		followup := &models.Followup{
			LeadID:               lead.LeadID,
			InterviewsalesUserID: decision.UserID,
			ScheduledCommunity:   community,
			FollowupStage:        models.FollowupStagePending,
			CreatedAt:            utils.UTCNow(),
		}
		if err := f.followupRepo.Save(txCtx, followup); err != nil {
			return err
		}

		notifications, err = f.duplicates.RecordNotifications(txCtx, lead, dup)
		if err != nil {
			return err
		}

		details := decision.Details
		if secondary := dup.Secondary(); secondary != nil {
			details.SecondaryOriginalLeadID = utils.ToPtr(secondary.LeadID)
		}
		if mapping != nil {
			details.Community = models.MappingCommunityDetails(mapping.Rule, mapping.Community)
		}

		latencyMS = time.Since(started).Milliseconds()
		logRow := &models.AllocationLog{
			ID:                uuid.New(),
			LeadID:            lead.LeadID,
			AssignedUserID:    decision.UserID,
			OrganizationID:    &org.ID,
			AllocationMethod:  decision.Method,
			IsDuplicate:       utils.ToPtr(dup.IsDuplicate()),
			AllocationDetails: details,
			LatencyMS:         latencyMS,
			CreatedAt:         utils.UTCNow(),
		}
		return f.logRepo.Save(txCtx, logRow)
	})
	if err != nil {
		return nil, NewBusinessError("ALLOCATE_LEAD_FAILED", "Failed to persist allocation", err)
	}

	f.duplicates.Dispatch(ctx, notifications)
	f.observeDecision(decision, started)

	resp := &dto.AllocateLeadResponse{
		LeadID:           lead.LeadID,
		Assigned:         !decision.failed(),
		AssignedUserID:   decision.UserID,
		Community:        community,
		AllocationMethod: decision.Method,
		IsDuplicate:      dup.IsDuplicate(),
		FailureCode:      decision.FailureCode,
		LatencyMS:        latencyMS,
	}
	if dup.IsDuplicate() {
		resp.DuplicateType = utils.ToPtr(dup.Type())
	}
	if decision.MatchedRule != nil {
		resp.MatchedRuleID = utils.ToPtr(decision.MatchedRule.ID.String())
	}
	if decision.UserID != nil {
		if profile, err := f.userRepo.ByID(ctx, *decision.UserID); err == nil && profile != nil {
			resp.AssignedUserName = utils.ToPtr(profile.Nickname)
		}
	}
	return resp, nil
}

// ManualReassign moves an existing lead to an explicit user and logs the
// reassignment with its reason.
func (f *AllocationFlowImpl) ManualReassign(ctx context.Context, req *dto.ManualReassignRequest, metadata *ClientMetadata) (*dto.ManualReassignResponse, error) {
	started := time.Now()

	lead, err := f.leadRepo.ByLeadID(ctx, req.LeadID)
	if err != nil {
		return nil, NewBusinessError("MANUAL_REASSIGN_FAILED", "Failed to load lead", err)
	}
	if lead == nil {
		return nil, NewBusinessError("MANUAL_REASSIGN_NOT_FOUND", "Lead not found", ErrLeadNotFound)
	}

	followup, err := f.followupRepo.ByLeadID(ctx, req.LeadID)
	if err != nil {
		return nil, NewBusinessError("MANUAL_REASSIGN_FAILED", "Failed to load followup", err)
	}
	if followup == nil {
		return nil, NewBusinessError("MANUAL_REASSIGN_NOT_FOUND", "Followup not found", ErrFollowupNotFound)
	}

	user, err := f.userRepo.ByID(ctx, req.NewUserID)
	if err != nil {
		return nil, NewBusinessError("MANUAL_REASSIGN_FAILED", "Failed to load assignee", err)
	}
	if user == nil {
		return nil, NewBusinessError("MANUAL_REASSIGN_NOT_FOUND", "Assignee not found", ErrAssigneeNotFound)
	}
	if !user.IsActive() {
		return nil, NewBusinessError("MANUAL_REASSIGN_VALIDATION_FAILED", "Assignee is inactive", ErrAssigneeInactive)
	}

	err = f.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := f.followupRepo.UpdateOwner(txCtx, req.LeadID, &req.NewUserID, nil); err != nil {
			return err
		}

		logRow := &models.AllocationLog{
			ID:                uuid.New(),
			LeadID:            req.LeadID,
			AssignedUserID:    &req.NewUserID,
			OrganizationID:    user.OrganizationID,
			AllocationMethod:  models.AllocationMethodManualReassign,
			IsDuplicate:       utils.ToPtr(false),
			AllocationDetails: models.ManualAllocationDetails(models.AllocationMethodManualReassign, nil, req.Reason, "manual_reassign"),
			LatencyMS:         time.Since(started).Milliseconds(),
			CreatedAt:         utils.UTCNow(),
		}
		return f.logRepo.Save(txCtx, logRow)
	})
	if err != nil {
		return nil, NewBusinessError("MANUAL_REASSIGN_FAILED", "Failed to persist reassignment", err)
	}

	allocationDecisionsTotal.WithLabelValues(models.AllocationMethodManualReassign, outcomeAssigned).Inc()

	return &dto.ManualReassignResponse{
		LeadID:           req.LeadID,
		AssignedUserID:   req.NewUserID,
		AssignedUserName: user.Nickname,
	}, nil
}

// TestAllocation runs the decision pipeline against a hypothetical lead.
// Nothing is persisted and no cursor advances.
func (f *AllocationFlowImpl) TestAllocation(ctx context.Context, req *dto.TestAllocationRequest, metadata *ClientMetadata) (*dto.TestAllocationResponse, error) {
	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		return nil, NewBusinessError("TEST_ALLOCATION_VALIDATION_FAILED", "Invalid organization ID", err)
	}
	org, err := f.orgRepo.ByID(ctx, orgID)
	if err != nil {
		return nil, NewBusinessError("TEST_ALLOCATION_FAILED", "Failed to load organization", err)
	}
	if org == nil {
		return nil, NewBusinessError("TEST_ALLOCATION_NOT_FOUND", "Organization not found", ErrOrganizationNotFound)
	}

	lead := leadFromPayload(&req.Lead)
	community, _, err := f.resolveCommunity(ctx, lead, nil)
	if err != nil {
		return nil, NewBusinessError("TEST_ALLOCATION_FAILED", "Failed to infer community", err)
	}

	decision, err := f.decide(ctx, org, lead, community, nil, true)
	if err != nil {
		return nil, NewBusinessError("TEST_ALLOCATION_FAILED", "Failed to evaluate allocation", err)
	}

	resp := &dto.TestAllocationResponse{
		Matched:          decision.MatchedRule != nil,
		AllocationMethod: decision.Method,
		WouldAssignTo:    decision.UserID,
		FailureCode:      decision.FailureCode,
	}
	if decision.MatchedRule != nil {
		resp.MatchedRuleID = utils.ToPtr(decision.MatchedRule.ID.String())
		resp.MatchedRuleName = utils.ToPtr(decision.MatchedRule.Name)
	}
	return resp, nil
}

// resolveCommunity picks the community hint: an explicit directive wins,
// otherwise mapping rules infer one from campaign metadata. The mapping
// result is returned so the allocation log can record which rule inferred
// the community.
func (f *AllocationFlowImpl) resolveCommunity(ctx context.Context, lead *models.Lead, directive *dto.AssignmentDirective) (*string, *MappingResult, error) {
	if directive != nil && directive.Community != nil && *directive.Community != "" {
		return directive.Community, nil, nil
	}
	mapping, err := f.communities.MapCommunity(ctx, lead)
	if err != nil {
		return nil, nil, err
	}
	if mapping == nil {
		return nil, nil, nil
	}
	return &mapping.Community, mapping, nil
}

// decide runs directive, rule matching, and default-pool fallback in order.
// It returns a failure decision rather than an error when no target can be
// produced, so the caller still persists the lead and the failed log.
func (f *AllocationFlowImpl) decide(ctx context.Context, org *models.Organization, lead *models.Lead, community *string, directive *dto.AssignmentDirective, dryRun bool) (*allocationDecision, error) {
	if directive != nil && directive.AssignedUserID != nil {
		return f.decideDirective(ctx, directive)
	}

	rules, err := f.ruleRepo.ListActiveByOrganization(ctx, org.ID)
	if err != nil {
		return nil, err
	}

	sig := LeadSignals{
		Source:    lead.Source,
		LeadType:  lead.LeadType,
		Community: community,
		At:        utils.UTCNow(),
	}
	matched := f.matcher.Match(rules, sig)
	if matched == nil {
		return f.decideDefault(ctx, dryRun)
	}

	pool, err := f.resolvePool(ctx, matched)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return failureDecision(matched, FailureCodeNoEligibleTarget,
			fmt.Sprintf("rule %s has no active target", matched.Name)), nil
	}

	userID, err := f.strategy.Select(ctx, matched.ID, matched.AllocationMethod, pool, dryRun)
	if err != nil {
		return strategyFailure(matched, err)
	}

	return &allocationDecision{
		UserID:      &userID,
		Method:      matched.AllocationMethod,
		Details:     models.RuleAllocationDetails(matched.AllocationMethod, matched),
		MatchedRule: matched,
	}, nil
}

func (f *AllocationFlowImpl) decideDirective(ctx context.Context, directive *dto.AssignmentDirective) (*allocationDecision, error) {
	user, err := f.userRepo.ByID(ctx, *directive.AssignedUserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive() {
		return failureDecision(nil, FailureCodeAssigneeInvalid,
			fmt.Sprintf("directive target %d is not an active profile", *directive.AssignedUserID)), nil
	}

	return &allocationDecision{
		UserID:  directive.AssignedUserID,
		Method:  models.AllocationMethodManual,
		Details: models.ManualAllocationDetails(models.AllocationMethodManual, nil, directive.Reason, "directive"),
	}, nil
}

func (f *AllocationFlowImpl) decideDefault(ctx context.Context, dryRun bool) (*allocationDecision, error) {
	if len(f.allocCfg.DefaultTargetUsers) == 0 {
		return failureDecision(nil, FailureCodeNoDefaultPool, "no rule matched and no default pool configured"), nil
	}

	pool, err := f.activePool(ctx, f.allocCfg.DefaultTargetUsers)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return failureDecision(nil, FailureCodeNoEligibleTarget, "default pool has no active profile"), nil
	}

	userID, err := f.strategy.Select(ctx, DefaultPoolCursorID, f.allocCfg.DefaultMethod, pool, dryRun)
	if err != nil {
		return strategyFailure(nil, err)
	}

	return &allocationDecision{
		UserID:  &userID,
		Method:  models.AllocationMethodDefault,
		Details: models.DefaultAllocationDetails(),
	}, nil
}

// resolvePool expands the rule's targets into candidate user IDs. For
// organization targets the pool is each organization's admin profile. The
// result keeps target order and contains active profiles only.
func (f *AllocationFlowImpl) resolvePool(ctx context.Context, rule *models.AllocationRule) ([]int64, error) {
	var ids []int64
	switch rule.TargetType {
	case models.TargetTypeOrganization:
		for _, raw := range rule.TargetOrganizations {
			orgID, err := uuid.Parse(raw)
			if err != nil {
				continue
			}
			org, err := f.orgRepo.ByID(ctx, orgID)
			if err != nil {
				return nil, err
			}
			if org != nil && org.AdminProfileID != nil {
				ids = append(ids, *org.AdminProfileID)
			}
		}
	default:
		ids = rule.TargetUsers
	}
	return f.activePool(ctx, ids)
}

func (f *AllocationFlowImpl) activePool(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	profiles, err := f.userRepo.ListActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	pool := make([]int64, 0, len(profiles))
	for _, p := range profiles {
		pool = append(pool, p.ID)
	}
	return pool, nil
}

func (f *AllocationFlowImpl) observeDecision(decision *allocationDecision, started time.Time) {
	outcome := outcomeAssigned
	if decision.failed() {
		outcome = outcomeFailed
	}
	allocationDecisionsTotal.WithLabelValues(decision.Method, outcome).Inc()
	allocationDecisionDuration.WithLabelValues(decision.Method).Observe(time.Since(started).Seconds())
}

func failureDecision(rule *models.AllocationRule, code, reason string) *allocationDecision {
	return &allocationDecision{
		Method:        models.AllocationMethodFailed,
		Details:       models.FailureAllocationDetails(code, reason),
		MatchedRule:   rule,
		FailureCode:   utils.ToPtr(code),
		FailureReason: reason,
	}
}

// strategyFailure converts first-class selection errors into failure
// decisions; anything else propagates.
func strategyFailure(rule *models.AllocationRule, err error) (*allocationDecision, error) {
	switch {
	case IsNoEligibleTarget(err):
		return failureDecision(rule, FailureCodeNoEligibleTarget, err.Error()), nil
	case IsCursorContention(err):
		return failureDecision(rule, FailureCodeCursorContention, err.Error()), nil
	default:
		return nil, err
	}
}

func leadFromPayload(p *dto.LeadPayload) *models.Lead {
	leadID := uuid.New().String()
	if p.LeadID != nil && *p.LeadID != "" {
		leadID = *p.LeadID
	}
	return &models.Lead{
		LeadID:       leadID,
		Phone:        p.Phone,
		Wechat:       p.Wechat,
		Source:       p.Source,
		LeadType:     p.LeadType,
		CampaignID:   p.CampaignID,
		CampaignName: p.CampaignName,
		UnitID:       p.UnitID,
		UnitName:     p.UnitName,
		CreativeID:   p.CreativeID,
		CreativeName: p.CreativeName,
		Area:         p.Area,
		Location:     p.Location,
		Remark:       p.Remark,
		CreatedAt:    utils.UTCNow(),
	}
}
