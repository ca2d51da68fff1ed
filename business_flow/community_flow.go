package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linkcrm/lead-engine/app/dto"
	"github.com/linkcrm/lead-engine/models"
	"github.com/linkcrm/lead-engine/repository"
	"github.com/linkcrm/lead-engine/utils"
)

// MappingResult is the outcome of community inference for a lead
type MappingResult struct {
	Rule      *models.CommunityMappingRule
	Community string
}

// CommunityFlow defines community inference and reallocation operations
type CommunityFlow interface {
	// MapCommunity infers the target community from the lead's campaign
	// metadata. Returns nil when no active mapping rule matches.
	MapCommunity(ctx context.Context, lead *models.Lead) (*MappingResult, error)
	TestMapping(ctx context.Context, req *dto.TestCommunityMappingRequest, metadata *ClientMetadata) (*dto.TestCommunityMappingResponse, error)
	ReallocateByCommunity(ctx context.Context, req *dto.ReallocateByCommunityRequest, metadata *ClientMetadata) (*dto.ReallocateByCommunityResponse, error)
	BatchReallocateByCommunity(ctx context.Context, req *dto.BatchReallocateByCommunityRequest, metadata *ClientMetadata) (*dto.BatchReallocateByCommunityResponse, error)
}

// CommunityFlowImpl implements CommunityFlow
type CommunityFlowImpl struct {
	mappingRepo  repository.CommunityMappingRuleRepository
	leadRepo     repository.LeadRepository
	followupRepo repository.FollowupRepository
	logRepo      repository.AllocationLogRepository
	orgRepo      repository.OrganizationRepository
	txManager    repository.TxManager
}

// NewCommunityFlow constructs a CommunityFlow
func NewCommunityFlow(
	mappingRepo repository.CommunityMappingRuleRepository,
	leadRepo repository.LeadRepository,
	followupRepo repository.FollowupRepository,
	logRepo repository.AllocationLogRepository,
	orgRepo repository.OrganizationRepository,
	txManager repository.TxManager,
) CommunityFlow {
	return &CommunityFlowImpl{
		mappingRepo:  mappingRepo,
		leadRepo:     leadRepo,
		followupRepo: followupRepo,
		logRepo:      logRepo,
		orgRepo:      orgRepo,
		txManager:    txManager,
	}
}

func (c *CommunityFlowImpl) MapCommunity(ctx context.Context, lead *models.Lead) (*MappingResult, error) {
	rules, err := c.mappingRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	// Rules arrive ordered by priority desc, confidence desc, created_at asc
	for _, r := range rules {
		if r.HasMatchKey() && r.MatchesLead(lead) {
			return &MappingResult{Rule: r, Community: r.TargetCommunity}, nil
		}
	}
	return nil, nil
}

func (c *CommunityFlowImpl) TestMapping(ctx context.Context, req *dto.TestCommunityMappingRequest, metadata *ClientMetadata) (*dto.TestCommunityMappingResponse, error) {
	probe := &models.Lead{
		CampaignID:   req.CampaignID,
		CampaignName: req.CampaignName,
		UnitID:       req.UnitID,
		UnitName:     req.UnitName,
		CreativeID:   req.CreativeID,
		CreativeName: req.CreativeName,
		Area:         req.Area,
		Location:     req.Location,
	}

	result, err := c.MapCommunity(ctx, probe)
	if err != nil {
		return nil, NewBusinessError("TEST_COMMUNITY_MAPPING_FAILED", "Failed to evaluate mapping rules", err)
	}
	if result == nil {
		return &dto.TestCommunityMappingResponse{Matched: false}, nil
	}

	return &dto.TestCommunityMappingResponse{
		Matched:         true,
		TargetCommunity: utils.ToPtr(result.Community),
		MappingRuleID:   utils.ToPtr(result.Rule.ID.String()),
		MappingRuleName: utils.ToPtr(result.Rule.Name),
		Confidence:      utils.ToPtr(result.Rule.ConfidenceScore),
	}, nil
}

func (c *CommunityFlowImpl) ReallocateByCommunity(ctx context.Context, req *dto.ReallocateByCommunityRequest, metadata *ClientMetadata) (*dto.ReallocateByCommunityResponse, error) {
	lead, err := c.leadRepo.ByLeadID(ctx, req.LeadID)
	if err != nil {
		return nil, NewBusinessError("REALLOCATE_BY_COMMUNITY_FAILED", "Failed to load lead", err)
	}
	if lead == nil {
		return nil, NewBusinessError("REALLOCATE_BY_COMMUNITY_NOT_FOUND", "Lead not found", ErrLeadNotFound)
	}

	assigned, skipped, err := c.reallocate(ctx, lead, req.Community)
	if err != nil {
		return nil, NewBusinessError("REALLOCATE_BY_COMMUNITY_FAILED", "Failed to reallocate lead", err)
	}

	resp := &dto.ReallocateByCommunityResponse{
		LeadID:    req.LeadID,
		Community: req.Community,
		Skipped:   skipped,
	}
	if !skipped {
		resp.AssignedUserID = &assigned
	}
	return resp, nil
}

func (c *CommunityFlowImpl) BatchReallocateByCommunity(ctx context.Context, req *dto.BatchReallocateByCommunityRequest, metadata *ClientMetadata) (*dto.BatchReallocateByCommunityResponse, error) {
	start, end, err := parseDateRange(req.DateStart, req.DateEnd)
	if err != nil {
		return nil, NewBusinessError("BATCH_REALLOCATE_VALIDATION_FAILED", "Invalid date range", err)
	}

	leads, err := c.leadRepo.ListByCommunity(ctx, req.Community, start, end)
	if err != nil {
		return nil, NewBusinessError("BATCH_REALLOCATE_FAILED", "Failed to list leads for community", err)
	}

	resp := &dto.BatchReallocateByCommunityResponse{
		Community: req.Community,
		Total:     len(leads),
	}

	// Per-lead isolation: one failed lead never aborts the batch. Idempotence
	// comes from the owner match inside reallocate, so a rerun skips leads
	// still owned correctly and re-moves any whose owner drifted since.
	for _, lead := range leads {
		_, skipped, err := c.reallocate(ctx, lead, req.Community)
		switch {
		case err != nil:
			c.recordBatchError(resp, lead.LeadID, err)
		case skipped:
			resp.Skipped++
		default:
			resp.Reallocated++
		}
	}

	return resp, nil
}

// reallocate moves one lead to the admin of the organization covering the
// community. Returns skipped=true when the followup already points at that
// owner and community; a skip writes no log and no notification.
func (c *CommunityFlowImpl) reallocate(ctx context.Context, lead *models.Lead, community string) (int64, bool, error) {
	started := time.Now()

	org, err := c.orgRepo.ByCommunity(ctx, community)
	if err != nil {
		return 0, false, err
	}
	if org == nil {
		return 0, false, ErrNoOrganizationForCommunity
	}
	if org.AdminProfileID == nil {
		return 0, false, ErrOrganizationHasNoAdmin
	}
	admin := *org.AdminProfileID

	followup, err := c.followupRepo.ByLeadID(ctx, lead.LeadID)
	if err != nil {
		return 0, false, err
	}
	if followup == nil {
		return 0, false, ErrFollowupNotFound
	}

	if followup.InterviewsalesUserID != nil && *followup.InterviewsalesUserID == admin &&
		followup.ScheduledCommunity != nil && *followup.ScheduledCommunity == community {
		communityReallocationsTotal.WithLabelValues(outcomeSkipped).Inc()
		return admin, true, nil
	}

	err = c.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := c.followupRepo.UpdateOwner(txCtx, lead.LeadID, &admin, &community); err != nil {
			return err
		}

		logRow := &models.AllocationLog{
			ID:                uuid.New(),
			LeadID:            lead.LeadID,
			AssignedUserID:    &admin,
			OrganizationID:    &org.ID,
			AllocationMethod:  models.AllocationMethodCommunity,
			IsDuplicate:       utils.ToPtr(false),
			AllocationDetails: models.CommunityAllocationDetails(nil, community),
			LatencyMS:         time.Since(started).Milliseconds(),
			CreatedAt:         utils.UTCNow(),
		}
		return c.logRepo.Save(txCtx, logRow)
	})
	if err != nil {
		return 0, false, err
	}

	communityReallocationsTotal.WithLabelValues(outcomeReallocated).Inc()
	return admin, false, nil
}

func (c *CommunityFlowImpl) recordBatchError(resp *dto.BatchReallocateByCommunityResponse, leadID string, err error) {
	resp.Failed++
	if resp.Errors == nil {
		resp.Errors = make(map[string]string)
	}
	resp.Errors[leadID] = err.Error()
}

// parseDateRange turns optional YYYY-MM-DD bounds into a UTC half-open
// interval. The end date is inclusive, so the upper bound is the next day.
func parseDateRange(dateStart, dateEnd *string) (*time.Time, *time.Time, error) {
	var start, end *time.Time

	if dateStart != nil && *dateStart != "" {
		t, err := time.ParseInLocation("2006-01-02", *dateStart, time.UTC)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date_start: %w", err)
		}
		start = &t
	}
	if dateEnd != nil && *dateEnd != "" {
		t, err := time.ParseInLocation("2006-01-02", *dateEnd, time.UTC)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date_end: %w", err)
		}
		t = t.Add(24 * time.Hour)
		end = &t
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, nil, ErrStartDateAfterEndDate
	}

	return start, end, nil
}
