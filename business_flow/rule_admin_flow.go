package businessflow

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/linkcrm/lead-engine/app/dto"
	"github.com/linkcrm/lead-engine/models"
	"github.com/linkcrm/lead-engine/repository"
	"github.com/linkcrm/lead-engine/utils"
)

// RuleAdminFlow defines management operations for allocation rules and
// community mapping rules. All validation happens at write time so match
// time never sees a malformed rule.
type RuleAdminFlow interface {
	CreateAllocationRule(ctx context.Context, req *dto.CreateAllocationRuleRequest, metadata *ClientMetadata) (*dto.AllocationRuleItem, error)
	UpdateAllocationRule(ctx context.Context, req *dto.UpdateAllocationRuleRequest, metadata *ClientMetadata) (*dto.AllocationRuleItem, error)
	ListAllocationRules(ctx context.Context, req *dto.ListAllocationRulesRequest, metadata *ClientMetadata) ([]dto.AllocationRuleItem, error)
	// DeleteAllocationRule removes a rule, or deactivates it instead when
	// allocation logs reference it so the audit trail stays resolvable.
	DeleteAllocationRule(ctx context.Context, ruleID string, metadata *ClientMetadata) (*dto.DeleteAllocationRuleResponse, error)

	CreateMappingRule(ctx context.Context, req *dto.CreateCommunityMappingRuleRequest, metadata *ClientMetadata) (*dto.CommunityMappingRuleItem, error)
	UpdateMappingRule(ctx context.Context, req *dto.UpdateCommunityMappingRuleRequest, metadata *ClientMetadata) (*dto.CommunityMappingRuleItem, error)
	ListMappingRules(ctx context.Context, metadata *ClientMetadata) ([]dto.CommunityMappingRuleItem, error)
	DeleteMappingRule(ctx context.Context, mappingRuleID string, metadata *ClientMetadata) error
}

// RuleAdminFlowImpl implements RuleAdminFlow
type RuleAdminFlowImpl struct {
	ruleRepo    repository.AllocationRuleRepository
	mappingRepo repository.CommunityMappingRuleRepository
	logRepo     repository.AllocationLogRepository
	userRepo    repository.UserProfileRepository
}

// NewRuleAdminFlow constructs a RuleAdminFlow
func NewRuleAdminFlow(
	ruleRepo repository.AllocationRuleRepository,
	mappingRepo repository.CommunityMappingRuleRepository,
	logRepo repository.AllocationLogRepository,
	userRepo repository.UserProfileRepository,
) RuleAdminFlow {
	return &RuleAdminFlowImpl{
		ruleRepo:    ruleRepo,
		mappingRepo: mappingRepo,
		logRepo:     logRepo,
		userRepo:    userRepo,
	}
}

func (a *RuleAdminFlowImpl) CreateAllocationRule(ctx context.Context, req *dto.CreateAllocationRuleRequest, metadata *ClientMetadata) (*dto.AllocationRuleItem, error) {
	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		return nil, NewBusinessError("CREATE_ALLOCATION_RULE_VALIDATION_FAILED", "Invalid organization ID", err)
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	rule := &models.AllocationRule{
		ID:                  uuid.New(),
		Name:                req.Name,
		Description:         req.Description,
		OrganizationID:      orgID,
		IsActive:            utils.ToPtr(isActive),
		Priority:            req.Priority,
		SourceTypes:         toStringArray(req.SourceTypes),
		LeadTypes:           toStringArray(req.LeadTypes),
		CommunityTypes:      toStringArray(req.CommunityTypes),
		TimeRanges:          timeRangesFromDTO(req.TimeRanges),
		TargetType:          req.TargetType,
		TargetUsers:         toInt64Array(req.TargetUsers),
		TargetOrganizations: toStringArray(req.TargetOrganizations),
		AllocationMethod:    req.AllocationMethod,
		CreatedAt:           utils.UTCNow(),
	}

	if err := a.validateAllocationRule(rule); err != nil {
		return nil, NewBusinessError("CREATE_ALLOCATION_RULE_VALIDATION_FAILED", "Invalid allocation rule", err)
	}

	if err := a.ruleRepo.Save(ctx, rule); err != nil {
		return nil, NewBusinessError("CREATE_ALLOCATION_RULE_FAILED", "Failed to create allocation rule", err)
	}

	item := ToAllocationRuleItem(rule)
	return &item, nil
}

func (a *RuleAdminFlowImpl) UpdateAllocationRule(ctx context.Context, req *dto.UpdateAllocationRuleRequest, metadata *ClientMetadata) (*dto.AllocationRuleItem, error) {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, NewBusinessError("UPDATE_ALLOCATION_RULE_VALIDATION_FAILED", "Invalid rule ID", err)
	}

	rule, err := a.ruleRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("UPDATE_ALLOCATION_RULE_FAILED", "Failed to load allocation rule", err)
	}
	if rule == nil {
		return nil, NewBusinessError("UPDATE_ALLOCATION_RULE_NOT_FOUND", "Allocation rule not found", ErrRuleNotFound)
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Description != nil {
		rule.Description = req.Description
	}
	if req.IsActive != nil {
		rule.IsActive = req.IsActive
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.SourceTypes != nil {
		rule.SourceTypes = toStringArray(req.SourceTypes)
	}
	if req.LeadTypes != nil {
		rule.LeadTypes = toStringArray(req.LeadTypes)
	}
	if req.CommunityTypes != nil {
		rule.CommunityTypes = toStringArray(req.CommunityTypes)
	}
	if req.TimeRanges != nil {
		rule.TimeRanges = timeRangesFromDTO(req.TimeRanges)
	}
	if req.TargetType != nil {
		rule.TargetType = *req.TargetType
	}
	if req.TargetUsers != nil {
		rule.TargetUsers = toInt64Array(req.TargetUsers)
	}
	if req.TargetOrganizations != nil {
		rule.TargetOrganizations = toStringArray(req.TargetOrganizations)
	}
	if req.AllocationMethod != nil {
		rule.AllocationMethod = *req.AllocationMethod
	}
	rule.UpdatedAt = utils.UTCNowPtr()

	if err := a.validateAllocationRule(rule); err != nil {
		return nil, NewBusinessError("UPDATE_ALLOCATION_RULE_VALIDATION_FAILED", "Invalid allocation rule", err)
	}

	if err := a.ruleRepo.Update(ctx, rule); err != nil {
		return nil, NewBusinessError("UPDATE_ALLOCATION_RULE_FAILED", "Failed to update allocation rule", err)
	}

	item := ToAllocationRuleItem(rule)
	return &item, nil
}

func (a *RuleAdminFlowImpl) ListAllocationRules(ctx context.Context, req *dto.ListAllocationRulesRequest, metadata *ClientMetadata) ([]dto.AllocationRuleItem, error) {
	orgID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		return nil, NewBusinessError("LIST_ALLOCATION_RULES_VALIDATION_FAILED", "Invalid organization ID", err)
	}

	filter := models.AllocationRuleFilter{
		OrganizationID: &orgID,
		IsActive:       req.IsActive,
	}
	rules, err := a.ruleRepo.ByFilter(ctx, filter, "priority DESC, created_at ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("LIST_ALLOCATION_RULES_FAILED", "Failed to list allocation rules", err)
	}

	items := make([]dto.AllocationRuleItem, 0, len(rules))
	for _, r := range rules {
		items = append(items, ToAllocationRuleItem(r))
	}
	return items, nil
}

func (a *RuleAdminFlowImpl) DeleteAllocationRule(ctx context.Context, ruleID string, metadata *ClientMetadata) (*dto.DeleteAllocationRuleResponse, error) {
	id, err := uuid.Parse(ruleID)
	if err != nil {
		return nil, NewBusinessError("DELETE_ALLOCATION_RULE_VALIDATION_FAILED", "Invalid rule ID", err)
	}

	rule, err := a.ruleRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("DELETE_ALLOCATION_RULE_FAILED", "Failed to load allocation rule", err)
	}
	if rule == nil {
		return nil, NewBusinessError("DELETE_ALLOCATION_RULE_NOT_FOUND", "Allocation rule not found", ErrRuleNotFound)
	}

	referenced, err := a.logRepo.RuleReferenced(ctx, id)
	if err != nil {
		return nil, NewBusinessError("DELETE_ALLOCATION_RULE_FAILED", "Failed to check rule references", err)
	}

	if referenced {
		if err := a.ruleRepo.Deactivate(ctx, id); err != nil {
			return nil, NewBusinessError("DELETE_ALLOCATION_RULE_FAILED", "Failed to deactivate allocation rule", err)
		}
	} else {
		if err := a.ruleRepo.Delete(ctx, id); err != nil {
			return nil, NewBusinessError("DELETE_ALLOCATION_RULE_FAILED", "Failed to delete allocation rule", err)
		}
	}

	return &dto.DeleteAllocationRuleResponse{
		ID:          ruleID,
		Deactivated: referenced,
	}, nil
}

func (a *RuleAdminFlowImpl) CreateMappingRule(ctx context.Context, req *dto.CreateCommunityMappingRuleRequest, metadata *ClientMetadata) (*dto.CommunityMappingRuleItem, error) {
	rule := &models.CommunityMappingRule{
		ID:              uuid.New(),
		Name:            req.Name,
		Description:     req.Description,
		TargetCommunity: req.TargetCommunity,
		Priority:        req.Priority,
		ConfidenceScore: req.ConfidenceScore,
		CampaignIDs:     toStringArray(req.CampaignIDs),
		CampaignNames:   toStringArray(req.CampaignNames),
		UnitIDs:         toStringArray(req.UnitIDs),
		UnitNames:       toStringArray(req.UnitNames),
		CreativeIDs:     toStringArray(req.CreativeIDs),
		CreativeNames:   toStringArray(req.CreativeNames),
		Areas:           toStringArray(req.Areas),
		Locations:       toStringArray(req.Locations),
		IsActive:        utils.ToPtr(true),
		CreatedAt:       utils.UTCNow(),
	}

	if !rule.HasMatchKey() {
		return nil, NewBusinessError("CREATE_MAPPING_RULE_VALIDATION_FAILED", "Mapping rule needs at least one match key", ErrNoMappingMatchKey)
	}

	if err := a.mappingRepo.Save(ctx, rule); err != nil {
		return nil, NewBusinessError("CREATE_MAPPING_RULE_FAILED", "Failed to create mapping rule", err)
	}

	item := ToCommunityMappingRuleItem(rule)
	return &item, nil
}

func (a *RuleAdminFlowImpl) UpdateMappingRule(ctx context.Context, req *dto.UpdateCommunityMappingRuleRequest, metadata *ClientMetadata) (*dto.CommunityMappingRuleItem, error) {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, NewBusinessError("UPDATE_MAPPING_RULE_VALIDATION_FAILED", "Invalid mapping rule ID", err)
	}

	rule, err := a.mappingRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("UPDATE_MAPPING_RULE_FAILED", "Failed to load mapping rule", err)
	}
	if rule == nil {
		return nil, NewBusinessError("UPDATE_MAPPING_RULE_NOT_FOUND", "Mapping rule not found", ErrMappingRuleNotFound)
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Description != nil {
		rule.Description = req.Description
	}
	if req.TargetCommunity != nil {
		rule.TargetCommunity = *req.TargetCommunity
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.ConfidenceScore != nil {
		rule.ConfidenceScore = *req.ConfidenceScore
	}
	if req.IsActive != nil {
		rule.IsActive = req.IsActive
	}
	if req.CampaignIDs != nil {
		rule.CampaignIDs = toStringArray(req.CampaignIDs)
	}
	if req.CampaignNames != nil {
		rule.CampaignNames = toStringArray(req.CampaignNames)
	}
	if req.UnitIDs != nil {
		rule.UnitIDs = toStringArray(req.UnitIDs)
	}
	if req.UnitNames != nil {
		rule.UnitNames = toStringArray(req.UnitNames)
	}
	if req.CreativeIDs != nil {
		rule.CreativeIDs = toStringArray(req.CreativeIDs)
	}
	if req.CreativeNames != nil {
		rule.CreativeNames = toStringArray(req.CreativeNames)
	}
	if req.Areas != nil {
		rule.Areas = toStringArray(req.Areas)
	}
	if req.Locations != nil {
		rule.Locations = toStringArray(req.Locations)
	}
	rule.UpdatedAt = utils.UTCNowPtr()

	if !rule.HasMatchKey() {
		return nil, NewBusinessError("UPDATE_MAPPING_RULE_VALIDATION_FAILED", "Mapping rule needs at least one match key", ErrNoMappingMatchKey)
	}

	if err := a.mappingRepo.Update(ctx, rule); err != nil {
		return nil, NewBusinessError("UPDATE_MAPPING_RULE_FAILED", "Failed to update mapping rule", err)
	}

	item := ToCommunityMappingRuleItem(rule)
	return &item, nil
}

func (a *RuleAdminFlowImpl) ListMappingRules(ctx context.Context, metadata *ClientMetadata) ([]dto.CommunityMappingRuleItem, error) {
	rules, err := a.mappingRepo.ByFilter(ctx, models.CommunityMappingRuleFilter{}, "priority DESC, confidence_score DESC, created_at ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("LIST_MAPPING_RULES_FAILED", "Failed to list mapping rules", err)
	}

	items := make([]dto.CommunityMappingRuleItem, 0, len(rules))
	for _, r := range rules {
		items = append(items, ToCommunityMappingRuleItem(r))
	}
	return items, nil
}

func (a *RuleAdminFlowImpl) DeleteMappingRule(ctx context.Context, mappingRuleID string, metadata *ClientMetadata) error {
	id, err := uuid.Parse(mappingRuleID)
	if err != nil {
		return NewBusinessError("DELETE_MAPPING_RULE_VALIDATION_FAILED", "Invalid mapping rule ID", err)
	}

	rule, err := a.mappingRepo.ByID(ctx, id)
	if err != nil {
		return NewBusinessError("DELETE_MAPPING_RULE_FAILED", "Failed to load mapping rule", err)
	}
	if rule == nil {
		return NewBusinessError("DELETE_MAPPING_RULE_NOT_FOUND", "Mapping rule not found", ErrMappingRuleNotFound)
	}

	// Log rows snapshot the mapping rule name and confidence, so deleting
	// the rule never orphans the audit trail
	if err := a.mappingRepo.Delete(ctx, id); err != nil {
		return NewBusinessError("DELETE_MAPPING_RULE_FAILED", "Failed to delete mapping rule", err)
	}
	return nil
}

// validateAllocationRule enforces the write-time invariants: filter sets are
// null or non-empty, time ranges parse, and the target pool matches the
// target type and is non-empty.
func (a *RuleAdminFlowImpl) validateAllocationRule(rule *models.AllocationRule) error {
	for _, set := range []pq.StringArray{rule.SourceTypes, rule.LeadTypes, rule.CommunityTypes} {
		if set != nil && len(set) == 0 {
			return ErrEmptyFilterSet
		}
	}

	if err := rule.TimeRanges.Validate(); err != nil {
		return ErrInvalidTimeRanges
	}

	switch rule.AllocationMethod {
	case models.AllocationMethodRoundRobin, models.AllocationMethodRandom, models.AllocationMethodWorkload:
	default:
		return ErrUnknownAllocationMethod
	}

	switch rule.TargetType {
	case models.TargetTypeUser:
		if len(rule.TargetUsers) == 0 {
			return ErrEmptyTargetPool
		}
		if len(rule.TargetOrganizations) > 0 {
			return ErrTargetTypeMismatch
		}
	case models.TargetTypeOrganization:
		if len(rule.TargetOrganizations) == 0 {
			return ErrEmptyTargetPool
		}
		if len(rule.TargetUsers) > 0 {
			return ErrTargetTypeMismatch
		}
		for _, raw := range rule.TargetOrganizations {
			if _, err := uuid.Parse(raw); err != nil {
				return ErrTargetTypeMismatch
			}
		}
	default:
		return ErrTargetTypeMismatch
	}

	return nil
}

// toStringArray keeps the null-vs-empty distinction: a nil slice stays NULL
// (match-all), a non-nil slice becomes a membership set.
func toStringArray(in []string) pq.StringArray {
	if in == nil {
		return nil
	}
	return pq.StringArray(in)
}

func toInt64Array(in []int64) pq.Int64Array {
	if in == nil {
		return nil
	}
	return pq.Int64Array(in)
}
