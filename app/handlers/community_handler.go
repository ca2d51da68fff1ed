package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/linkcrm/lead-engine/app/dto"
	businessflow "github.com/linkcrm/lead-engine/business_flow"
	"github.com/linkcrm/lead-engine/utils"
)

type CommunityHandlerInterface interface {
	CreateMappingRule(c fiber.Ctx) error
	UpdateMappingRule(c fiber.Ctx) error
	ListMappingRules(c fiber.Ctx) error
	DeleteMappingRule(c fiber.Ctx) error
	TestMapping(c fiber.Ctx) error
	ReallocateByCommunity(c fiber.Ctx) error
	BatchReallocateByCommunity(c fiber.Ctx) error
}

type CommunityHandler struct {
	adminFlow businessflow.RuleAdminFlow
	flow      businessflow.CommunityFlow
	validator *validator.Validate
}

func NewCommunityHandler(adminFlow businessflow.RuleAdminFlow, flow businessflow.CommunityFlow) *CommunityHandler {
	return &CommunityHandler{adminFlow: adminFlow, flow: flow, validator: validator.New()}
}

func (h *CommunityHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: errorCode, Details: details},
	})
}

func (h *CommunityHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// CreateMappingRule creates a community mapping rule
// @Summary Create Community Mapping Rule
// @Tags Communities
// @Accept json
// @Produce json
// @Param request body dto.CreateCommunityMappingRuleRequest true "Mapping rule payload"
// @Success 201 {object} dto.APIResponse{data=dto.CommunityMappingRuleItem}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/communities/mapping-rules [post]
func (h *CommunityHandler) CreateMappingRule(c fiber.Ctx) error {
	var req dto.CreateCommunityMappingRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := clientMetadata(c)
	res, err := h.adminFlow.CreateMappingRule(h.createRequestContext(c, "/api/v1/communities/mapping-rules"), &req, metadata)
	if err != nil {
		if businessflow.IsNoMappingMatchKey(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Mapping rule needs at least one match key", "NO_MAPPING_MATCH_KEY", nil)
		}

		log.Println("Create mapping rule failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create mapping rule", "CREATE_MAPPING_RULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Mapping rule created successfully", res)
}

// UpdateMappingRule updates a community mapping rule
// @Summary Update Community Mapping Rule
// @Tags Communities
// @Accept json
// @Produce json
// @Param mapping_rule_id path string true "Mapping rule ID"
// @Param request body dto.UpdateCommunityMappingRuleRequest true "Mapping rule update payload"
// @Success 200 {object} dto.APIResponse{data=dto.CommunityMappingRuleItem}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Mapping rule not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/communities/mapping-rules/{mapping_rule_id} [put]
func (h *CommunityHandler) UpdateMappingRule(c fiber.Ctx) error {
	var req dto.UpdateCommunityMappingRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.ID = c.Params("mapping_rule_id")
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := clientMetadata(c)
	res, err := h.adminFlow.UpdateMappingRule(h.createRequestContext(c, "/api/v1/communities/mapping-rules/"+req.ID), &req, metadata)
	if err != nil {
		if businessflow.IsMappingRuleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Mapping rule not found", "MAPPING_RULE_NOT_FOUND", nil)
		}
		if businessflow.IsNoMappingMatchKey(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Mapping rule needs at least one match key", "NO_MAPPING_MATCH_KEY", nil)
		}

		log.Println("Update mapping rule failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update mapping rule", "UPDATE_MAPPING_RULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Mapping rule updated successfully", res)
}

// ListMappingRules lists community mapping rules in evaluation order
// @Summary List Community Mapping Rules
// @Tags Communities
// @Produce json
// @Success 200 {object} dto.APIResponse{data=[]dto.CommunityMappingRuleItem}
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/communities/mapping-rules [get]
func (h *CommunityHandler) ListMappingRules(c fiber.Ctx) error {
	metadata := clientMetadata(c)
	res, err := h.adminFlow.ListMappingRules(h.createRequestContext(c, "/api/v1/communities/mapping-rules"), metadata)
	if err != nil {
		log.Println("List mapping rules failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list mapping rules", "LIST_MAPPING_RULES_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Mapping rules retrieved successfully", res)
}

// DeleteMappingRule deletes a community mapping rule
// @Summary Delete Community Mapping Rule
// @Tags Communities
// @Produce json
// @Param mapping_rule_id path string true "Mapping rule ID"
// @Success 200 {object} dto.APIResponse
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Mapping rule not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/communities/mapping-rules/{mapping_rule_id} [delete]
func (h *CommunityHandler) DeleteMappingRule(c fiber.Ctx) error {
	mappingRuleID := c.Params("mapping_rule_id")
	if mappingRuleID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid mapping_rule_id", "VALIDATION_ERROR", nil)
	}

	metadata := clientMetadata(c)
	err := h.adminFlow.DeleteMappingRule(h.createRequestContext(c, "/api/v1/communities/mapping-rules/"+mappingRuleID), mappingRuleID, metadata)
	if err != nil {
		if businessflow.IsMappingRuleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Mapping rule not found", "MAPPING_RULE_NOT_FOUND", nil)
		}

		log.Println("Delete mapping rule failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete mapping rule", "DELETE_MAPPING_RULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Mapping rule deleted successfully", nil)
}

// TestMapping evaluates mapping rules against hypothetical campaign metadata
// @Summary Test Community Mapping
// @Tags Communities
// @Accept json
// @Produce json
// @Param request body dto.TestCommunityMappingRequest true "Campaign metadata probe"
// @Success 200 {object} dto.APIResponse{data=dto.TestCommunityMappingResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/communities/mapping-rules/test [post]
func (h *CommunityHandler) TestMapping(c fiber.Ctx) error {
	var req dto.TestCommunityMappingRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	metadata := clientMetadata(c)
	res, err := h.flow.TestMapping(h.createRequestContext(c, "/api/v1/communities/mapping-rules/test"), &req, metadata)
	if err != nil {
		log.Println("Mapping test failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to test mapping", "TEST_COMMUNITY_MAPPING_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Mapping evaluated successfully", res)
}

// ReallocateByCommunity moves one lead to the organization covering the community
// @Summary Reallocate Lead By Community
// @Tags Communities
// @Accept json
// @Produce json
// @Param request body dto.ReallocateByCommunityRequest true "Reallocation payload"
// @Success 200 {object} dto.APIResponse{data=dto.ReallocateByCommunityResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Lead or organization not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/communities/reallocate [post]
func (h *CommunityHandler) ReallocateByCommunity(c fiber.Ctx) error {
	var req dto.ReallocateByCommunityRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := clientMetadata(c)
	res, err := h.flow.ReallocateByCommunity(h.createRequestContext(c, "/api/v1/communities/reallocate"), &req, metadata)
	if err != nil {
		if businessflow.IsLeadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
		}
		if businessflow.IsFollowupNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Followup not found", "FOLLOWUP_NOT_FOUND", nil)
		}
		if businessflow.IsNoOrganizationForCommunity(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No organization covers the community", "NO_ORGANIZATION_FOR_COMMUNITY", nil)
		}
		if businessflow.IsOrganizationHasNoAdmin(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Organization has no admin profile", "ORGANIZATION_HAS_NO_ADMIN", nil)
		}

		log.Println("Community reallocation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reallocate lead", "REALLOCATE_BY_COMMUNITY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lead reallocated successfully", res)
}

// BatchReallocateByCommunity reallocates every lead of a community
// @Summary Batch Reallocate Leads By Community
// @Description Applies community reallocation to all leads of the community within an optional creation date range; per-lead failures never abort the batch
// @Tags Communities
// @Accept json
// @Produce json
// @Param request body dto.BatchReallocateByCommunityRequest true "Batch reallocation payload"
// @Success 200 {object} dto.APIResponse{data=dto.BatchReallocateByCommunityResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/communities/reallocate/batch [post]
func (h *CommunityHandler) BatchReallocateByCommunity(c fiber.Ctx) error {
	var req dto.BatchReallocateByCommunityRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := clientMetadata(c)
	// Batches can cover thousands of leads; allow more headroom than usual
	res, err := h.flow.BatchReallocateByCommunity(h.createRequestContextWithTimeout(c, "/api/v1/communities/reallocate/batch", 5*time.Minute), &req, metadata)
	if err != nil {
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "START_DATE_AFTER_END_DATE", nil)
		}

		log.Println("Batch community reallocation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to batch reallocate leads", "BATCH_REALLOCATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Batch reallocation completed", res)
}

func (h *CommunityHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *CommunityHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
