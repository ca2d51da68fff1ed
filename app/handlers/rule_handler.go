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

type RuleHandlerInterface interface {
	CreateAllocationRule(c fiber.Ctx) error
	UpdateAllocationRule(c fiber.Ctx) error
	ListAllocationRules(c fiber.Ctx) error
	DeleteAllocationRule(c fiber.Ctx) error
}

type RuleHandler struct {
	flow      businessflow.RuleAdminFlow
	validator *validator.Validate
}

func NewRuleHandler(flow businessflow.RuleAdminFlow) *RuleHandler {
	return &RuleHandler{flow: flow, validator: validator.New()}
}

func (h *RuleHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: errorCode, Details: details},
	})
}

func (h *RuleHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// ruleValidationError maps write-time rule invariant violations to responses.
// Returns false when the error is not a validation failure.
func (h *RuleHandler) ruleValidationError(c fiber.Ctx, err error) (error, bool) {
	if businessflow.IsEmptyFilterSet(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Filter sets must be null or non-empty", "EMPTY_FILTER_SET", nil), true
	}
	if businessflow.IsEmptyTargetPool(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Target pool must not be empty", "EMPTY_TARGET_POOL", nil), true
	}
	if businessflow.IsTargetTypeMismatch(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Target pool does not match target type", "TARGET_TYPE_MISMATCH", nil), true
	}
	if businessflow.IsInvalidTimeRanges(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid time ranges", "INVALID_TIME_RANGES", nil), true
	}
	if businessflow.IsUnknownAllocationMethod(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown allocation method", "UNKNOWN_ALLOCATION_METHOD", nil), true
	}
	return nil, false
}

// CreateAllocationRule creates a new allocation rule
// @Summary Create Allocation Rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param request body dto.CreateAllocationRuleRequest true "Rule payload"
// @Success 201 {object} dto.APIResponse{data=dto.AllocationRuleItem}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/rules [post]
func (h *RuleHandler) CreateAllocationRule(c fiber.Ctx) error {
	var req dto.CreateAllocationRuleRequest
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
	res, err := h.flow.CreateAllocationRule(h.createRequestContext(c, "/api/v1/rules"), &req, metadata)
	if err != nil {
		if resp, ok := h.ruleValidationError(c, err); ok {
			return resp
		}

		log.Println("Create allocation rule failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create allocation rule", "CREATE_ALLOCATION_RULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Allocation rule created successfully", res)
}

// UpdateAllocationRule updates an existing allocation rule
// @Summary Update Allocation Rule
// @Tags Rules
// @Accept json
// @Produce json
// @Param rule_id path string true "Rule ID"
// @Param request body dto.UpdateAllocationRuleRequest true "Rule update payload"
// @Success 200 {object} dto.APIResponse{data=dto.AllocationRuleItem}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Rule not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/rules/{rule_id} [put]
func (h *RuleHandler) UpdateAllocationRule(c fiber.Ctx) error {
	var req dto.UpdateAllocationRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.ID = c.Params("rule_id")
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := clientMetadata(c)
	res, err := h.flow.UpdateAllocationRule(h.createRequestContext(c, "/api/v1/rules/"+req.ID), &req, metadata)
	if err != nil {
		if businessflow.IsRuleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Allocation rule not found", "RULE_NOT_FOUND", nil)
		}
		if resp, ok := h.ruleValidationError(c, err); ok {
			return resp
		}

		log.Println("Update allocation rule failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update allocation rule", "UPDATE_ALLOCATION_RULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Allocation rule updated successfully", res)
}

// ListAllocationRules lists allocation rules of an organization
// @Summary List Allocation Rules
// @Tags Rules
// @Produce json
// @Param organization_id query string true "Organization ID"
// @Param is_active query bool false "Filter by active state"
// @Success 200 {object} dto.APIResponse{data=[]dto.AllocationRuleItem}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/rules [get]
func (h *RuleHandler) ListAllocationRules(c fiber.Ctx) error {
	req := dto.ListAllocationRulesRequest{
		OrganizationID: c.Query("organization_id"),
	}
	if v := c.Query("is_active"); v != "" {
		active := v == "true"
		req.IsActive = &active
	}
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := clientMetadata(c)
	res, err := h.flow.ListAllocationRules(h.createRequestContext(c, "/api/v1/rules"), &req, metadata)
	if err != nil {
		log.Println("List allocation rules failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list allocation rules", "LIST_ALLOCATION_RULES_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Allocation rules retrieved successfully", res)
}

// DeleteAllocationRule deletes a rule, or deactivates it when referenced
// @Summary Delete Allocation Rule
// @Description Rules referenced by allocation logs are deactivated instead of removed so the audit trail stays resolvable
// @Tags Rules
// @Produce json
// @Param rule_id path string true "Rule ID"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteAllocationRuleResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Rule not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/rules/{rule_id} [delete]
func (h *RuleHandler) DeleteAllocationRule(c fiber.Ctx) error {
	ruleID := c.Params("rule_id")
	if ruleID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid rule_id", "VALIDATION_ERROR", nil)
	}

	metadata := clientMetadata(c)
	res, err := h.flow.DeleteAllocationRule(h.createRequestContext(c, "/api/v1/rules/"+ruleID), ruleID, metadata)
	if err != nil {
		if businessflow.IsRuleNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Allocation rule not found", "RULE_NOT_FOUND", nil)
		}

		log.Println("Delete allocation rule failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete allocation rule", "DELETE_ALLOCATION_RULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Allocation rule deleted successfully", res)
}

func (h *RuleHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *RuleHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
