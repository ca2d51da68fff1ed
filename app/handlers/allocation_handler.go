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

type AllocationHandlerInterface interface {
	AllocateLead(c fiber.Ctx) error
	ManualReassign(c fiber.Ctx) error
	TestAllocation(c fiber.Ctx) error
}

type AllocationHandler struct {
	flow      businessflow.AllocationFlow
	validator *validator.Validate
}

func NewAllocationHandler(flow businessflow.AllocationFlow) *AllocationHandler {
	return &AllocationHandler{flow: flow, validator: validator.New()}
}

func (h *AllocationHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: errorCode, Details: details},
	})
}

func (h *AllocationHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// AllocateLead handles a lead-created event and assigns an owner
// @Summary Allocate Lead
// @Description Run community inference, duplicate detection, rule matching, and strategy selection for a new lead
// @Tags Allocation
// @Accept json
// @Produce json
// @Param request body dto.AllocateLeadRequest true "Lead-created event payload"
// @Success 201 {object} dto.APIResponse{data=dto.AllocateLeadResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Organization not found"
// @Failure 409 {object} dto.APIResponse "Lead already exists"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads/allocate [post]
func (h *AllocationHandler) AllocateLead(c fiber.Ctx) error {
	var req dto.AllocateLeadRequest
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
	res, err := h.flow.AllocateLead(h.createRequestContext(c, "/api/v1/leads/allocate"), &req, metadata)
	if err != nil {
		if businessflow.IsOrganizationNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Organization not found", "ORGANIZATION_NOT_FOUND", nil)
		}
		if businessflow.IsLeadAlreadyExists(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Lead already exists", "LEAD_ALREADY_EXISTS", nil)
		}

		log.Println("Lead allocation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to allocate lead", "ALLOCATE_LEAD_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Lead allocated successfully", res)
}

// ManualReassign moves an existing lead to an explicit user
// @Summary Manually Reassign Lead
// @Tags Allocation
// @Accept json
// @Produce json
// @Param request body dto.ManualReassignRequest true "Reassignment payload"
// @Success 200 {object} dto.APIResponse{data=dto.ManualReassignResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Lead or assignee not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads/reassign [post]
func (h *AllocationHandler) ManualReassign(c fiber.Ctx) error {
	var req dto.ManualReassignRequest
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
	res, err := h.flow.ManualReassign(h.createRequestContext(c, "/api/v1/leads/reassign"), &req, metadata)
	if err != nil {
		if businessflow.IsLeadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
		}
		if businessflow.IsFollowupNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Followup not found", "FOLLOWUP_NOT_FOUND", nil)
		}
		if businessflow.IsAssigneeNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Assignee not found", "ASSIGNEE_NOT_FOUND", nil)
		}
		if businessflow.IsAssigneeInactive(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Assignee is inactive", "ASSIGNEE_INACTIVE", nil)
		}

		log.Println("Manual reassignment failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reassign lead", "MANUAL_REASSIGN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lead reassigned successfully", res)
}

// TestAllocation evaluates the decision pipeline against a hypothetical lead
// @Summary Test Allocation
// @Description Dry-run rule matching and strategy selection; nothing is persisted and no cursor advances
// @Tags Allocation
// @Accept json
// @Produce json
// @Param request body dto.TestAllocationRequest true "Hypothetical lead payload"
// @Success 200 {object} dto.APIResponse{data=dto.TestAllocationResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Organization not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads/allocate/test [post]
func (h *AllocationHandler) TestAllocation(c fiber.Ctx) error {
	var req dto.TestAllocationRequest
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
	res, err := h.flow.TestAllocation(h.createRequestContext(c, "/api/v1/leads/allocate/test"), &req, metadata)
	if err != nil {
		if businessflow.IsOrganizationNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Organization not found", "ORGANIZATION_NOT_FOUND", nil)
		}

		log.Println("Allocation test failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to test allocation", "TEST_ALLOCATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Allocation evaluated successfully", res)
}

func (h *AllocationHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *AllocationHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
