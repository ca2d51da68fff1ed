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

type StatsHandlerInterface interface {
	GetAllocationStats(c fiber.Ctx) error
	ExportAllocationReport(c fiber.Ctx) error
}

type StatsHandler struct {
	flow      businessflow.StatsFlow
	validator *validator.Validate
}

func NewStatsHandler(flow businessflow.StatsFlow) *StatsHandler {
	return &StatsHandler{flow: flow, validator: validator.New()}
}

func (h *StatsHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: errorCode, Details: details},
	})
}

func (h *StatsHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

func (h *StatsHandler) statsRequestFromQuery(c fiber.Ctx) dto.AllocationStatsRequest {
	req := dto.AllocationStatsRequest{
		OrganizationID: c.Query("organization_id"),
	}
	if v := c.Query("date_start"); v != "" {
		req.DateStart = &v
	}
	if v := c.Query("date_end"); v != "" {
		req.DateEnd = &v
	}
	return req
}

// GetAllocationStats summarizes allocation outcomes over a date window
// @Summary Get Allocation Statistics
// @Description Totals, rates, and per-method and per-assignee breakdowns; served from cache when fresh
// @Tags Stats
// @Produce json
// @Param organization_id query string true "Organization ID"
// @Param date_start query string false "Start date (YYYY-MM-DD)"
// @Param date_end query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} dto.APIResponse{data=dto.AllocationStatsResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/stats/allocation [get]
func (h *StatsHandler) GetAllocationStats(c fiber.Ctx) error {
	req := h.statsRequestFromQuery(c)
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := clientMetadata(c)
	res, err := h.flow.GetAllocationStats(h.createRequestContext(c, "/api/v1/stats/allocation"), &req, metadata)
	if err != nil {
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "START_DATE_AFTER_END_DATE", nil)
		}

		log.Println("Allocation stats retrieval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve allocation stats", "GET_ALLOCATION_STATS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Allocation stats retrieved successfully", res)
}

// ExportAllocationReport renders the allocation statistics as an XLSX workbook
// @Summary Export Allocation Report
// @Tags Stats
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param organization_id query string true "Organization ID"
// @Param date_start query string false "Start date (YYYY-MM-DD)"
// @Param date_end query string false "End date (YYYY-MM-DD)"
// @Success 200 {file} binary "XLSX report"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/stats/allocation/export [get]
func (h *StatsHandler) ExportAllocationReport(c fiber.Ctx) error {
	req := h.statsRequestFromQuery(c)
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := clientMetadata(c)
	content, filename, err := h.flow.ExportAllocationReport(h.createRequestContextWithTimeout(c, "/api/v1/stats/allocation/export", 2*time.Minute), &req, metadata)
	if err != nil {
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "START_DATE_AFTER_END_DATE", nil)
		}

		log.Println("Allocation report export failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export allocation report", "EXPORT_ALLOCATION_REPORT_FAILED", nil)
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Status(fiber.StatusOK).Send(content)
}

func (h *StatsHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *StatsHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
