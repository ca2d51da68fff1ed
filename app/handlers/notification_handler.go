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

type NotificationHandlerInterface interface {
	ListPendingNotifications(c fiber.Ctx) error
	MarkNotificationHandled(c fiber.Ctx) error
}

type NotificationHandler struct {
	flow      businessflow.DuplicateFlow
	validator *validator.Validate
}

func NewNotificationHandler(flow businessflow.DuplicateFlow) *NotificationHandler {
	return &NotificationHandler{flow: flow, validator: validator.New()}
}

func (h *NotificationHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: errorCode, Details: details},
	})
}

func (h *NotificationHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// ListPendingNotifications lists pending duplicate notifications of the authenticated user
// @Summary List Pending Duplicate Notifications
// @Tags Notifications
// @Produce json
// @Success 200 {object} dto.APIResponse{data=[]dto.DuplicateNotificationItem}
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/notifications/duplicates [get]
func (h *NotificationHandler) ListPendingNotifications(c fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(int64)
	if !ok || userID == 0 {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.ListDuplicateNotificationsRequest{UserID: userID}
	metadata := clientMetadata(c)
	res, err := h.flow.ListPendingNotifications(h.createRequestContext(c, "/api/v1/notifications/duplicates"), &req, metadata)
	if err != nil {
		log.Println("List duplicate notifications failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list notifications", "LIST_DUPLICATE_NOTIFICATIONS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Notifications retrieved successfully", res)
}

// MarkNotificationHandled marks one duplicate notification as handled
// @Summary Mark Duplicate Notification Handled
// @Tags Notifications
// @Produce json
// @Param notification_id path string true "Notification ID"
// @Success 200 {object} dto.APIResponse{data=dto.MarkNotificationHandledResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Notification not found"
// @Failure 409 {object} dto.APIResponse "Notification already handled"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/notifications/duplicates/{notification_id}/handled [post]
func (h *NotificationHandler) MarkNotificationHandled(c fiber.Ctx) error {
	req := dto.MarkNotificationHandledRequest{NotificationID: c.Params("notification_id")}
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := clientMetadata(c)
	res, err := h.flow.MarkNotificationHandled(h.createRequestContext(c, "/api/v1/notifications/duplicates/"+req.NotificationID+"/handled"), &req, metadata)
	if err != nil {
		if businessflow.IsNotificationNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Notification not found", "NOTIFICATION_NOT_FOUND", nil)
		}
		if businessflow.IsNotificationAlreadyHandled(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Notification already handled", "NOTIFICATION_ALREADY_HANDLED", nil)
		}

		log.Println("Mark notification handled failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to mark notification handled", "MARK_NOTIFICATION_HANDLED_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Notification marked as handled", res)
}

func (h *NotificationHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *NotificationHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx
}
