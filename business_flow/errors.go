// Package businessflow contains the core business logic and use cases for lead allocation workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Lead-related errors
	ErrLeadNotFound      = errors.New("lead not found")
	ErrLeadAlreadyExists = errors.New("lead already exists")
	ErrFollowupNotFound  = errors.New("followup not found")

	// Assignment errors
	ErrNoEligibleTarget           = errors.New("no eligible assignment target")
	ErrUnknownAllocationMethod    = errors.New("unknown allocation method")
	ErrCursorContention           = errors.New("round-robin cursor contention retries exhausted")
	ErrAssigneeNotFound           = errors.New("assignee not found")
	ErrAssigneeInactive           = errors.New("assignee is inactive")
	ErrOrganizationNotFound       = errors.New("organization not found")
	ErrNoOrganizationForCommunity = errors.New("no organization covers the community")
	ErrOrganizationHasNoAdmin     = errors.New("organization has no admin profile")

	// Rule validation errors
	ErrRuleNotFound       = errors.New("allocation rule not found")
	ErrEmptyFilterSet     = errors.New("filter set must be null or non-empty")
	ErrEmptyTargetPool    = errors.New("target pool must not be empty")
	ErrTargetTypeMismatch = errors.New("target pool does not match target type")
	ErrInvalidTimeRanges  = errors.New("invalid time ranges")
	ErrRuleUpdateRequired = errors.New("at least one field must be provided for update")

	// Mapping rule errors
	ErrMappingRuleNotFound = errors.New("community mapping rule not found")
	ErrNoMappingMatchKey   = errors.New("mapping rule needs at least one match key")

	// Notification errors
	ErrNotificationNotFound       = errors.New("notification not found")
	ErrNotificationAlreadyHandled = errors.New("notification already handled")

	// Filter errors
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")

	ErrCacheNotAvailable = errors.New("cache not available")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsLeadNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}

func IsLeadAlreadyExists(err error) bool {
	return errors.Is(err, ErrLeadAlreadyExists)
}

func IsFollowupNotFound(err error) bool {
	return errors.Is(err, ErrFollowupNotFound)
}

func IsNoEligibleTarget(err error) bool {
	return errors.Is(err, ErrNoEligibleTarget)
}

func IsUnknownAllocationMethod(err error) bool {
	return errors.Is(err, ErrUnknownAllocationMethod)
}

func IsCursorContention(err error) bool {
	return errors.Is(err, ErrCursorContention)
}

func IsAssigneeNotFound(err error) bool {
	return errors.Is(err, ErrAssigneeNotFound)
}

func IsAssigneeInactive(err error) bool {
	return errors.Is(err, ErrAssigneeInactive)
}

func IsOrganizationNotFound(err error) bool {
	return errors.Is(err, ErrOrganizationNotFound)
}

func IsNoOrganizationForCommunity(err error) bool {
	return errors.Is(err, ErrNoOrganizationForCommunity)
}

func IsOrganizationHasNoAdmin(err error) bool {
	return errors.Is(err, ErrOrganizationHasNoAdmin)
}

func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}

func IsEmptyFilterSet(err error) bool {
	return errors.Is(err, ErrEmptyFilterSet)
}

func IsEmptyTargetPool(err error) bool {
	return errors.Is(err, ErrEmptyTargetPool)
}

func IsTargetTypeMismatch(err error) bool {
	return errors.Is(err, ErrTargetTypeMismatch)
}

func IsInvalidTimeRanges(err error) bool {
	return errors.Is(err, ErrInvalidTimeRanges)
}

func IsRuleUpdateRequired(err error) bool {
	return errors.Is(err, ErrRuleUpdateRequired)
}

func IsMappingRuleNotFound(err error) bool {
	return errors.Is(err, ErrMappingRuleNotFound)
}

func IsNoMappingMatchKey(err error) bool {
	return errors.Is(err, ErrNoMappingMatchKey)
}

func IsNotificationNotFound(err error) bool {
	return errors.Is(err, ErrNotificationNotFound)
}

func IsNotificationAlreadyHandled(err error) bool {
	return errors.Is(err, ErrNotificationAlreadyHandled)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}

func IsCacheNotAvailable(err error) bool {
	return errors.Is(err, ErrCacheNotAvailable)
}
