package dto

// DuplicateNotificationItem is one advisory duplicate record surfaced to the
// owner of the original lead
type DuplicateNotificationItem struct {
	ID              string  `json:"id"`
	NewLeadID       string  `json:"new_leadid"`
	OriginalLeadID  string  `json:"original_leadid"`
	DuplicateType   string  `json:"duplicate_type"`
	DuplicatePhone  *string `json:"duplicate_phone,omitempty"`
	DuplicateWechat *string `json:"duplicate_wechat,omitempty"`
	Status          string  `json:"notification_status"`
	CreatedAt       string  `json:"created_at"`
}

// ListDuplicateNotificationsRequest lists pending notifications for a user
type ListDuplicateNotificationsRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

// MarkNotificationHandledRequest marks one notification as handled
type MarkNotificationHandledRequest struct {
	NotificationID string `json:"notification_id" validate:"required,uuid"`
}

// MarkNotificationHandledResponse confirms the status transition
type MarkNotificationHandledResponse struct {
	NotificationID string `json:"notification_id"`
	Status         string `json:"notification_status"`
}
