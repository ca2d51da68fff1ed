package businessflow

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/linkcrm/lead-engine/app/dto"
	"github.com/linkcrm/lead-engine/app/services"
	"github.com/linkcrm/lead-engine/models"
	"github.com/linkcrm/lead-engine/repository"
	"github.com/linkcrm/lead-engine/utils"
)

// DuplicateResult describes what duplicate detection found for a new lead.
// Detection is advisory: the new lead still goes through normal assignment.
type DuplicateResult struct {
	PhoneOriginal  *models.Lead
	WechatOriginal *models.Lead
}

// IsDuplicate reports whether any identifier collided
func (r *DuplicateResult) IsDuplicate() bool {
	return r != nil && (r.PhoneOriginal != nil || r.WechatOriginal != nil)
}

// Type classifies the collision as phone, wechat, or both
func (r *DuplicateResult) Type() string {
	switch {
	case r == nil:
		return ""
	case r.PhoneOriginal != nil && r.WechatOriginal != nil:
		return models.DuplicateTypeBoth
	case r.PhoneOriginal != nil:
		return models.DuplicateTypePhone
	case r.WechatOriginal != nil:
		return models.DuplicateTypeWechat
	default:
		return ""
	}
}

// Primary returns the original lead of record. When phone and wechat point
// at different originals the phone original wins.
func (r *DuplicateResult) Primary() *models.Lead {
	if r == nil {
		return nil
	}
	if r.PhoneOriginal != nil {
		return r.PhoneOriginal
	}
	return r.WechatOriginal
}

// Secondary returns the wechat original when it is a different lead than
// the primary, nil otherwise.
func (r *DuplicateResult) Secondary() *models.Lead {
	if r == nil || r.PhoneOriginal == nil || r.WechatOriginal == nil {
		return nil
	}
	if r.WechatOriginal.LeadID == r.PhoneOriginal.LeadID {
		return nil
	}
	return r.WechatOriginal
}

// DuplicateFlow defines duplicate detection and notification operations
type DuplicateFlow interface {
	// Detect classifies the new lead against active leads sharing its phone
	// or wechat. Terminal-stage leads never count.
	Detect(ctx context.Context, lead *models.Lead) (*DuplicateResult, error)
	// RecordNotifications persists pending advisory notifications for the
	// owners of the original leads. Intended to run inside the allocation
	// unit of work.
	RecordNotifications(ctx context.Context, lead *models.Lead, result *DuplicateResult) ([]*models.DuplicateNotification, error)
	// Dispatch hands committed notifications to the delivery collaborator.
	// Best effort; delivery failures never fail the allocation.
	Dispatch(ctx context.Context, notifications []*models.DuplicateNotification)
	ListPendingNotifications(ctx context.Context, req *dto.ListDuplicateNotificationsRequest, metadata *ClientMetadata) ([]dto.DuplicateNotificationItem, error)
	MarkNotificationHandled(ctx context.Context, req *dto.MarkNotificationHandledRequest, metadata *ClientMetadata) (*dto.MarkNotificationHandledResponse, error)
}

// DuplicateFlowImpl implements DuplicateFlow
type DuplicateFlowImpl struct {
	leadRepo     repository.LeadRepository
	followupRepo repository.FollowupRepository
	notifRepo    repository.DuplicateNotificationRepository
	notifier     services.NotificationService
}

// NewDuplicateFlow constructs a DuplicateFlow
func NewDuplicateFlow(
	leadRepo repository.LeadRepository,
	followupRepo repository.FollowupRepository,
	notifRepo repository.DuplicateNotificationRepository,
	notifier services.NotificationService,
) DuplicateFlow {
	return &DuplicateFlowImpl{
		leadRepo:     leadRepo,
		followupRepo: followupRepo,
		notifRepo:    notifRepo,
		notifier:     notifier,
	}
}

func (d *DuplicateFlowImpl) Detect(ctx context.Context, lead *models.Lead) (*DuplicateResult, error) {
	result := &DuplicateResult{}

	if lead.Phone != nil && *lead.Phone != "" {
		matches, err := d.leadRepo.FindActiveByPhone(ctx, *lead.Phone, lead.LeadID)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			result.PhoneOriginal = matches[0]
		}
	}

	if lead.Wechat != nil && *lead.Wechat != "" {
		matches, err := d.leadRepo.FindActiveByWechat(ctx, *lead.Wechat, lead.LeadID)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			result.WechatOriginal = matches[0]
		}
	}

	if result.IsDuplicate() {
		duplicateLeadsTotal.WithLabelValues(result.Type()).Inc()
	}

	return result, nil
}

func (d *DuplicateFlowImpl) RecordNotifications(ctx context.Context, lead *models.Lead, result *DuplicateResult) ([]*models.DuplicateNotification, error) {
	if !result.IsDuplicate() {
		return nil, nil
	}

	type pending struct {
		original *models.Lead
		dupType  string
	}

	var targets []pending
	primary := result.Primary()
	targets = append(targets, pending{original: primary, dupType: d.typeForOriginal(result, primary)})
	if secondary := result.Secondary(); secondary != nil {
		targets = append(targets, pending{original: secondary, dupType: models.DuplicateTypeWechat})
	}

	var created []*models.DuplicateNotification
	for _, t := range targets {
		exists, err := d.notifRepo.ExistsForPair(ctx, lead.LeadID, t.original.LeadID, t.dupType)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		var owner *int64
		followup, err := d.followupRepo.ByLeadID(ctx, t.original.LeadID)
		if err != nil {
			return nil, err
		}
		if followup != nil {
			owner = followup.InterviewsalesUserID
		}

		n := &models.DuplicateNotification{
			ID:                 uuid.New(),
			NewLeadID:          lead.LeadID,
			OriginalLeadID:     t.original.LeadID,
			DuplicateType:      t.dupType,
			OwnerUserID:        owner,
			CustomerPhone:      lead.Phone,
			CustomerWechat:     lead.Wechat,
			NotificationStatus: models.NotificationStatusPending,
			CreatedAt:          utils.UTCNow(),
		}
		if err := d.notifRepo.Save(ctx, n); err != nil {
			return nil, err
		}
		created = append(created, n)
	}

	return created, nil
}

// typeForOriginal narrows "both" down when the two identifiers resolved to
// different original leads: the primary then only carries the phone match.
func (d *DuplicateFlowImpl) typeForOriginal(result *DuplicateResult, original *models.Lead) string {
	if result.Type() == models.DuplicateTypeBoth && result.Secondary() != nil {
		if original.LeadID == result.PhoneOriginal.LeadID {
			return models.DuplicateTypePhone
		}
		return models.DuplicateTypeWechat
	}
	return result.Type()
}

func (d *DuplicateFlowImpl) Dispatch(ctx context.Context, notifications []*models.DuplicateNotification) {
	for _, n := range notifications {
		if err := d.notifier.NotifyDuplicate(ctx, n); err != nil {
			log.Printf("duplicate notification dispatch failed for %s: %v", n.ID, err)
		}
	}
}

func (d *DuplicateFlowImpl) ListPendingNotifications(ctx context.Context, req *dto.ListDuplicateNotificationsRequest, metadata *ClientMetadata) ([]dto.DuplicateNotificationItem, error) {
	rows, err := d.notifRepo.ListPendingByUser(ctx, req.UserID)
	if err != nil {
		return nil, NewBusinessError("LIST_DUPLICATE_NOTIFICATIONS_FAILED", "Failed to list notifications", err)
	}

	items := make([]dto.DuplicateNotificationItem, 0, len(rows))
	for _, n := range rows {
		items = append(items, ToDuplicateNotificationItem(n))
	}
	return items, nil
}

func (d *DuplicateFlowImpl) MarkNotificationHandled(ctx context.Context, req *dto.MarkNotificationHandledRequest, metadata *ClientMetadata) (*dto.MarkNotificationHandledResponse, error) {
	id, err := uuid.Parse(req.NotificationID)
	if err != nil {
		return nil, NewBusinessError("MARK_NOTIFICATION_HANDLED_VALIDATION_FAILED", "Invalid notification ID", err)
	}

	n, err := d.notifRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("MARK_NOTIFICATION_HANDLED_FAILED", "Failed to load notification", err)
	}
	if n == nil {
		return nil, NewBusinessError("MARK_NOTIFICATION_HANDLED_NOT_FOUND", "Notification not found", ErrNotificationNotFound)
	}
	if n.IsHandled() {
		return nil, NewBusinessError("MARK_NOTIFICATION_HANDLED_CONFLICT", "Notification already handled", ErrNotificationAlreadyHandled)
	}

	if err := d.notifRepo.MarkHandled(ctx, id, utils.UTCNow()); err != nil {
		return nil, NewBusinessError("MARK_NOTIFICATION_HANDLED_FAILED", "Failed to mark notification handled", err)
	}

	return &dto.MarkNotificationHandledResponse{
		NotificationID: req.NotificationID,
		Status:         models.NotificationStatusHandled,
	}, nil
}
