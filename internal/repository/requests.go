package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/changefeed"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	apperrors "github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
)

// RequestRepository stores service request documents.
type RequestRepository struct {
	store *Store
}

// RequestPatch lists the only fields the lifecycle may change after creation. Nil fields
// are left untouched. The Expect* guards turn the update into a compare-and-swap.
type RequestPatch struct {
	Status            *models.RequestStatus
	OwnerUID          *string
	ResponseDate      *time.Time
	LastMessage       *string
	LastMessageSender *models.SenderType

	ExpectStatus     []models.RequestStatus
	ExpectOwnerUnset bool
	ExpectOwner      string
}

// Create persists a new request in the pending, unowned state.
func (r *RequestRepository) Create(ctx context.Context, req *models.ServiceRequest) error {
	if req == nil {
		return apperrors.NewValidation("request is required")
	}
	if strings.TrimSpace(req.VendorID) == "" {
		return apperrors.NewValidation("vendorId is required")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return apperrors.NewValidation("userId is required")
	}
	if strings.TrimSpace(req.RequestTitle) == "" {
		return apperrors.NewValidation("requestTitle is required")
	}

	now := r.store.Now()
	req.Status = models.StatusPending
	req.OwnerUID = nil
	req.ResponseDate = nil
	req.CreatedAt = now
	req.UpdatedAt = now

	if err := r.store.db.WithContext(ctx).Create(req).Error; err != nil {
		return apperrors.Store(err)
	}
	r.store.Emit(ctx, requestEvents(changefeed.KindCreated, keysOf(req))...)
	return nil
}

// Get loads a request by id.
func (r *RequestRepository) Get(ctx context.Context, id string) (*models.ServiceRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.ErrNotFound
	}
	var req models.ServiceRequest
	if err := r.store.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Service request not found")
		}
		return nil, apperrors.Store(err)
	}
	return &req, nil
}

// ListByCustomer returns the customer's requests, most recently updated first.
func (r *RequestRepository) ListByCustomer(ctx context.Context, userID string) ([]models.ServiceRequest, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewValidation("userId is required")
	}
	var out []models.ServiceRequest
	err := r.store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperrors.Store(err)
	}
	return out, nil
}

// ListByVendors returns requests addressed to any of the vendors, most recently updated
// first. An empty vendor set is rejected rather than matching everything.
func (r *RequestRepository) ListByVendors(ctx context.Context, vendorIDs []string) ([]models.ServiceRequest, error) {
	ids := cleanIDs(vendorIDs)
	if len(ids) == 0 {
		return nil, apperrors.ErrInvalidQuery
	}
	var out []models.ServiceRequest
	err := r.store.db.WithContext(ctx).
		Where("vendor_id IN ?", ids).
		Order("updated_at DESC").Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperrors.Store(err)
	}
	return out, nil
}

// WatchCustomer streams the customer's request list.
func (r *RequestRepository) WatchCustomer(ctx context.Context, userID string) (*Feed[[]models.ServiceRequest], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewValidation("userId is required")
	}
	return Watch(ctx, r.store.broker, []string{changefeed.CustomerTopic(userID)}, func(ctx context.Context) ([]models.ServiceRequest, error) {
		return r.ListByCustomer(ctx, userID)
	}), nil
}

// WatchVendors streams the request list for a set of vendors.
func (r *RequestRepository) WatchVendors(ctx context.Context, vendorIDs []string) (*Feed[[]models.ServiceRequest], error) {
	ids := cleanIDs(vendorIDs)
	if len(ids) == 0 {
		return nil, apperrors.ErrInvalidQuery
	}
	topics := make([]string, 0, len(ids))
	for _, id := range ids {
		topics = append(topics, changefeed.VendorTopic(id))
	}
	return Watch(ctx, r.store.broker, topics, func(ctx context.Context) ([]models.ServiceRequest, error) {
		return r.ListByVendors(ctx, ids)
	}), nil
}

// WatchRequest streams a single request document.
func (r *RequestRepository) WatchRequest(ctx context.Context, id string) *Feed[*models.ServiceRequest] {
	return Watch(ctx, r.store.broker, []string{changefeed.RequestTopic(id)}, func(ctx context.Context) (*models.ServiceRequest, error) {
		return r.Get(ctx, id)
	})
}

// UpdateStatusAndOwnership applies patch when its guards hold and returns the stored
// document afterwards. applied is false when a guard did not hold. Status never moves
// backwards and a request can never be owned by the customer who submitted it.
func (r *RequestRepository) UpdateStatusAndOwnership(ctx context.Context, id string, patch RequestPatch) (*models.ServiceRequest, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false, apperrors.ErrNotFound
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, false, apperrors.NewValidation("unknown status " + string(*patch.Status))
	}

	now := r.store.Now()
	updates := map[string]any{"updated_at": now}
	query := r.store.db.WithContext(ctx).Model(&models.ServiceRequest{}).Where("id = ?", id)

	if patch.Status != nil {
		updates["status"] = *patch.Status
		query = query.Where("status IN ?", notAfter(*patch.Status))
	}
	owner := ""
	if patch.OwnerUID != nil {
		owner = strings.TrimSpace(*patch.OwnerUID)
		if owner == "" {
			updates["owner_uid"] = nil
		} else {
			updates["owner_uid"] = owner
			query = query.Where("user_id <> ?", owner)
		}
	}
	if patch.ResponseDate != nil {
		updates["response_date"] = gorm.Expr("COALESCE(response_date, ?)", patch.ResponseDate.UTC())
	}
	if patch.LastMessage != nil {
		updates["last_message"] = *patch.LastMessage
	}
	if patch.LastMessageSender != nil {
		updates["last_message_sender"] = *patch.LastMessageSender
	}
	if len(patch.ExpectStatus) > 0 {
		query = query.Where("status IN ?", patch.ExpectStatus)
	}
	if patch.ExpectOwnerUnset {
		query = query.Where("(owner_uid IS NULL OR owner_uid = '')")
	}
	if expected := strings.TrimSpace(patch.ExpectOwner); expected != "" {
		query = query.Where("owner_uid = ?", expected)
	}

	res := query.Updates(updates)
	if res.Error != nil {
		return nil, false, apperrors.Store(res.Error)
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if res.RowsAffected == 0 {
		if owner != "" && owner == strings.TrimSpace(current.UserID) {
			logger.WithModule("repository").Warn("rejected self-ownership write",
				zap.String("request_id", id),
				zap.String("owner_uid", owner),
			)
			return current, false, apperrors.ErrSelfOwnership
		}
		return current, false, nil
	}

	r.store.Emit(ctx, requestEvents(changefeed.KindUpdated, keysOf(current))...)
	return current, true, nil
}

// notAfter lists the statuses a request may currently hold for target to be legal.
func notAfter(target models.RequestStatus) []models.RequestStatus {
	all := []models.RequestStatus{models.StatusPending, models.StatusInProgress, models.StatusCompleted}
	out := make([]models.RequestStatus, 0, len(all))
	for _, status := range all {
		if status == target || status.Before(target) {
			out = append(out, status)
		}
	}
	return out
}

func keysOf(req *models.ServiceRequest) *requestKeys {
	return &requestKeys{ID: req.ID, UserID: req.UserID, VendorID: req.VendorID}
}

func cleanIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
