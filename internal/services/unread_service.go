package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm/clause"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/changefeed"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/repository"
	apperrors "github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
)

// ViewerRole selects which side of the conversations unread counts are computed for.
type ViewerRole string

const (
	RoleCustomer ViewerRole = "customer"
	RoleVendor   ViewerRole = "vendor"
)

// ParseViewerRole validates a role supplied by a client.
func ParseViewerRole(raw string) (ViewerRole, error) {
	switch ViewerRole(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleCustomer, "":
		return RoleCustomer, nil
	case RoleVendor:
		return RoleVendor, nil
	default:
		return "", apperrors.NewValidation("role must be customer or vendor")
	}
}

// UnreadSummary counts what needs the viewer's attention.
type UnreadSummary struct {
	Role          ViewerRole `json:"role"`
	Requests      int        `json:"requests"`
	Messages      int64      `json:"messages"`
	Notifications int64      `json:"notifications"`
	RequestIDs    []string   `json:"request_ids"`
}

// UnreadService derives unread counts from per-viewer read markers. A request is unread
// for a viewer when the counterpart sent the latest message and the viewer has not opened
// the conversation since the request was last updated.
type UnreadService struct {
	store         *repository.Store
	vendors       VendorAccess
	notifications *NotificationService
}

// NewUnreadService constructs an UnreadService.
func NewUnreadService(store *repository.Store, vendors VendorAccess, notifications *NotificationService) (*UnreadService, error) {
	if store == nil {
		return nil, errors.New("unread service: store is required")
	}
	if vendors == nil {
		return nil, errors.New("unread service: vendor access is required")
	}
	return &UnreadService{store: store, vendors: vendors, notifications: notifications}, nil
}

// MarkViewed records that actor has seen the request conversation as of now.
func (s *UnreadService) MarkViewed(ctx context.Context, actor Actor, requestID string) error {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return err
	}
	req, err := s.store.Requests().Get(ctx, requestID)
	if err != nil {
		return err
	}
	if err := authorizeParticipant(ctx, s.vendors, actor, req); err != nil {
		return err
	}

	state := models.RequestReadState{
		RequestID:  req.ID,
		ViewerUID:  actor.UID,
		LastReadAt: s.store.Now(),
	}
	if err := s.store.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}, {Name: "viewer_uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_read_at"}),
	}).Create(&state).Error; err != nil {
		return apperrors.Store(err)
	}
	s.store.Emit(ctx, changefeed.Event{Topic: changefeed.InboxTopic(actor.UID), Kind: changefeed.KindUpdated, ID: req.ID})
	return nil
}

// Summary computes the viewer's unread counts for role.
func (s *UnreadService) Summary(ctx context.Context, actor Actor, role ViewerRole) (*UnreadSummary, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}

	summary := &UnreadSummary{Role: role, RequestIDs: []string{}}
	if s.notifications != nil {
		count, err := s.notifications.UnreadCount(ctx, actor.UID)
		if err != nil {
			return nil, err
		}
		summary.Notifications = count
	}

	requests, counterpart, err := s.candidates(ctx, actor, role)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return summary, nil
	}

	markers, err := s.markers(ctx, actor.UID, requests)
	if err != nil {
		return nil, err
	}

	for i := range requests {
		req := &requests[i]
		if req.LastMessageSender != counterpart {
			continue
		}
		lastRead, seen := markers[req.ID]
		if seen && !lastRead.Before(req.UpdatedAt) {
			continue
		}
		count, err := s.store.Messages().CountFrom(ctx, req.ID, counterpart, lastRead)
		if err != nil {
			return nil, err
		}
		summary.Requests++
		summary.Messages += count
		summary.RequestIDs = append(summary.RequestIDs, req.ID)
	}
	return summary, nil
}

// Watch streams the viewer's summary, recomputed whenever a relevant request, notification
// or read marker changes.
func (s *UnreadService) Watch(ctx context.Context, actor Actor, role ViewerRole) (*repository.Feed[*UnreadSummary], error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}
	topics := []string{changefeed.NotificationsTopic(actor.UID), changefeed.InboxTopic(actor.UID)}
	switch role {
	case RoleVendor:
		vendorIDs, err := s.vendors.ApprovedVendorIDs(ctx, actor.UID)
		if err != nil {
			return nil, err
		}
		for _, id := range vendorIDs {
			topics = append(topics, changefeed.VendorTopic(id))
		}
	default:
		topics = append(topics, changefeed.CustomerTopic(actor.UID))
	}
	return repository.Watch(ctx, s.store.Broker(), topics, func(ctx context.Context) (*UnreadSummary, error) {
		return s.Summary(ctx, actor, role)
	}), nil
}

// candidates returns the requests the viewer is responsible for and the sender type of
// the other side.
func (s *UnreadService) candidates(ctx context.Context, actor Actor, role ViewerRole) ([]models.ServiceRequest, models.SenderType, error) {
	if role != RoleVendor {
		requests, err := s.store.Requests().ListByCustomer(ctx, actor.UID)
		return requests, models.SenderUser.Counterpart(), err
	}

	vendorIDs, err := s.vendors.ApprovedVendorIDs(ctx, actor.UID)
	if err != nil || len(vendorIDs) == 0 {
		return nil, models.SenderVendor.Counterpart(), err
	}
	all, err := s.store.Requests().ListByVendors(ctx, vendorIDs)
	if err != nil {
		return nil, "", err
	}
	mine := all[:0]
	for _, req := range all {
		if owner := req.Owner(); owner == "" || owner == actor.UID {
			mine = append(mine, req)
		}
	}
	return mine, models.SenderVendor.Counterpart(), nil
}

func (s *UnreadService) markers(ctx context.Context, viewerUID string, requests []models.ServiceRequest) (map[string]time.Time, error) {
	ids := make([]string, 0, len(requests))
	for _, req := range requests {
		ids = append(ids, req.ID)
	}
	var states []models.RequestReadState
	if err := s.store.DB().WithContext(ctx).
		Where("viewer_uid = ? AND request_id IN ?", viewerUID, ids).
		Find(&states).Error; err != nil {
		return nil, apperrors.Store(err)
	}
	out := make(map[string]time.Time, len(states))
	for _, state := range states {
		out[state.RequestID] = state.LastReadAt
	}
	return out, nil
}
