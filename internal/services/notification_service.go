package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/changefeed"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/lifecycle"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/realtime"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/repository"
	apperrors "github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/metrics"
)

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
}

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	UserID    string
	Type      string
	Title     string
	Message   string
	RequestID string
	Metadata  map[string]any
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID     string
	Limit      int
	Offset     int
	UnreadOnly bool
}

// NotificationEventPayload represents data sent to realtime consumers.
type NotificationEventPayload struct {
	Notification   *NotificationDTO `json:"notification,omitempty"`
	NotificationID string           `json:"notification_id,omitempty"`
	Updated        int64            `json:"updated,omitempty"`
}

// NotificationService records in-app notifications and dispatches them on conversation
// events. Dispatch is best effort: failures are logged and counted, never returned.
type NotificationService struct {
	store   *repository.Store
	hub     *realtime.Hub
	log     *zap.Logger
	enabled bool
}

// NotificationOption customises the NotificationService.
type NotificationOption func(*NotificationService)

// WithDispatchEnabled toggles event-driven dispatch. Read acknowledgement keeps working.
func WithDispatchEnabled(enabled bool) NotificationOption {
	return func(s *NotificationService) {
		s.enabled = enabled
	}
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(store *repository.Store, hub *realtime.Hub, opts ...NotificationOption) (*NotificationService, error) {
	if store == nil {
		return nil, errors.New("notification service: store is required")
	}
	svc := &NotificationService{
		store:   store,
		hub:     hub,
		log:     logger.WithModule("notifications"),
		enabled: true,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create persists a notification and pushes it to the recipient's live streams.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	created, err := s.createIn(ctx, s.store, input)
	if err != nil {
		return nil, err
	}
	dto := mapNotification(*created)
	s.announce(&dto)
	return &dto, nil
}

// createIn writes a notification through store, which may be bound to a transaction.
func (s *NotificationService) createIn(ctx context.Context, store *repository.Store, input CreateNotificationInput) (*models.Notification, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, apperrors.NewValidation("notification recipient is required")
	}
	notificationType := strings.TrimSpace(input.Type)
	if notificationType == "" {
		return nil, apperrors.NewValidation("notification type is required")
	}

	metadata, err := encodeMetadata(input.Metadata)
	if err != nil {
		return nil, fmt.Errorf("notification service: %w", err)
	}

	notification := models.Notification{
		UserID:   userID,
		Type:     notificationType,
		Title:    strings.TrimSpace(input.Title),
		Message:  strings.TrimSpace(input.Message),
		Metadata: metadata,
	}
	if requestID := strings.TrimSpace(input.RequestID); requestID != "" {
		notification.RequestID = &requestID
	}
	now := store.Now()
	notification.CreatedAt = now
	notification.UpdatedAt = now

	if err := store.DB().WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, apperrors.Store(err)
	}
	store.Emit(ctx, changefeed.Event{Topic: changefeed.NotificationsTopic(userID), Kind: changefeed.KindCreated, ID: notification.ID})
	return &notification, nil
}

// Dispatch creates a notification without surfacing failures to the caller.
func (s *NotificationService) Dispatch(ctx context.Context, input CreateNotificationInput) {
	if !s.enabled {
		metrics.NotificationsDispatched.WithLabelValues(input.Type, "disabled").Inc()
		return
	}
	if strings.TrimSpace(input.UserID) == "" {
		metrics.NotificationsDispatched.WithLabelValues(input.Type, "skipped").Inc()
		s.log.Debug("notification skipped: no recipient",
			zap.String("type", input.Type),
			zap.String("request_id", input.RequestID),
		)
		return
	}

	if _, err := s.Create(context.WithoutCancel(ensureContext(ctx)), input); err != nil {
		metrics.NotificationsDispatched.WithLabelValues(input.Type, "failed").Inc()
		s.log.Warn("notification dispatch failed",
			zap.String("type", input.Type),
			zap.String("recipient", input.UserID),
			zap.String("request_id", input.RequestID),
			zap.Error(err),
		)
		return
	}
	metrics.NotificationsDispatched.WithLabelValues(input.Type, "created").Inc()
}

// NotifyNewRequest tells every representative of the addressed vendor about a submission.
func (s *NotificationService) NotifyNewRequest(ctx context.Context, req *models.ServiceRequest, recipients []string) {
	recipients = normaliseIDs(recipients)
	if len(recipients) == 0 {
		metrics.NotificationsDispatched.WithLabelValues(models.NotificationServiceRequest, "skipped").Inc()
		s.log.Debug("new request has no representative to notify", zap.String("vendor_id", req.VendorID))
		return
	}
	for _, recipient := range recipients {
		if recipient == req.UserID {
			continue
		}
		s.Dispatch(ctx, CreateNotificationInput{
			UserID:    recipient,
			Type:      models.NotificationServiceRequest,
			Title:     "New service request",
			Message:   fmt.Sprintf("%s sent a request: %s", firstNonEmpty(req.UserFullName, req.UserEmail, "A customer"), req.RequestTitle),
			RequestID: req.ID,
			Metadata:  map[string]any{"vendor_id": req.VendorID, "urgency": req.Urgency},
		})
	}
}

// NotifyMessage addresses the counterpart of the message sender. A customer message on an
// unowned request has no counterpart yet and is skipped. So is any message on a self-owned
// request, which the integrity scan repairs first.
func (s *NotificationService) NotifyMessage(ctx context.Context, req *models.ServiceRequest, msg *models.RequestMessage) {
	if req.SelfOwned() {
		metrics.NotificationsDispatched.WithLabelValues(models.NotificationServiceRequestMessage, "skipped").Inc()
		s.log.Warn("message notification skipped: request owned by its customer", zap.String("request_id", req.ID))
		return
	}
	var recipient, title string
	switch msg.SenderType {
	case models.SenderUser:
		recipient = req.Owner()
		title = "New message from " + firstNonEmpty(msg.SenderName, req.UserFullName, "customer")
	case models.SenderVendor:
		recipient = req.UserID
		title = "New message from " + firstNonEmpty(req.VendorName, msg.SenderName, "vendor")
	}
	if recipient != "" && recipient == strings.TrimSpace(msg.SenderUID) {
		recipient = ""
	}
	s.Dispatch(ctx, CreateNotificationInput{
		UserID:    recipient,
		Type:      models.NotificationServiceRequestMessage,
		Title:     title,
		Message:   lifecycle.Preview(msg.Content),
		RequestID: req.ID,
		Metadata:  map[string]any{"message_id": msg.ID, "sender_type": string(msg.SenderType)},
	})
}

// NotifyStatus tells the customer their request changed status.
func (s *NotificationService) NotifyStatus(ctx context.Context, req *models.ServiceRequest) {
	s.Dispatch(ctx, CreateNotificationInput{
		UserID:    req.UserID,
		Type:      models.NotificationServiceRequestStatus,
		Title:     "Request " + strings.ToLower(req.Status.Label()),
		Message:   fmt.Sprintf("%s marked \"%s\" as %s", firstNonEmpty(req.VendorName, "The vendor"), req.RequestTitle, strings.ToLower(req.Status.Label())),
		RequestID: req.ID,
		Metadata:  map[string]any{"status": string(req.Status)},
	})
}

// ListForUser returns notifications for the supplied user ordered by recency.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, apperrors.NewValidation("user id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	query := s.store.DB().WithContext(ctx).Where("user_id = ?", userID)
	if input.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var rows []models.Notification
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, apperrors.Store(err)
	}

	return mapNotificationRows(rows), nil
}

// MarkRead acknowledges one notification. Notifications are never deleted.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	db := s.store.DB().WithContext(ctx)

	var notification models.Notification
	if err := db.Where("id = ? AND user_id = ?", notificationID, userID).First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Store(err)
	}

	if !notification.Read {
		now := s.store.Now()
		if err := db.Model(&notification).Updates(map[string]any{
			"is_read":    true,
			"read_at":    now,
			"updated_at": now,
		}).Error; err != nil {
			return nil, apperrors.Store(err)
		}
		notification.Read = true
		notification.ReadAt = &now
		s.store.Emit(ctx, changefeed.Event{Topic: changefeed.NotificationsTopic(userID), Kind: changefeed.KindUpdated, ID: notification.ID})
	}

	dto := mapNotification(notification)
	s.hub.BroadcastToUser(realtime.StreamNotifications, userID, realtime.Message{
		Event: realtime.EventNotificationRead,
		Data:  &NotificationEventPayload{Notification: &dto, NotificationID: dto.ID},
	})
	return &dto, nil
}

// MarkAllRead acknowledges every unread notification of the user.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, apperrors.NewValidation("user id is required")
	}

	now := s.store.Now()
	result := s.store.DB().WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": now, "updated_at": now})
	if result.Error != nil {
		return 0, apperrors.Store(result.Error)
	}

	if result.RowsAffected > 0 {
		s.store.Emit(ctx, changefeed.Event{Topic: changefeed.NotificationsTopic(userID), Kind: changefeed.KindUpdated})
		s.hub.BroadcastToUser(realtime.StreamNotifications, userID, realtime.Message{
			Event: realtime.EventNotificationsRead,
			Data:  &NotificationEventPayload{Updated: result.RowsAffected},
		})
	}
	return result.RowsAffected, nil
}

// UnreadCount returns how many notifications the user has not acknowledged.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	var count int64
	if err := s.store.DB().WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", strings.TrimSpace(userID), false).
		Count(&count).Error; err != nil {
		return 0, apperrors.Store(err)
	}
	return count, nil
}

func (s *NotificationService) announce(dto *NotificationDTO) {
	s.hub.BroadcastToUser(realtime.StreamNotifications, dto.UserID, realtime.Message{
		Event: realtime.EventNotificationCreated,
		Data:  &NotificationEventPayload{Notification: dto},
	})
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	out := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapNotification(row))
	}
	return out
}

func mapNotification(n models.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Metadata:  decodeMetadata(n.Metadata),
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
		ReadAt:    n.ReadAt,
	}
	if n.RequestID != nil {
		dto.RequestID = *n.RequestID
	}
	return dto
}
