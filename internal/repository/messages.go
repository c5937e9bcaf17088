package repository

import (
	"context"
	"strings"
	"time"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/changefeed"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	apperrors "github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
)

// MessageRepository stores the append-only conversation of a request. Messages are never
// edited or deleted.
type MessageRepository struct {
	store *Store
}

// Append persists msg with a server-assigned timestamp and returns its id.
func (m *MessageRepository) Append(ctx context.Context, msg *models.RequestMessage) (string, error) {
	if msg == nil {
		return "", apperrors.NewValidation("message is required")
	}
	msg.RequestID = strings.TrimSpace(msg.RequestID)
	if msg.RequestID == "" {
		return "", apperrors.NewValidation("requestId is required")
	}
	if strings.TrimSpace(msg.Content) == "" {
		return "", apperrors.NewValidation("message content is required")
	}
	switch msg.SenderType {
	case models.SenderUser, models.SenderVendor:
	default:
		return "", apperrors.NewValidation("senderType must be user or vendor")
	}

	msg.CreatedAt = m.store.Now()
	if err := m.store.db.WithContext(ctx).Create(msg).Error; err != nil {
		return "", apperrors.Store(err)
	}
	m.store.Emit(ctx, changefeed.Event{Topic: changefeed.MessagesTopic(msg.RequestID), Kind: changefeed.KindCreated, ID: msg.ID})
	return msg.ID, nil
}

// List returns the conversation ordered by creation time ascending.
func (m *MessageRepository) List(ctx context.Context, requestID string) ([]models.RequestMessage, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, apperrors.NewValidation("requestId is required")
	}
	var out []models.RequestMessage
	err := m.store.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, apperrors.Store(err)
	}
	return out, nil
}

// CountFrom counts messages by sender created strictly after since. A zero since counts
// every message from that sender.
func (m *MessageRepository) CountFrom(ctx context.Context, requestID string, sender models.SenderType, since time.Time) (int64, error) {
	query := m.store.db.WithContext(ctx).Model(&models.RequestMessage{}).
		Where("request_id = ? AND sender_type = ?", requestID, sender)
	if !since.IsZero() {
		query = query.Where("created_at > ?", since.UTC())
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, apperrors.Store(err)
	}
	return count, nil
}

// Watch streams the full ordered conversation whenever a message is appended.
func (m *MessageRepository) Watch(ctx context.Context, requestID string) *Feed[[]models.RequestMessage] {
	return Watch(ctx, m.store.broker, []string{changefeed.MessagesTopic(requestID)}, func(ctx context.Context) ([]models.RequestMessage, error) {
		return m.List(ctx, requestID)
	})
}

// DateGroup is a run of messages sharing one calendar date.
type DateGroup struct {
	Date     string                  `json:"date"`
	Day      time.Time               `json:"day"`
	Messages []models.RequestMessage `json:"messages"`
}

// GroupByDate partitions messages, already in ascending order, by calendar date in loc.
// Message order is preserved inside and across groups.
func GroupByDate(messages []models.RequestMessage, loc *time.Location) []DateGroup {
	if loc == nil {
		loc = time.UTC
	}
	var groups []DateGroup
	for _, msg := range messages {
		local := msg.CreatedAt.In(loc)
		key := local.Format("2006-01-02")
		if n := len(groups); n > 0 && groups[n-1].Date == key {
			groups[n-1].Messages = append(groups[n-1].Messages, msg)
			continue
		}
		y, mo, d := local.Date()
		groups = append(groups, DateGroup{
			Date:     key,
			Day:      time.Date(y, mo, d, 0, 0, 0, 0, loc),
			Messages: []models.RequestMessage{msg},
		})
	}
	return groups
}
