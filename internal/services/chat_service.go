package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/lifecycle"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/repository"
	apperrors "github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/metrics"
)

// SendResult reports the stored message and the request as it stands after the send.
type SendResult struct {
	Message   *models.RequestMessage `json:"message"`
	Request   *models.ServiceRequest `json:"request"`
	Ownership lifecycle.Outcome      `json:"ownership,omitempty"`
}

// ChatService runs request conversations: appending messages, assigning ownership to the
// first responding vendor agent and completing requests.
type ChatService struct {
	store         *repository.Store
	vendors       VendorAccess
	notifications *NotificationService
	log           *zap.Logger
}

// NewChatService constructs a ChatService.
func NewChatService(store *repository.Store, vendors VendorAccess, notifications *NotificationService) (*ChatService, error) {
	if store == nil {
		return nil, errors.New("chat service: store is required")
	}
	if vendors == nil {
		return nil, errors.New("chat service: vendor access is required")
	}
	return &ChatService{
		store:         store,
		vendors:       vendors,
		notifications: notifications,
		log:           logger.WithModule("chat"),
	}, nil
}

// ListMessages returns the ordered conversation of a request the actor participates in.
func (s *ChatService) ListMessages(ctx context.Context, actor Actor, requestID string) ([]models.RequestMessage, error) {
	ctx = ensureContext(ctx)
	if _, err := s.participantRequest(ctx, actor, requestID); err != nil {
		return nil, err
	}
	return s.store.Messages().List(ctx, requestID)
}

// WatchMessages streams the conversation of a request the actor participates in.
func (s *ChatService) WatchMessages(ctx context.Context, actor Actor, requestID string) (*repository.Feed[[]models.RequestMessage], error) {
	if _, err := s.participantRequest(ensureContext(ctx), actor, requestID); err != nil {
		return nil, err
	}
	return s.store.Messages().Watch(ctx, requestID), nil
}

// WatchRequest streams the request document itself.
func (s *ChatService) WatchRequest(ctx context.Context, actor Actor, requestID string) (*repository.Feed[*models.ServiceRequest], error) {
	if _, err := s.participantRequest(ensureContext(ctx), actor, requestID); err != nil {
		return nil, err
	}
	return s.store.Requests().WatchRequest(ctx, requestID), nil
}

// SendAsCustomer appends a customer message. Status and ownership never change on the
// customer side; only the list preview is refreshed.
func (s *ChatService) SendAsCustomer(ctx context.Context, actor Actor, requestID, content string) (*SendResult, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidation("message content is required")
	}

	result := &SendResult{}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		req, err := tx.Requests().Get(ctx, requestID)
		if err != nil {
			return err
		}
		if req.UserID != actor.UID {
			return apperrors.ErrForbidden.WithMessage("Only the requesting customer can reply as customer")
		}

		msg := &models.RequestMessage{
			RequestID:  req.ID,
			Content:    content,
			SenderType: models.SenderUser,
			SenderName: firstNonEmpty(req.UserFullName, actor.Name()),
			SenderUID:  actor.UID,
		}
		if _, err := tx.Messages().Append(ctx, msg); err != nil {
			return err
		}

		updated, _, err := tx.Requests().UpdateStatusAndOwnership(ctx, req.ID, previewPatch(content, models.SenderUser))
		if err != nil {
			return err
		}
		result.Message = msg
		result.Request = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.MessagesSent.WithLabelValues(string(models.SenderUser)).Inc()
	if s.notifications != nil {
		s.notifications.NotifyMessage(ctx, result.Request, result.Message)
	}
	return result, nil
}

// SendAsVendor appends a vendor reply. The first approved agent to reply to an unowned,
// open request becomes its owner and moves it in progress; the assignment is a guarded
// write, so of two concurrent first replies exactly one wins and the other is appended
// without changing ownership.
func (s *ChatService) SendAsVendor(ctx context.Context, actor Actor, requestID, content string) (*SendResult, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidation("message content is required")
	}

	current, err := s.store.Requests().Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if current.UserID == actor.UID {
		metrics.OwnershipOutcomes.WithLabelValues("rejected").Inc()
		return nil, apperrors.ErrSelfOwnership
	}
	ok, err := isRepresentative(ctx, s.vendors, actor.UID, current.VendorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrForbidden.WithMessage("Only approved representatives of this vendor can reply")
	}

	result := &SendResult{}
	previous := current.Status
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		req, err := tx.Requests().Get(ctx, requestID)
		if err != nil {
			return err
		}
		outcome, err := lifecycle.VendorReply(req, actor.UID)
		if err != nil {
			return err
		}

		msg := &models.RequestMessage{
			RequestID:  req.ID,
			Content:    content,
			SenderType: models.SenderVendor,
			SenderName: firstNonEmpty(req.VendorName, actor.Name()),
			SenderUID:  actor.UID,
		}
		if _, err := tx.Messages().Append(ctx, msg); err != nil {
			return err
		}

		var updated *models.ServiceRequest
		if outcome == lifecycle.OutcomeAssign {
			patch := previewPatch(content, models.SenderVendor)
			status := models.StatusInProgress
			owner := actor.UID
			responded := tx.Now()
			patch.Status = &status
			patch.OwnerUID = &owner
			patch.ResponseDate = &responded
			patch.ExpectOwnerUnset = true
			patch.ExpectStatus = []models.RequestStatus{models.StatusPending, models.StatusInProgress}

			var applied bool
			updated, applied, err = tx.Requests().UpdateStatusAndOwnership(ctx, req.ID, patch)
			if err != nil {
				return err
			}
			if !applied {
				outcome = lifecycle.OutcomeKeep
				updated = nil
			}
		}
		if updated == nil {
			updated, _, err = tx.Requests().UpdateStatusAndOwnership(ctx, req.ID, previewPatch(content, models.SenderVendor))
			if err != nil {
				return err
			}
		}

		result.Message = msg
		result.Request = updated
		result.Ownership = outcome
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrSelfOwnership) {
			metrics.OwnershipOutcomes.WithLabelValues("rejected").Inc()
		}
		return nil, err
	}

	metrics.MessagesSent.WithLabelValues(string(models.SenderVendor)).Inc()
	metrics.OwnershipOutcomes.WithLabelValues(string(result.Ownership)).Inc()
	if result.Ownership == lifecycle.OutcomeAssign {
		if previous != result.Request.Status {
			metrics.StatusTransitions.WithLabelValues(string(result.Request.Status)).Inc()
		}
		s.log.Info("request ownership assigned",
			zap.String("request_id", result.Request.ID),
			zap.String("owner_uid", actor.UID),
		)
	}
	if s.notifications != nil {
		s.notifications.NotifyMessage(ctx, result.Request, result.Message)
	}
	return result, nil
}

// Complete marks an in-progress request completed. Only the owning agent may complete it
// and a completed request can never be completed again.
func (s *ChatService) Complete(ctx context.Context, actor Actor, requestID string) (*models.ServiceRequest, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var updated *models.ServiceRequest
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Requests().Get(ctx, requestID); err != nil {
			return err
		}
		status := models.StatusCompleted
		current, applied, err := tx.Requests().UpdateStatusAndOwnership(ctx, requestID, repository.RequestPatch{
			Status:       &status,
			ExpectOwner:  actor.UID,
			ExpectStatus: []models.RequestStatus{models.StatusInProgress},
		})
		if err != nil {
			return err
		}
		if !applied {
			if err := lifecycle.Complete(current, actor.UID); err != nil {
				return err
			}
			return apperrors.ErrInvalidTransition
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.StatusTransitions.WithLabelValues(string(models.StatusCompleted)).Inc()
	s.log.Info("request completed",
		zap.String("request_id", updated.ID),
		zap.String("owner_uid", actor.UID),
	)
	if s.notifications != nil {
		s.notifications.NotifyStatus(ctx, updated)
	}
	return updated, nil
}

func (s *ChatService) participantRequest(ctx context.Context, actor Actor, requestID string) (*models.ServiceRequest, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	req, err := s.store.Requests().Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := authorizeParticipant(ctx, s.vendors, actor, req); err != nil {
		return nil, err
	}
	return req, nil
}

func previewPatch(content string, sender models.SenderType) repository.RequestPatch {
	preview := lifecycle.Preview(content)
	return repository.RequestPatch{
		LastMessage:       &preview,
		LastMessageSender: &sender,
	}
}
