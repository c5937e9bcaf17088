package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/changefeed"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/repository"
	apperrors "github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/validator"
)

// CreateRequestInput is the customer-facing submission form.
type CreateRequestInput struct {
	VendorID               string `json:"vendor_id" validate:"required,docid,max=128"`
	VendorName             string `json:"vendor_name" validate:"max=255"`
	UserFullName           string `json:"user_full_name" validate:"required,notblank,max=255"`
	UserEmail              string `json:"user_email" validate:"required,email,max=255"`
	UserPhone              string `json:"user_phone" validate:"max=64"`
	RequestTitle           string `json:"request_title" validate:"required,notblank,max=255"`
	RequestDetails         string `json:"request_details" validate:"required,notblank,nocontrol,max=5000"`
	PreferredContactMethod string `json:"preferred_contact_method" validate:"omitempty,oneof=email phone"`
	Urgency                string `json:"urgency" validate:"omitempty,oneof=low normal high"`
}

// RequestService coordinates service request submission and participant-scoped reads.
type RequestService struct {
	store         *repository.Store
	vendors       VendorAccess
	notifications *NotificationService
	repair        *RepairService
	log           *zap.Logger
}

// RequestOption customises the RequestService.
type RequestOption func(*RequestService)

// WithOwnershipRepair backfills missing ownership whenever a vendor user loads their list.
func WithOwnershipRepair(repair *RepairService) RequestOption {
	return func(s *RequestService) {
		s.repair = repair
	}
}

// NewRequestService constructs a RequestService.
func NewRequestService(store *repository.Store, vendors VendorAccess, notifications *NotificationService, opts ...RequestOption) (*RequestService, error) {
	if store == nil {
		return nil, errors.New("request service: store is required")
	}
	if vendors == nil {
		return nil, errors.New("request service: vendor access is required")
	}
	svc := &RequestService{
		store:         store,
		vendors:       vendors,
		notifications: notifications,
		log:           logger.WithModule("requests"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create submits a new request from actor and notifies the vendor's representatives.
func (s *RequestService) Create(ctx context.Context, actor Actor, input CreateRequestInput) (*models.ServiceRequest, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if err := validator.ValidateStruct(input); err != nil {
		return nil, validationFailure(err)
	}

	req := &models.ServiceRequest{
		VendorID:               strings.TrimSpace(input.VendorID),
		VendorName:             strings.TrimSpace(input.VendorName),
		UserID:                 actor.UID,
		UserEmail:              strings.TrimSpace(input.UserEmail),
		UserFullName:           strings.TrimSpace(input.UserFullName),
		UserPhone:              strings.TrimSpace(input.UserPhone),
		RequestTitle:           strings.TrimSpace(input.RequestTitle),
		RequestDetails:         strings.TrimSpace(input.RequestDetails),
		PreferredContactMethod: firstNonEmpty(input.PreferredContactMethod, models.ContactEmail),
		Urgency:                firstNonEmpty(input.Urgency, models.UrgencyNormal),
	}
	if err := s.store.Requests().Create(ctx, req); err != nil {
		return nil, err
	}

	s.log.Info("service request submitted",
		zap.String("request_id", req.ID),
		zap.String("vendor_id", req.VendorID),
		zap.String("user_id", req.UserID),
	)

	if s.notifications != nil {
		recipients, err := s.vendors.Representatives(ctx, req.VendorID)
		if err != nil {
			s.log.Warn("resolve vendor representatives", zap.String("vendor_id", req.VendorID), zap.Error(err))
		} else {
			s.notifications.NotifyNewRequest(ctx, req, recipients)
		}
	}
	return req, nil
}

// Get loads a request visible to actor: its customer or a representative of its vendor.
func (s *RequestService) Get(ctx context.Context, actor Actor, requestID string) (*models.ServiceRequest, error) {
	ctx = ensureContext(ctx)
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

// ListForCustomer returns the actor's own requests.
func (s *RequestService) ListForCustomer(ctx context.Context, actor Actor) ([]models.ServiceRequest, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}
	return s.store.Requests().ListByCustomer(ctx, actor.UID)
}

// ListForVendorUser returns requests addressed to any vendor the actor represents. A user
// without approved claims sees an empty list rather than an invalid query.
func (s *RequestService) ListForVendorUser(ctx context.Context, actor Actor) ([]models.ServiceRequest, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}
	vendorIDs, err := s.vendors.ApprovedVendorIDs(ctx, actor.UID)
	if err != nil {
		return nil, err
	}
	if len(vendorIDs) == 0 {
		return []models.ServiceRequest{}, nil
	}
	if s.repair != nil {
		if _, err := s.repair.BackfillOwnership(ctx, actor, vendorIDs); err != nil {
			s.log.Warn("ownership backfill failed", zap.String("user_id", actor.UID), zap.Error(err))
		}
	}
	return s.store.Requests().ListByVendors(ctx, vendorIDs)
}

// WatchForCustomer streams the actor's request list.
func (s *RequestService) WatchForCustomer(ctx context.Context, actor Actor) (*repository.Feed[[]models.ServiceRequest], error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	return s.store.Requests().WatchCustomer(ctx, actor.UID)
}

// WatchForVendorUser streams requests addressed to the actor's vendors.
func (s *RequestService) WatchForVendorUser(ctx context.Context, actor Actor) (*repository.Feed[[]models.ServiceRequest], error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	vendorIDs, err := s.vendors.ApprovedVendorIDs(ensureContext(ctx), actor.UID)
	if err != nil {
		return nil, err
	}
	if len(vendorIDs) == 0 {
		// No represented vendors: an empty live list, as ListForVendorUser returns.
		topics := []string{changefeed.InboxTopic(actor.UID)}
		return repository.Watch(ctx, s.store.Broker(), topics, func(context.Context) ([]models.ServiceRequest, error) {
			return []models.ServiceRequest{}, nil
		}), nil
	}
	return s.store.Requests().WatchVendors(ctx, vendorIDs)
}

// authorizeParticipant admits the request's customer, representatives of its vendor and
// administrators.
func authorizeParticipant(ctx context.Context, vendors VendorAccess, actor Actor, req *models.ServiceRequest) error {
	if req.UserID == actor.UID || actor.Admin {
		return nil
	}
	ok, err := isRepresentative(ctx, vendors, actor.UID, req.VendorID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrForbidden
	}
	return nil
}
