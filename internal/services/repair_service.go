package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/changefeed"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/repository"
	apperrors "github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/metrics"
)

// BackfillResult lists the requests whose ownership was assigned by a backfill.
type BackfillResult struct {
	Assigned   int      `json:"assigned"`
	RequestIDs []string `json:"request_ids"`
}

// IntegrityIssue describes a request found in a state that must never exist.
type IntegrityIssue struct {
	RequestID string               `json:"request_id"`
	UserID    string               `json:"user_id"`
	VendorID  string               `json:"vendor_id"`
	Status    models.RequestStatus `json:"status"`
	Problem   string               `json:"problem"`
}

const problemSelfOwned = "owner_uid equals user_id"

// RepairService fixes ownership data written before assignment was enforced.
type RepairService struct {
	store   *repository.Store
	vendors VendorAccess
	log     *zap.Logger
}

// NewRepairService constructs a RepairService.
func NewRepairService(store *repository.Store, vendors VendorAccess) (*RepairService, error) {
	if store == nil {
		return nil, errors.New("repair service: store is required")
	}
	return &RepairService{store: store, vendors: vendors, log: logger.WithModule("repair")}, nil
}

// BackfillOwnership assigns actor as owner of every in-progress or completed request of
// the given vendors that has no valid owner. Only vendors the actor represents are
// touched, the whole backfill commits as one batch and repeating it changes nothing.
// The actor is assumed to be the legitimate owner of those requests.
func (s *RepairService) BackfillOwnership(ctx context.Context, actor Actor, vendorIDs []string) (*BackfillResult, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}

	vendorIDs = normaliseIDs(vendorIDs)
	if s.vendors != nil && !actor.Admin {
		approved, err := s.vendors.ApprovedVendorIDs(ctx, actor.UID)
		if err != nil {
			return nil, err
		}
		if len(vendorIDs) == 0 {
			vendorIDs = approved
		} else {
			allowed := vendorIDs[:0]
			for _, id := range vendorIDs {
				if containsString(approved, id) {
					allowed = append(allowed, id)
				}
			}
			vendorIDs = allowed
		}
	}
	if len(vendorIDs) == 0 {
		return nil, apperrors.ErrInvalidQuery
	}

	result := &BackfillResult{RequestIDs: []string{}}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var targets []models.ServiceRequest
		if err := tx.DB().WithContext(ctx).
			Where("vendor_id IN ?", vendorIDs).
			Where("status IN ?", []models.RequestStatus{models.StatusInProgress, models.StatusCompleted}).
			Where("(owner_uid IS NULL OR owner_uid = '' OR owner_uid = user_id)").
			Where("user_id <> ?", actor.UID).
			Order("created_at ASC").
			Find(&targets).Error; err != nil {
			return apperrors.Store(err)
		}
		if len(targets) == 0 {
			return nil
		}

		ids := make([]string, 0, len(targets))
		for _, req := range targets {
			ids = append(ids, req.ID)
		}
		if err := tx.DB().WithContext(ctx).
			Model(&models.ServiceRequest{}).
			Where("id IN ?", ids).
			UpdateColumn("owner_uid", actor.UID).Error; err != nil {
			return apperrors.Store(err)
		}

		if err := recordAudit(ctx, tx.DB(), AuditEntry{
			ActorUID: actor.UID,
			Action:   AuditOwnershipBackfill,
			Resource: "service_requests",
			Result:   "success",
			Metadata: map[string]any{"vendor_ids": vendorIDs, "request_ids": ids},
		}); err != nil {
			return apperrors.Store(err)
		}

		for i := range targets {
			tx.Emit(ctx, requestChangeEvents(&targets[i])...)
		}
		result.Assigned = len(ids)
		result.RequestIDs = ids
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Assigned > 0 {
		metrics.OwnershipRepaired.WithLabelValues("backfill").Add(float64(result.Assigned))
		s.log.Info("ownership backfilled",
			zap.String("actor_uid", actor.UID),
			zap.Strings("vendor_ids", vendorIDs),
			zap.Int("assigned", result.Assigned),
		)
	}
	return result, nil
}

// ScanIntegrity finds requests recorded as owned by their own customer, clears the owner
// in one batch (status is kept) and logs each as a data integrity warning.
func (s *RepairService) ScanIntegrity(ctx context.Context) ([]IntegrityIssue, error) {
	ctx = ensureContext(ctx)

	var issues []IntegrityIssue
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var corrupt []models.ServiceRequest
		if err := tx.DB().WithContext(ctx).
			Where("owner_uid IS NOT NULL AND owner_uid <> '' AND owner_uid = user_id").
			Order("created_at ASC").
			Find(&corrupt).Error; err != nil {
			return apperrors.Store(err)
		}
		if len(corrupt) == 0 {
			return nil
		}

		ids := make([]string, 0, len(corrupt))
		for _, req := range corrupt {
			ids = append(ids, req.ID)
			issues = append(issues, IntegrityIssue{
				RequestID: req.ID,
				UserID:    req.UserID,
				VendorID:  req.VendorID,
				Status:    req.Status,
				Problem:   problemSelfOwned,
			})
		}
		if err := tx.DB().WithContext(ctx).
			Model(&models.ServiceRequest{}).
			Where("id IN ?", ids).
			UpdateColumn("owner_uid", nil).Error; err != nil {
			return apperrors.Store(err)
		}
		if err := recordAudit(ctx, tx.DB(), AuditEntry{
			ActorUID: "system",
			Action:   AuditIntegrityRepair,
			Resource: "service_requests",
			Result:   "success",
			Metadata: map[string]any{"request_ids": ids, "problem": problemSelfOwned},
		}); err != nil {
			return apperrors.Store(err)
		}
		for i := range corrupt {
			tx.Emit(ctx, requestChangeEvents(&corrupt[i])...)
		}
		return nil
	})
	if err != nil {
		s.log.Error("integrity scan failed", zap.Error(err))
		return nil, err
	}

	for _, issue := range issues {
		s.log.Warn("data integrity warning",
			zap.String("request_id", issue.RequestID),
			zap.String("user_id", issue.UserID),
			zap.String("vendor_id", issue.VendorID),
			zap.String("problem", issue.Problem),
		)
	}
	if len(issues) > 0 {
		metrics.OwnershipRepaired.WithLabelValues("integrity").Add(float64(len(issues)))
	}
	return issues, nil
}

func requestChangeEvents(req *models.ServiceRequest) []changefeed.Event {
	return []changefeed.Event{
		{Topic: changefeed.RequestTopic(req.ID), Kind: changefeed.KindUpdated, ID: req.ID},
		{Topic: changefeed.CustomerTopic(req.UserID), Kind: changefeed.KindUpdated, ID: req.ID},
		{Topic: changefeed.VendorTopic(req.VendorID), Kind: changefeed.KindUpdated, ID: req.ID},
	}
}
