package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/changefeed"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/database"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/repository"
	apperrors "github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
)

// VendorAccess resolves which vendors a user may act for.
type VendorAccess interface {
	ApprovedVendorIDs(ctx context.Context, userID string) ([]string, error)
	Representatives(ctx context.Context, vendorID string) ([]string, error)
}

// SubmitClaimInput describes a user's request to represent a vendor listing.
type SubmitClaimInput struct {
	VendorID   string `json:"vendor_id" validate:"required,docid,max=128"`
	VendorName string `json:"vendor_name" validate:"max=255"`
	Note       string `json:"note" validate:"max=2000"`
}

// ClaimService manages business claims, the link between user accounts and the vendors
// they may answer requests for.
type ClaimService struct {
	store         *repository.Store
	notifications *NotificationService
	log           *zap.Logger
}

// NewClaimService constructs a ClaimService.
func NewClaimService(store *repository.Store, notifications *NotificationService) (*ClaimService, error) {
	if store == nil {
		return nil, errors.New("claim service: store is required")
	}
	return &ClaimService{store: store, notifications: notifications, log: logger.WithModule("claims")}, nil
}

// Submit files a pending claim. A user may hold one claim per vendor.
func (s *ClaimService) Submit(ctx context.Context, actor Actor, input SubmitClaimInput) (*models.BusinessClaim, error) {
	ctx = ensureContext(ctx)
	if err := actor.validate(); err != nil {
		return nil, err
	}
	vendorID := strings.TrimSpace(input.VendorID)
	if vendorID == "" {
		return nil, apperrors.NewValidation("vendor id is required")
	}

	claim := &models.BusinessClaim{
		UserID:     actor.UID,
		VendorID:   vendorID,
		VendorName: strings.TrimSpace(input.VendorName),
		Note:       strings.TrimSpace(input.Note),
		Status:     models.ClaimPending,
	}
	if err := s.store.DB().WithContext(ctx).Create(claim).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return nil, apperrors.NewBadRequest("A claim for this vendor already exists")
		}
		return nil, apperrors.Store(err)
	}
	return claim, nil
}

// ListForUser returns the claims filed by userID.
func (s *ClaimService) ListForUser(ctx context.Context, userID string) ([]models.BusinessClaim, error) {
	ctx = ensureContext(ctx)
	var claims []models.BusinessClaim
	if err := s.store.DB().WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("created_at DESC").
		Find(&claims).Error; err != nil {
		return nil, apperrors.Store(err)
	}
	return claims, nil
}

// Approve grants the claimant the right to act for the vendor.
func (s *ClaimService) Approve(ctx context.Context, reviewer Actor, claimID, note string) (*models.BusinessClaim, error) {
	return s.review(ctx, reviewer, claimID, models.ClaimApproved, note)
}

// Reject declines a pending claim.
func (s *ClaimService) Reject(ctx context.Context, reviewer Actor, claimID, note string) (*models.BusinessClaim, error) {
	return s.review(ctx, reviewer, claimID, models.ClaimRejected, note)
}

// review writes the claim status, the claimant's notification and the audit entry in one
// batch; none of them is visible unless all of them are.
func (s *ClaimService) review(ctx context.Context, reviewer Actor, claimID string, status models.ClaimStatus, note string) (*models.BusinessClaim, error) {
	ctx = ensureContext(ctx)
	if err := reviewer.validate(); err != nil {
		return nil, err
	}
	if !reviewer.Admin {
		return nil, apperrors.ErrForbidden
	}

	var (
		claim        models.BusinessClaim
		notification *models.Notification
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		db := tx.DB().WithContext(ctx)
		if err := db.First(&claim, "id = ?", strings.TrimSpace(claimID)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound.WithMessage("Business claim not found")
			}
			return apperrors.Store(err)
		}
		if claim.Status != models.ClaimPending {
			return apperrors.ErrInvalidTransition.WithMessage("Business claim was already reviewed")
		}

		now := tx.Now()
		reviewerUID := reviewer.UID
		if err := db.Model(&claim).Updates(map[string]any{
			"status":      status,
			"note":        firstNonEmpty(note, claim.Note),
			"reviewed_by": reviewerUID,
			"reviewed_at": now,
			"updated_at":  now,
		}).Error; err != nil {
			return apperrors.Store(err)
		}
		claim.Status = status
		claim.ReviewedBy = &reviewerUID
		claim.ReviewedAt = &now

		var err error
		notification, err = s.createClaimNotification(ctx, tx, &claim)
		if err != nil {
			return err
		}

		action := AuditClaimApproved
		if status == models.ClaimRejected {
			action = AuditClaimRejected
		}
		if err := recordAudit(ctx, tx.DB(), AuditEntry{
			ActorUID: reviewer.UID,
			Action:   action,
			Resource: "business_claim:" + claim.ID,
			Result:   "success",
			Metadata: map[string]any{"vendor_id": claim.VendorID, "claimant": claim.UserID},
		}); err != nil {
			return apperrors.Store(err)
		}

		if status == models.ClaimApproved {
			tx.Emit(ctx, changefeed.Event{Topic: changefeed.VendorTopic(claim.VendorID), Kind: changefeed.KindUpdated})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if notification != nil && s.notifications != nil {
		dto := mapNotification(*notification)
		s.notifications.announce(&dto)
	}
	s.log.Info("business claim reviewed",
		zap.String("claim_id", claim.ID),
		zap.String("vendor_id", claim.VendorID),
		zap.String("status", string(status)),
		zap.String("reviewer", reviewer.UID),
	)
	return &claim, nil
}

func (s *ClaimService) createClaimNotification(ctx context.Context, tx *repository.Store, claim *models.BusinessClaim) (*models.Notification, error) {
	if s.notifications == nil {
		return nil, nil
	}
	verb := "approved"
	if claim.Status == models.ClaimRejected {
		verb = "rejected"
	}
	return s.notifications.createIn(ctx, tx, CreateNotificationInput{
		UserID:   claim.UserID,
		Type:     models.NotificationBusinessClaimStatus,
		Title:    "Business claim " + verb,
		Message:  fmt.Sprintf("Your claim for %s was %s", firstNonEmpty(claim.VendorName, claim.VendorID), verb),
		Metadata: map[string]any{"claim_id": claim.ID, "vendor_id": claim.VendorID, "status": string(claim.Status)},
	})
}

// ApprovedVendorIDs lists the vendors userID may act for.
func (s *ClaimService) ApprovedVendorIDs(ctx context.Context, userID string) ([]string, error) {
	ctx = ensureContext(ctx)
	var ids []string
	if err := s.store.DB().WithContext(ctx).
		Model(&models.BusinessClaim{}).
		Where("user_id = ? AND status = ?", strings.TrimSpace(userID), models.ClaimApproved).
		Order("vendor_id ASC").
		Pluck("vendor_id", &ids).Error; err != nil {
		return nil, apperrors.Store(err)
	}
	return normaliseIDs(ids), nil
}

// Representatives lists users approved to act for vendorID.
func (s *ClaimService) Representatives(ctx context.Context, vendorID string) ([]string, error) {
	ctx = ensureContext(ctx)
	var ids []string
	if err := s.store.DB().WithContext(ctx).
		Model(&models.BusinessClaim{}).
		Where("vendor_id = ? AND status = ?", strings.TrimSpace(vendorID), models.ClaimApproved).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, apperrors.Store(err)
	}
	return normaliseIDs(ids), nil
}

// isRepresentative reports whether userID may act for vendorID.
func isRepresentative(ctx context.Context, access VendorAccess, userID, vendorID string) (bool, error) {
	if access == nil {
		return false, nil
	}
	ids, err := access.ApprovedVendorIDs(ctx, userID)
	if err != nil {
		return false, err
	}
	return containsString(ids, vendorID), nil
}
