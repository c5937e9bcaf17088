package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/auditctx"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/database"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
)

// Audit actions recorded by the messaging core.
const (
	AuditClaimApproved     = "claim.approve"
	AuditClaimRejected     = "claim.reject"
	AuditOwnershipBackfill = "request.ownership.backfill"
	AuditIntegrityRepair   = "request.ownership.integrity"
)

// AuditEntry is one event to record. Action and Result are required.
type AuditEntry struct {
	ActorUID string
	Action   string
	Resource string
	Result   string
	Metadata map[string]any
}

// AuditFilters narrows List; zero fields are ignored.
type AuditFilters struct {
	ActorUID string
	Action   string
	Resource string
	Since    *time.Time
}

func (f AuditFilters) scope(q *gorm.DB) *gorm.DB {
	for column, value := range map[string]string{"actor_uid": f.ActorUID, "action": f.Action, "resource": f.Resource} {
		if value = strings.TrimSpace(value); value != "" {
			q = q.Where(column+" = ?", value)
		}
	}
	if f.Since != nil {
		q = q.Where("created_at >= ?", f.Since.UTC())
	}
	return q
}

const (
	defaultAuditPage = 50
	maxAuditPage     = 200
)

// AuditService records claim decisions and ownership repairs, and serves them to admins.
type AuditService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAuditService requires a database handle.
func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db, now: database.Now}, nil
}

// Log writes entry on its own. Services inside a transaction call recordAudit with the
// transaction handle instead, so the entry commits with the change it describes.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	return recordAudit(ensureContext(ctx), s.db, entry)
}

// recordAudit fills a blank actor from the request origin and merges origin metadata
// (ip, user agent) without overriding keys the caller set.
func recordAudit(ctx context.Context, db *gorm.DB, entry AuditEntry) error {
	row := models.AuditLog{
		ActorUID: strings.TrimSpace(entry.ActorUID),
		Action:   strings.TrimSpace(entry.Action),
		Resource: strings.TrimSpace(entry.Resource),
		Result:   strings.TrimSpace(entry.Result),
	}
	switch {
	case row.Action == "":
		return errors.New("audit service: action is required")
	case row.Result == "":
		return errors.New("audit service: result is required")
	}

	if origin, ok := auditctx.FromContext(ctx); ok && row.ActorUID == "" {
		row.ActorUID = origin.UserID
	}
	metadata, err := encodeMetadata(auditctx.Metadata(ctx, entry.Metadata))
	if err != nil {
		return fmt.Errorf("audit service: %w", err)
	}
	row.Metadata = metadata
	return db.WithContext(ctx).Create(&row).Error
}

// List returns matching entries, newest first. limit outside 1..200 falls back to 50.
func (s *AuditService) List(ctx context.Context, filters AuditFilters, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > maxAuditPage {
		limit = defaultAuditPage
	}

	var logs []models.AuditLog
	err := s.db.WithContext(ensureContext(ctx)).
		Scopes(filters.scope).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("audit service: list logs: %w", err)
	}
	return logs, nil
}

// CleanupOlderThan deletes entries older than retentionDays and reports how many went.
func (s *AuditService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, errors.New("audit service: retentionDays must be positive")
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays)

	res := s.db.WithContext(ensureContext(ctx)).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
