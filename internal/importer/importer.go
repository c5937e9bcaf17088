package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/database"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
)

const defaultBatchSize = 200

// IntegrityScanner repairs imported requests recorded as owned by their own customer.
type IntegrityScanner interface {
	ScanIntegrity(ctx context.Context) ([]services.IntegrityIssue, error)
}

// Report counts the documents written and skipped per collection.
type Report struct {
	Requests      int
	Messages      int
	Notifications int
	Claims        int
	Skipped       int
	Repaired      int
}

// Importer copies legacy documents into the SQL store, upserting by document id so a
// rerun refreshes rows instead of duplicating them.
type Importer struct {
	db        *gorm.DB
	source    Source
	integrity IntegrityScanner
	batchSize int
	now       func() time.Time
	log       *zap.Logger
}

// New constructs an Importer. A nil scanner skips the post-import integrity scan.
func New(db *gorm.DB, source Source, integrity IntegrityScanner, batchSize int) (*Importer, error) {
	if db == nil {
		return nil, errors.New("importer: db is required")
	}
	if source == nil {
		return nil, errors.New("importer: source is required")
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Importer{
		db:        db,
		source:    source,
		integrity: integrity,
		batchSize: batchSize,
		now:       database.Now,
		log:       logger.WithModule("importer"),
	}, nil
}

// Run imports every collection, then runs the ownership integrity scan.
func (i *Importer) Run(ctx context.Context) (*Report, error) {
	report := &Report{}
	now := i.now()

	requests, err := i.source.Requests(ctx)
	if err != nil {
		return report, err
	}
	rows := make([]models.ServiceRequest, 0, len(requests))
	for _, doc := range requests {
		row, ok := doc.toModel(now)
		if !ok {
			report.Skipped++
			i.log.Warn("skipping request document", zap.String("id", doc.ID), zap.String("status", doc.Status))
			continue
		}
		rows = append(rows, row)
	}
	if err := i.upsert(ctx, &rows, len(rows)); err != nil {
		return report, fmt.Errorf("importer: requests: %w", err)
	}
	report.Requests = len(rows)

	for _, req := range rows {
		docs, err := i.source.Messages(ctx, req.ID)
		if err != nil {
			return report, err
		}
		messages := make([]models.RequestMessage, 0, len(docs))
		for _, doc := range docs {
			msg, ok := doc.toModel(req.CreatedAt)
			if !ok {
				report.Skipped++
				continue
			}
			messages = append(messages, msg)
		}
		if err := i.upsert(ctx, &messages, len(messages)); err != nil {
			return report, fmt.Errorf("importer: messages of %s: %w", req.ID, err)
		}
		report.Messages += len(messages)
	}

	notifications, err := i.source.Notifications(ctx)
	if err != nil {
		return report, err
	}
	notes := make([]models.Notification, 0, len(notifications))
	for _, doc := range notifications {
		if n, ok := doc.toModel(now); ok {
			notes = append(notes, n)
		} else {
			report.Skipped++
		}
	}
	if err := i.upsert(ctx, &notes, len(notes)); err != nil {
		return report, fmt.Errorf("importer: notifications: %w", err)
	}
	report.Notifications = len(notes)

	claimDocs, err := i.source.Claims(ctx)
	if err != nil {
		return report, err
	}
	claims := make([]models.BusinessClaim, 0, len(claimDocs))
	for _, doc := range claimDocs {
		if c, ok := doc.toModel(now); ok {
			claims = append(claims, c)
		} else {
			report.Skipped++
		}
	}
	if err := i.upsert(ctx, &claims, len(claims)); err != nil {
		return report, fmt.Errorf("importer: claims: %w", err)
	}
	report.Claims = len(claims)

	if i.integrity != nil {
		issues, err := i.integrity.ScanIntegrity(ctx)
		if err != nil {
			return report, fmt.Errorf("importer: integrity scan: %w", err)
		}
		report.Repaired = len(issues)
	}

	i.log.Info("import finished",
		zap.Int("requests", report.Requests),
		zap.Int("messages", report.Messages),
		zap.Int("notifications", report.Notifications),
		zap.Int("claims", report.Claims),
		zap.Int("skipped", report.Skipped),
		zap.Int("repaired", report.Repaired),
	)
	return report, nil
}

func (i *Importer) upsert(ctx context.Context, rows any, n int) error {
	if n == 0 {
		return nil
	}
	return i.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		CreateInBatches(rows, i.batchSize).Error
}
