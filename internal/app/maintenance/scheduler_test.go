package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/cache"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/changefeed"
	testutil "github.com/seewalk/verslo-daigynas-directory-sub001/internal/database/testutil"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/monitoring"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/repository"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
)

func TestSchedulerRunOnce(t *testing.T) {
	self := "cust-1"
	now := time.Now().UTC()
	db := testutil.MustOpenTestDB(t, testutil.WithRows(
		&models.ServiceRequest{
			BaseModel:    models.BaseModel{ID: "req-corrupt", CreatedAt: now, UpdatedAt: now},
			VendorID:     "vendor-1",
			UserID:       self,
			RequestTitle: "Corrupt",
			Status:       models.StatusInProgress,
			OwnerUID:     &self,
		},
		&models.CacheEntry{Key: "stale", Value: []byte("1"), ExpiresAt: now.Add(-time.Hour)},
	))
	store, err := repository.NewStore(db, changefeed.NewMemoryBroker())
	require.NoError(t, err)

	repair, err := services.NewRepairService(store, nil)
	require.NoError(t, err)
	audit, err := services.NewAuditService(db)
	require.NoError(t, err)
	cacheStore := cache.NewDatabaseStore(db)

	ctx := context.Background()
	require.NoError(t, audit.Log(ctx, services.AuditEntry{ActorUID: "tester", Action: "test.action", Result: "success"}))
	var entry models.AuditLog
	require.NoError(t, db.First(&entry).Error)
	require.NoError(t, db.Model(&entry).UpdateColumn("created_at", now.AddDate(0, 0, -10)).Error)

	require.NoError(t, cacheStore.Set(ctx, "fresh", []byte("1"), time.Hour))

	s := NewScheduler(repair, audit, cacheStore,
		WithAuditRetentionDays(7),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)
	require.NoError(t, s.RunOnce(ctx))

	var repaired models.ServiceRequest
	require.NoError(t, db.First(&repaired, "id = ?", "req-corrupt").Error)
	require.Nil(t, repaired.OwnerUID)
	require.Equal(t, models.StatusInProgress, repaired.Status)

	var oldLogs int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("action = ?", "test.action").Count(&oldLogs).Error)
	require.Zero(t, oldLogs)

	var integrityLogs int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("action = ?", services.AuditIntegrityRepair).Count(&integrityLogs).Error)
	require.Equal(t, int64(1), integrityLogs)

	var keys []string
	require.NoError(t, db.Model(&models.CacheEntry{}).Pluck("cache_key", &keys).Error)
	require.Equal(t, []string{"fresh"}, keys)
}

type failingJob struct{ err error }

func (f failingJob) ScanIntegrity(context.Context) ([]services.IntegrityIssue, error) {
	return nil, f.err
}

func (f failingJob) CleanupOlderThan(context.Context, int) (int64, error) { return 0, f.err }

func (f failingJob) PurgeExpired(context.Context) (int64, error) { return 0, f.err }

func TestSchedulerRunOnceCollectsErrors(t *testing.T) {
	scanErr := errors.New("scan failed")
	purgeErr := errors.New("purge failed")

	s := NewScheduler(failingJob{err: scanErr}, failingJob{}, failingJob{err: purgeErr})
	err := s.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.ErrorIs(t, err, scanErr)
	require.ErrorIs(t, err, purgeErr)

	jobs := s.Jobs()
	require.Len(t, jobs, 3)
	require.Equal(t, "audit", jobs[0].Name)
	require.Zero(t, jobs[0].ConsecutiveFailures)
	require.Equal(t, "integrity", jobs[2].Name)
	require.Equal(t, 1, jobs[2].ConsecutiveFailures)
	require.Equal(t, "scan failed", jobs[2].LastError)

	require.Equal(t, monitoring.StatusDown, monitoring.Maintenance(s, 0).Run(context.Background()).Status)
}

func TestSchedulerStartRegistersJobs(t *testing.T) {
	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	s := NewScheduler(failingJob{}, failingJob{}, nil, WithCron(c), WithIntegritySchedule("@every 1h"))
	require.NoError(t, s.Start())
	t.Cleanup(func() { <-s.Stop().Done() })

	require.Len(t, c.Entries(), 2)
}

func TestSchedulerStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler(failingJob{}, nil, nil, WithIntegritySchedule("not a schedule"))
	require.Error(t, s.Start())
}

func TestSchedulerWithoutJobsIsNoop(t *testing.T) {
	s := NewScheduler(nil, nil, nil)
	require.NoError(t, s.Start())
	require.NoError(t, s.RunOnce(context.Background()))
}
