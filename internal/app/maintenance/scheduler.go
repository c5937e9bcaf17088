package maintenance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/monitoring"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultIntegritySpec      = "@hourly"
	defaultAuditSpec          = "@daily"
	defaultCacheSpec          = "@every 15m"
)

// IntegrityScanner clears ownership records that must never exist.
type IntegrityScanner interface {
	ScanIntegrity(ctx context.Context) ([]services.IntegrityIssue, error)
}

// AuditPruner removes audit logs past their retention window.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// CachePurger drops expired cache rows.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Scheduler runs the periodic maintenance jobs: the ownership integrity scan, audit
// retention and the database cache purge. Nil dependencies skip the matching job.
type Scheduler struct {
	integrity IntegrityScanner
	audit     AuditPruner
	cache     CachePurger
	cron      *cron.Cron
	log       *zap.Logger
	retention int
	timeout   time.Duration

	integritySchedule string
	auditSchedule     string
	cacheSchedule     string

	mu      sync.Mutex
	history map[string]*monitoring.JobStatus
	now     func() time.Time
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(s *Scheduler) {
		if days > 0 {
			s.retention = days
		}
	}
}

// WithIntegritySchedule overrides the cron specification for the integrity scan.
func WithIntegritySchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.integritySchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.auditSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for the cache purge.
func WithCacheSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.cacheSchedule = spec
		}
	}
}

// WithJobTimeout bounds each scheduled run.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewScheduler constructs a Scheduler with the default schedules.
func NewScheduler(integrity IntegrityScanner, audit AuditPruner, cache CachePurger, opts ...Option) *Scheduler {
	s := &Scheduler{
		integrity:         integrity,
		audit:             audit,
		cache:             cache,
		retention:         defaultAuditRetentionDays,
		timeout:           5 * time.Minute,
		integritySchedule: defaultIntegritySpec,
		auditSchedule:     defaultAuditSpec,
		cacheSchedule:     defaultCacheSpec,
		log:               logger.WithModule("maintenance"),
		history:           make(map[string]*monitoring.JobStatus),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s
}

type job struct {
	name string
	spec string
	run  func(ctx context.Context) error
}

func (s *Scheduler) jobs() []job {
	var jobs []job
	if s.integrity != nil {
		jobs = append(jobs, job{name: "integrity", spec: s.integritySchedule, run: s.scanIntegrity})
	}
	if s.audit != nil && s.retention > 0 {
		jobs = append(jobs, job{name: "audit", spec: s.auditSchedule, run: s.pruneAudit})
	}
	if s.cache != nil {
		jobs = append(jobs, job{name: "cache", spec: s.cacheSchedule, run: s.purgeCache})
	}
	return jobs
}

// Start registers the jobs with the cron scheduler and launches it if at least one job is enabled.
func (s *Scheduler) Start() error {
	jobs := s.jobs()
	if len(jobs) == 0 {
		return nil
	}
	for _, j := range jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()
			if err := s.execute(ctx, j); err != nil {
				s.log.Warn("maintenance job failed", zap.String("job", j.name), zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes every configured job sequentially and reports all failures together.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var errs error
	for _, j := range s.jobs() {
		errs = multierr.Append(errs, s.execute(ctx, j))
	}
	return errs
}

// Jobs reports the run history of every job that has run at least once.
func (s *Scheduler) Jobs() []monitoring.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]monitoring.JobStatus, 0, len(s.history))
	for _, status := range s.history {
		out = append(out, *status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) execute(ctx context.Context, j job) error {
	err := j.run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.history[j.name]
	if !ok {
		status = &monitoring.JobStatus{Name: j.name}
		s.history[j.name] = status
	}
	status.Runs++
	status.LastRunAt = s.now()
	if err != nil {
		status.LastError = err.Error()
		status.ConsecutiveFailures++
	} else {
		status.LastError = ""
		status.ConsecutiveFailures = 0
	}
	return err
}

func (s *Scheduler) scanIntegrity(ctx context.Context) error {
	issues, err := s.integrity.ScanIntegrity(ctx)
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		s.log.Info("integrity scan repaired requests", zap.Int("count", len(issues)))
	}
	return nil
}

func (s *Scheduler) pruneAudit(ctx context.Context) error {
	removed, err := s.audit.CleanupOlderThan(ctx, s.retention)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.log.Debug("audit logs pruned", zap.Int64("removed", removed))
	}
	return nil
}

func (s *Scheduler) purgeCache(ctx context.Context) error {
	removed, err := s.cache.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.log.Debug("cache entries purged", zap.Int64("removed", removed))
	}
	return nil
}
