package monitoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

const defaultMaintenanceMaxAge = 48 * time.Hour

// Database returns a probe that pings the database handle.
func Database(db *gorm.DB) Check {
	return NewCheck("database", func(ctx context.Context) Result {
		start := time.Now()
		if db == nil {
			return Result{Status: StatusDown, Details: "database not configured"}
		}
		sqlDB, err := db.DB()
		if err != nil {
			return ResultFromError(err, time.Since(start))
		}
		return ResultFromError(sqlDB.PingContext(ctx), time.Since(start))
	})
}

// Pinger is satisfied by the Redis change feed broker.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Redis returns a probe for the cross-instance change feed. A nil pinger means Redis is
// not in use and reports up.
func Redis(client Pinger) Check {
	return NewCheck("redis", func(ctx context.Context) Result {
		if client == nil {
			return Result{Status: StatusUp, Details: "redis disabled"}
		}
		start := time.Now()
		return ResultFromError(client.Ping(ctx), time.Since(start))
	})
}

// JobStatus describes the run history of one background job.
type JobStatus struct {
	Name                string    `json:"name"`
	Runs                int       `json:"runs"`
	LastRunAt           time.Time `json:"last_run_at"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// JobReporter exposes job history, e.g. the maintenance scheduler.
type JobReporter interface {
	Jobs() []JobStatus
}

// Maintenance reports down while any job keeps failing and degraded when a job has not
// completed within maxAge.
func Maintenance(reporter JobReporter, maxAge time.Duration) Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}
	return NewCheck("maintenance", func(context.Context) Result {
		if reporter == nil {
			return Result{Status: StatusUp, Details: "maintenance disabled"}
		}
		now := time.Now()
		status := StatusUp
		var problems []string
		for _, job := range reporter.Jobs() {
			switch {
			case job.Runs == 0:
				continue
			case job.ConsecutiveFailures > 0:
				status = worst(status, StatusDown)
				problems = append(problems, fmt.Sprintf("%s: %d consecutive failures", job.Name, job.ConsecutiveFailures))
			case now.Sub(job.LastRunAt) > maxAge:
				status = worst(status, StatusDegraded)
				problems = append(problems, job.Name+": stale run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}
		return Result{Status: status, Details: strings.Join(problems, "; ")}
	})
}
