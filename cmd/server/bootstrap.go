package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/api"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/app"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/app/maintenance"
	iauth "github.com/seewalk/verslo-daigynas-directory-sub001/internal/auth"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/cache"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/changefeed"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/database"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/middleware"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/monitoring"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/realtime"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/repository"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
)

const cacheKeyPrefix = "directory:"

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Broker    changefeed.Broker
	Redis     *changefeed.RedisBroker
	Cache     cache.Store
	Services  *services.Bundle
	Hub       *realtime.Hub
	Scheduler *maintenance.Scheduler
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, change feed, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbCache := cache.NewDatabaseStore(stack.DB)
	stack.Broker = changefeed.NewMemoryBroker()
	stack.Cache = dbCache

	if cfg.Cache.Redis.Enabled {
		rb, redisErr := changefeed.NewRedisBroker(ctx, redisConfig(cfg))
		if redisErr != nil {
			log.Warn("redis unavailable; falling back to in-process change feed", zap.Error(redisErr))
		} else if startErr := rb.Start(ctx); startErr != nil {
			_ = rb.Close()
			log.Warn("redis subscription failed; falling back to in-process change feed", zap.Error(startErr))
		} else {
			stack.Redis = rb
			stack.Broker = rb
			stack.Cache = cache.NewRedisStore(rb.Client(), cacheKeyPrefix)
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	store, err := repository.NewStore(stack.DB, stack.Broker)
	if err != nil {
		return nil, fmt.Errorf("initialise store: %w", err)
	}

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	stack.Hub = realtime.NewHub()
	stack.Services, err = services.NewBundle(store, stack.Hub, services.BundleConfig{
		NotificationsEnabled: cfg.Features.Notifications.Enabled,
		RepairOnVendorList:   cfg.Features.Repair.OnVendorList,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Scheduler = maintenance.NewScheduler(stack.Services.Repair, stack.Services.Audit, dbCache,
			maintenance.WithIntegritySchedule(cfg.Maintenance.IntegritySchedule),
			maintenance.WithAuditSchedule(cfg.Maintenance.AuditSchedule),
			maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
			maintenance.WithCacheSchedule(cfg.Maintenance.CachePurgeSchedule),
		)
		if err := stack.Scheduler.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	health := monitoring.NewChecker(0)
	health.Register(monitoring.Database(stack.DB))
	if stack.Redis != nil {
		health.Register(monitoring.Redis(stack.Redis))
	}
	if stack.Scheduler != nil {
		health.Register(monitoring.Maintenance(stack.Scheduler, 0))
	}

	if cfg.RateLimit.Messages > 0 {
		stack.RateStore = middleware.NewCacheRateStore(stack.Cache)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:              stack.DB,
		Verifier:        verifier,
		Services:        stack.Services,
		Hub:             stack.Hub,
		RateStore:       stack.RateStore,
		RateLimit:       cfg.RateLimit.Messages,
		RateWindow:      cfg.RateLimit.Window,
		Cache:           stack.Cache,
		IdempotencyTTL:  cfg.Cache.IdempotencyTTL,
		Health:          health,
		MetricsEnabled:  cfg.Monitoring.Prometheus.Enabled,
		MetricsEndpoint: cfg.Monitoring.Prometheus.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		if stopCtx := s.Scheduler.Stop(); stopCtx != nil {
			select {
			case <-stopCtx.Done():
			case <-ctx.Done():
				log.Warn("maintenance jobs still running at shutdown")
			}
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func newVerifier(ctx context.Context, cfg *app.Config) (iauth.Verifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Auth.Provider)) {
	case "", "jwt":
		svc, err := iauth.NewJWTService(iauth.JWTConfig{
			Secret:         cfg.Auth.JWT.Secret,
			Issuer:         cfg.Auth.JWT.Issuer,
			AccessTokenTTL: cfg.Auth.JWT.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise jwt service: %w", err)
		}
		return svc, nil
	case "firebase":
		verifier, err := iauth.NewFirebaseVerifier(ctx, iauth.FirebaseConfig{
			ProjectID:       cfg.Auth.Firebase.ProjectID,
			CredentialsFile: cfg.Auth.Firebase.CredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise firebase verifier: %w", err)
		}
		return verifier, nil
	default:
		return nil, fmt.Errorf("unsupported auth provider %q", cfg.Auth.Provider)
	}
}

func redisConfig(cfg *app.Config) changefeed.RedisConfig {
	return changefeed.RedisConfig{
		Address:  strings.TrimSpace(cfg.Cache.Redis.Address),
		Username: cfg.Cache.Redis.Username,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Channel:  cfg.Cache.Redis.Channel,
		Timeout:  cfg.Cache.Redis.Timeout,
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		closeDatabase(db, logger.WithModule("database"))
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}
	if err := database.Close(db); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
