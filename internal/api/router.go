package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/seewalk/verslo-daigynas-directory-sub001/internal/auth"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/cache"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/middleware"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/monitoring"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/realtime"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	DB       *gorm.DB
	Verifier iauth.Verifier
	Services *services.Bundle
	Hub      *realtime.Hub

	// RateStore backs the per-user write limits; nil disables them.
	RateStore  middleware.RateStore
	RateLimit  int
	RateWindow time.Duration

	// Cache records write responses for Idempotency-Key replays; nil disables replay.
	Cache          cache.Store
	IdempotencyTTL time.Duration

	// Health runs the readiness probes behind /health; nil probes the database only.
	Health *monitoring.Checker

	MetricsEnabled  bool
	MetricsEndpoint string
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Verifier == nil {
		return nil, errors.New("api: identity verifier must be provided")
	}
	if deps.Services == nil {
		return nil, errors.New("api: services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	registerHealthRoutes(r, deps)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.Verifier))

	writes := []gin.HandlerFunc{
		middleware.Idempotency(deps.Cache, deps.IdempotencyTTL),
		middleware.RateLimit(deps.RateStore, "writes", deps.RateLimit, deps.RateWindow),
	}

	registerRequestRoutes(api, deps, writes)
	registerNotificationRoutes(api, deps)
	registerClaimRoutes(api, deps)
	registerMaintenanceRoutes(api, deps)

	r.NoRoute(middleware.NotFoundHandler)
	return r, nil
}
