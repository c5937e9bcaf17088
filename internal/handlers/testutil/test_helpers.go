package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/api"
	iauth "github.com/seewalk/verslo-daigynas-directory-sub001/internal/auth"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/cache"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/changefeed"
	sharedtestutil "github.com/seewalk/verslo-daigynas-directory-sub001/internal/database/testutil"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/middleware"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/realtime"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/repository"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Broker   *changefeed.MemoryBroker
	Services *services.Bundle
	Router   *gin.Engine
	JWT      *iauth.JWTService
}

// EnvOption customises the router dependencies.
type EnvOption func(*api.Dependencies)

// WithRateLimit enables the per-user write limit with an in-memory store.
func WithRateLimit(limit int, window time.Duration) EnvOption {
	return func(d *api.Dependencies) {
		d.RateStore = middleware.NewMemoryRateStore()
		d.RateLimit = limit
		d.RateWindow = window
	}
}

// WithIdempotency enables Idempotency-Key replay backed by the SQL cache.
func WithIdempotency(ttl time.Duration) EnvOption {
	return func(d *api.Dependencies) {
		d.Cache = cache.NewDatabaseStore(d.DB)
		d.IdempotencyTTL = ttl
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAutoMigrate())
	broker := changefeed.NewMemoryBroker()
	store, err := repository.NewStore(db, broker)
	require.NoError(t, err)

	hub := realtime.NewHub()
	bundle, err := services.NewBundle(store, hub, services.BundleConfig{NotificationsEnabled: true})
	require.NoError(t, err)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-suite-super-secret-key-32-bytes!!",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	deps := api.Dependencies{
		DB:              db,
		Verifier:        jwtSvc,
		Services:        bundle,
		Hub:             hub,
		MetricsEnabled:  true,
		MetricsEndpoint: "/metrics",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	router, err := api.NewRouter(deps)
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Broker:   broker,
		Services: bundle,
		Router:   router,
		JWT:      jwtSvc,
	}
}

// Token issues an access token for uid.
func (e *Env) Token(uid string, admin bool) string {
	e.T.Helper()
	token, err := e.JWT.Issue(iauth.Identity{UID: uid, DisplayName: uid, Admin: admin})
	require.NoError(e.T, err)
	return token
}

// ApproveClaim stores an approved claim making uid a representative of vendorID.
func (e *Env) ApproveClaim(uid, vendorID string) {
	e.T.Helper()
	require.NoError(e.T, e.DB.Create(&models.BusinessClaim{
		UserID:   uid,
		VendorID: vendorID,
		Status:   models.ClaimApproved,
	}).Error)
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()
	return e.RequestWithHeaders(method, path, body, token, nil)
}

// RequestWithHeaders is Request with extra request headers.
func (e *Env) RequestWithHeaders(method, path string, body any, token string, header http.Header) *httptest.ResponseRecorder {
	e.T.Helper()

	buf := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
