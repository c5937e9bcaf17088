package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/changefeed"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/database/testutil"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/realtime"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/repository"
)

var (
	customer = Actor{UID: "cust-1", Email: "jonas@example.com", DisplayName: "Jonas"}
	agentA   = Actor{UID: "agent-a", Email: "a@acme.example", DisplayName: "Agent A"}
	agentB   = Actor{UID: "agent-b", Email: "b@acme.example", DisplayName: "Agent B"}
	outsider = Actor{UID: "outsider", Email: "x@example.com"}
	admin    = Actor{UID: "admin-1", Admin: true}
)

const (
	vendorID = "vendor-acme"
	timeout  = 2 * time.Second
	tick     = 10 * time.Millisecond
)

func nextSnapshot[T any](t *testing.T, ch <-chan repository.Snapshot[T]) repository.Snapshot[T] {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "feed closed")
		return snap
	case <-time.After(timeout):
		t.Fatal("timed out waiting for snapshot")
	}
	return repository.Snapshot[T]{}
}

type fixture struct {
	db            *gorm.DB
	store         *repository.Store
	broker        *changefeed.MemoryBroker
	notifications *NotificationService
	claims        *ClaimService
	requests      *RequestService
	chat          *ChatService
	unread        *UnreadService
	repair        *RepairService
	audit         *AuditService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	broker := changefeed.NewMemoryBroker()
	store, err := repository.NewStore(db, broker)
	require.NoError(t, err)

	f := &fixture{db: db, store: store, broker: broker}
	f.notifications, err = NewNotificationService(store, realtime.NewHub())
	require.NoError(t, err)
	f.claims, err = NewClaimService(store, f.notifications)
	require.NoError(t, err)
	f.repair, err = NewRepairService(store, f.claims)
	require.NoError(t, err)
	f.requests, err = NewRequestService(store, f.claims, f.notifications)
	require.NoError(t, err)
	f.chat, err = NewChatService(store, f.claims, f.notifications)
	require.NoError(t, err)
	f.unread, err = NewUnreadService(store, f.claims, f.notifications)
	require.NoError(t, err)
	f.audit, err = NewAuditService(db)
	require.NoError(t, err)
	return f
}

func (f *fixture) approve(t *testing.T, userID, vendor string) {
	t.Helper()
	require.NoError(t, f.db.Create(&models.BusinessClaim{
		UserID:     userID,
		VendorID:   vendor,
		VendorName: "Acme Plumbing",
		Status:     models.ClaimApproved,
	}).Error)
}

func (f *fixture) submit(t *testing.T, actor Actor) *models.ServiceRequest {
	t.Helper()
	req, err := f.requests.Create(context.Background(), actor, CreateRequestInput{
		VendorID:       vendorID,
		VendorName:     "Acme Plumbing",
		UserFullName:   "Jonas Jonaitis",
		UserEmail:      "jonas@example.com",
		RequestTitle:   "Leaking tap",
		RequestDetails: "The kitchen tap drips all night.",
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) notificationsFor(t *testing.T, userID, kind string) []models.Notification {
	t.Helper()
	var rows []models.Notification
	query := f.db.Where("user_id = ?", userID)
	if kind != "" {
		query = query.Where("type = ?", kind)
	}
	require.NoError(t, query.Order("created_at ASC").Find(&rows).Error)
	return rows
}

func (f *fixture) reload(t *testing.T, id string) *models.ServiceRequest {
	t.Helper()
	req, err := f.store.Requests().Get(context.Background(), id)
	require.NoError(t, err)
	return req
}

func (f *fixture) messageCount(t *testing.T, requestID string) int {
	t.Helper()
	msgs, err := f.store.Messages().List(context.Background(), requestID)
	require.NoError(t, err)
	return len(msgs)
}
