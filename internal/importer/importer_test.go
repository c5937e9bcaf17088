package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/changefeed"
	testutil "github.com/seewalk/verslo-daigynas-directory-sub001/internal/database/testutil"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/repository"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
)

type fakeSource struct {
	requests      []RequestDoc
	messages      map[string][]MessageDoc
	notifications []NotificationDoc
	claims        []ClaimDoc
	err           error
}

func (f *fakeSource) Requests(context.Context) ([]RequestDoc, error) { return f.requests, f.err }

func (f *fakeSource) Messages(_ context.Context, requestID string) ([]MessageDoc, error) {
	docs := f.messages[requestID]
	for i := range docs {
		docs[i].RequestID = requestID
	}
	return docs, nil
}

func (f *fakeSource) Notifications(context.Context) ([]NotificationDoc, error) {
	return f.notifications, nil
}

func (f *fakeSource) Claims(context.Context) ([]ClaimDoc, error) { return f.claims, nil }

func legacySource() *fakeSource {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	self := "cust-1"
	agent := "agent-a"
	return &fakeSource{
		requests: []RequestDoc{
			{ID: "req-1", VendorID: "vendor-1", UserID: "cust-1", RequestTitle: "Leaky tap", Status: "inProgress", OwnerUID: &agent, CreatedAt: created},
			{ID: "req-2", VendorID: "vendor-1", UserID: "cust-1", RequestTitle: "Broken door", Status: "completed", OwnerUID: &self, CreatedAt: created},
			{ID: "req-3", VendorID: "vendor-1", UserID: "cust-2", RequestTitle: "New quote"},
			{ID: "req-bad", VendorID: "vendor-1", UserID: "cust-2", Status: "archived"},
		},
		messages: map[string][]MessageDoc{
			"req-1": {
				{ID: "m-1", Content: "Hi", SenderType: "user", CreatedAt: created.Add(time.Minute)},
				{ID: "m-2", Content: "Hello", SenderType: "vendor", SenderUID: agent, CreatedAt: created.Add(2 * time.Minute)},
				{ID: "m-bad", Content: "?", SenderType: "bot"},
			},
		},
		notifications: []NotificationDoc{
			{ID: "n-1", UserID: "cust-1", Type: models.NotificationServiceRequestMessage, Title: "New reply", RequestID: "req-1", Metadata: map[string]any{"vendorName": "Acme"}},
			{ID: "n-bad"},
		},
		claims: []ClaimDoc{
			{ID: "c-1", UserID: "agent-a", VendorID: "vendor-1", Status: "approved"},
		},
	}
}

func newImporter(t *testing.T, source Source) (*Importer, *repository.Store) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store, err := repository.NewStore(db, changefeed.NewMemoryBroker())
	require.NoError(t, err)
	repair, err := services.NewRepairService(store, nil)
	require.NoError(t, err)
	imp, err := New(db, source, repair, 2)
	require.NoError(t, err)
	return imp, store
}

func TestImporterRun(t *testing.T) {
	imp, store := newImporter(t, legacySource())
	ctx := context.Background()

	report, err := imp.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, report.Requests)
	require.Equal(t, 2, report.Messages)
	require.Equal(t, 1, report.Notifications)
	require.Equal(t, 1, report.Claims)
	require.Equal(t, 3, report.Skipped)
	require.Equal(t, 1, report.Repaired)

	req, err := store.Requests().Get(ctx, "req-2")
	require.NoError(t, err)
	require.Nil(t, req.OwnerUID)
	require.Equal(t, models.StatusCompleted, req.Status)

	pending, err := store.Requests().Get(ctx, "req-3")
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, pending.Status)
	require.Equal(t, models.UrgencyNormal, pending.Urgency)

	var messages []models.RequestMessage
	require.NoError(t, store.DB().Order("created_at ASC").Find(&messages, "request_id = ?", "req-1").Error)
	require.Len(t, messages, 2)
	require.Equal(t, "Hi", messages[0].Content)
	require.Equal(t, models.SenderVendor, messages[1].SenderType)

	var note models.Notification
	require.NoError(t, store.DB().First(&note, "id = ?", "n-1").Error)
	require.NotNil(t, note.RequestID)
	require.JSONEq(t, `{"vendorName":"Acme"}`, string(note.Metadata))
}

func TestImporterRunIsIdempotent(t *testing.T) {
	source := legacySource()
	imp, store := newImporter(t, source)
	ctx := context.Background()

	_, err := imp.Run(ctx)
	require.NoError(t, err)

	source.requests[0].RequestTitle = "Leaky tap (updated)"
	report, err := imp.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, report.Requests)
	require.Equal(t, 1, report.Repaired)

	var count int64
	require.NoError(t, store.DB().Model(&models.ServiceRequest{}).Count(&count).Error)
	require.Equal(t, int64(3), count)
	require.NoError(t, store.DB().Model(&models.RequestMessage{}).Count(&count).Error)
	require.Equal(t, int64(2), count)

	req, err := store.Requests().Get(ctx, "req-1")
	require.NoError(t, err)
	require.Equal(t, "Leaky tap (updated)", req.RequestTitle)
}

func TestImporterRunPropagatesSourceErrors(t *testing.T) {
	imp, _ := newImporter(t, &fakeSource{err: errors.New("firestore unavailable")})
	_, err := imp.Run(context.Background())
	require.ErrorContains(t, err, "firestore unavailable")
}

func TestNewImporterValidatesDependencies(t *testing.T) {
	_, err := New(nil, &fakeSource{}, nil, 0)
	require.Error(t, err)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	_, err = New(db, nil, nil, 0)
	require.Error(t, err)

	imp, err := New(db, &fakeSource{}, nil, 0)
	require.NoError(t, err)
	require.Equal(t, defaultBatchSize, imp.batchSize)
}

func TestRequestDocToModel(t *testing.T) {
	blank := "  "
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	row, ok := RequestDoc{ID: "r", VendorID: "v", UserID: "u", OwnerUID: &blank}.toModel(now)
	require.True(t, ok)
	require.Nil(t, row.OwnerUID)
	require.Equal(t, now, row.CreatedAt)
	require.Equal(t, now, row.UpdatedAt)
	require.Equal(t, models.ContactEmail, row.PreferredContactMethod)

	_, ok = RequestDoc{ID: "r", UserID: "u"}.toModel(now)
	require.False(t, ok)
}
