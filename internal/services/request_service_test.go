package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	apperrors "github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
)

func TestCreateRequestNotifiesRepresentatives(t *testing.T) {
	f := newFixture(t)
	f.approve(t, agentA.UID, vendorID)
	f.approve(t, agentB.UID, vendorID)

	req := f.submit(t, customer)
	require.Equal(t, models.StatusPending, req.Status)
	require.Nil(t, req.OwnerUID)
	require.Equal(t, models.ContactEmail, req.PreferredContactMethod)
	require.Equal(t, models.UrgencyNormal, req.Urgency)
	require.Equal(t, req.CreatedAt, req.UpdatedAt)

	for _, agent := range []Actor{agentA, agentB} {
		notes := f.notificationsFor(t, agent.UID, models.NotificationServiceRequest)
		require.Len(t, notes, 1)
		require.Equal(t, req.ID, *notes[0].RequestID)
	}
}

func TestCreateRequestValidatesInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.requests.Create(context.Background(), customer, CreateRequestInput{
		VendorID:       vendorID,
		UserFullName:   "Jonas",
		UserEmail:      "not-an-email",
		RequestTitle:   "Leak",
		RequestDetails: "Details",
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	require.Contains(t, apperrors.FromError(err).Fields, "user_email")

	_, err = f.requests.Create(context.Background(), customer, CreateRequestInput{
		VendorID:       vendorID,
		UserFullName:   "Jonas",
		UserEmail:      "jonas@example.com",
		RequestTitle:   "   ",
		RequestDetails: "Details",
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	var count int64
	require.NoError(t, f.db.Model(&models.ServiceRequest{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestGetRequestIsParticipantScoped(t *testing.T) {
	f := newFixture(t)
	f.approve(t, agentA.UID, vendorID)
	req := f.submit(t, customer)
	ctx := context.Background()

	for _, actor := range []Actor{customer, agentA, admin} {
		got, err := f.requests.Get(ctx, actor, req.ID)
		require.NoError(t, err)
		require.Equal(t, req.ID, got.ID)
	}

	_, err := f.requests.Get(ctx, outsider, req.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.requests.Get(ctx, customer, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListForVendorUser(t *testing.T) {
	f := newFixture(t)
	f.approve(t, agentA.UID, vendorID)
	f.submit(t, customer)
	ctx := context.Background()

	list, err := f.requests.ListForVendorUser(ctx, agentA)
	require.NoError(t, err)
	require.Len(t, list, 1)

	empty, err := f.requests.ListForVendorUser(ctx, outsider)
	require.NoError(t, err)
	require.Empty(t, empty)

	mine, err := f.requests.ListForCustomer(ctx, customer)
	require.NoError(t, err)
	require.Len(t, mine, 1)
}

func TestWatchForVendorUserWithoutVendorsIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.submit(t, customer)

	feed, err := f.requests.WatchForVendorUser(context.Background(), outsider)
	require.NoError(t, err)
	t.Cleanup(feed.Close)

	first := nextSnapshot(t, feed.C)
	require.NoError(t, first.Err)
	require.NotNil(t, first.Value)
	require.Empty(t, first.Value)
}

func TestListForVendorUserBackfillsImportedOwnership(t *testing.T) {
	f := newFixture(t)
	f.approve(t, agentA.UID, vendorID)
	req := f.submit(t, customer)
	require.NoError(t, f.db.Model(&models.ServiceRequest{}).Where("id = ?", req.ID).
		UpdateColumn("status", models.StatusInProgress).Error)

	svc, err := NewRequestService(f.store, f.claims, f.notifications, WithOwnershipRepair(f.repair))
	require.NoError(t, err)

	list, err := svc.ListForVendorUser(context.Background(), agentA)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, agentA.UID, list[0].Owner())
}
