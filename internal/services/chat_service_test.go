package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/lifecycle"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	apperrors "github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
)

func TestFirstVendorReplyAssignsOwnership(t *testing.T) {
	f := newFixture(t)
	f.approve(t, agentA.UID, vendorID)
	req := f.submit(t, customer)

	res, err := f.chat.SendAsVendor(context.Background(), agentA, req.ID, "Hello")
	require.NoError(t, err)
	require.Equal(t, lifecycle.OutcomeAssign, res.Ownership)

	stored := f.reload(t, req.ID)
	require.Equal(t, models.StatusInProgress, stored.Status)
	require.Equal(t, agentA.UID, stored.Owner())
	require.NotNil(t, stored.ResponseDate)
	require.Equal(t, "Hello", stored.LastMessage)
	require.Equal(t, models.SenderVendor, stored.LastMessageSender)

	notes := f.notificationsFor(t, customer.UID, models.NotificationServiceRequestMessage)
	require.Len(t, notes, 1)
	require.Equal(t, req.ID, *notes[0].RequestID)
}

func TestSecondAgentDoesNotTakeOwnership(t *testing.T) {
	f := newFixture(t)
	f.approve(t, agentA.UID, vendorID)
	f.approve(t, agentB.UID, vendorID)
	req := f.submit(t, customer)
	ctx := context.Background()

	_, err := f.chat.SendAsVendor(ctx, agentA, req.ID, "Hello")
	require.NoError(t, err)
	firstResponse := *f.reload(t, req.ID).ResponseDate

	res, err := f.chat.SendAsVendor(ctx, agentB, req.ID, "I can help too")
	require.NoError(t, err)
	require.Equal(t, lifecycle.OutcomeKeep, res.Ownership)

	stored := f.reload(t, req.ID)
	require.Equal(t, agentA.UID, stored.Owner())
	require.Equal(t, models.StatusInProgress, stored.Status)
	require.True(t, firstResponse.Equal(*stored.ResponseDate))
	require.Equal(t, 2, f.messageCount(t, req.ID))
	require.Len(t, f.notificationsFor(t, customer.UID, models.NotificationServiceRequestMessage), 2)
}

func TestConcurrentFirstRepliesAssignExactlyOneOwner(t *testing.T) {
	f := newFixture(t)
	f.approve(t, agentA.UID, vendorID)
	f.approve(t, agentB.UID, vendorID)
	req := f.submit(t, customer)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[string]lifecycle.Outcome{}
		errs     []error
	)
	for _, agent := range []Actor{agentA, agentB} {
		wg.Add(1)
		go func(agent Actor) {
			defer wg.Done()
			res, err := f.chat.SendAsVendor(context.Background(), agent, req.ID, "Hi from "+agent.UID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			outcomes[agent.UID] = res.Ownership
		}(agent)
	}
	wg.Wait()
	require.Empty(t, errs)

	assigned := 0
	winner := ""
	for uid, outcome := range outcomes {
		if outcome == lifecycle.OutcomeAssign {
			assigned++
			winner = uid
		}
	}
	require.Equal(t, 1, assigned)
	require.Equal(t, winner, f.reload(t, req.ID).Owner())
	require.Equal(t, 2, f.messageCount(t, req.ID))
}

func TestCustomerReplyNotifiesOwnerAndKeepsState(t *testing.T) {
	f := newFixture(t)
	f.approve(t, agentA.UID, vendorID)
	req := f.submit(t, customer)
	ctx := context.Background()

	_, err := f.chat.SendAsVendor(ctx, agentA, req.ID, "Hello")
	require.NoError(t, err)
	before := f.reload(t, req.ID)

	res, err := f.chat.SendAsCustomer(ctx, customer, req.ID, "Thanks")
	require.NoError(t, err)
	require.Equal(t, models.SenderUser, res.Message.SenderType)

	after := f.reload(t, req.ID)
	require.Equal(t, before.Status, after.Status)
	require.Equal(t, before.Owner(), after.Owner())
	require.Equal(t, "Thanks", after.LastMessage)
	require.Equal(t, models.SenderUser, after.LastMessageSender)
	require.True(t, after.UpdatedAt.After(before.UpdatedAt))

	notes := f.notificationsFor(t, agentA.UID, models.NotificationServiceRequestMessage)
	require.Len(t, notes, 1)
}

func TestCustomerReplyWithoutOwnerSkipsNotification(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, customer)

	_, err := f.chat.SendAsCustomer(context.Background(), customer, req.ID, "Anyone there?")
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.Notification{}).
		Where("type = ?", models.NotificationServiceRequestMessage).
		Count(&count).Error)
	require.Zero(t, count)

	stored := f.reload(t, req.ID)
	require.Equal(t, models.StatusPending, stored.Status)
	require.Nil(t, stored.OwnerUID)
}

func TestCompleteOnlyByOwner(t *testing.T) {
	f := newFixture(t)
	f.approve(t, agentA.UID, vendorID)
	f.approve(t, agentB.UID, vendorID)
	req := f.submit(t, customer)
	ctx := context.Background()

	_, err := f.chat.Complete(ctx, agentA, req.ID)
	require.ErrorIs(t, err, apperrors.ErrNotOwner)

	_, err = f.chat.SendAsVendor(ctx, agentA, req.ID, "Hello")
	require.NoError(t, err)

	_, err = f.chat.Complete(ctx, agentB, req.ID)
	require.ErrorIs(t, err, apperrors.ErrNotOwner)
	require.Equal(t, models.StatusInProgress, f.reload(t, req.ID).Status)

	done, err := f.chat.Complete(ctx, agentA, req.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, done.Status)

	status := f.notificationsFor(t, customer.UID, models.NotificationServiceRequestStatus)
	require.Len(t, status, 1)

	_, err = f.chat.Complete(ctx, agentB, req.ID)
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	_, err = f.chat.Complete(ctx, agentA, req.ID)
	require.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	require.Len(t, f.notificationsFor(t, customer.UID, models.NotificationServiceRequestStatus), 1)
}

func TestCompleteMissingRequest(t *testing.T) {
	f := newFixture(t)
	_, err := f.chat.Complete(context.Background(), agentA, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestVendorReplyAfterCompletionKeepsStatus(t *testing.T) {
	f := newFixture(t)
	f.approve(t, agentA.UID, vendorID)
	f.approve(t, agentB.UID, vendorID)
	req := f.submit(t, customer)
	ctx := context.Background()

	_, err := f.chat.SendAsVendor(ctx, agentA, req.ID, "Hello")
	require.NoError(t, err)
	_, err = f.chat.Complete(ctx, agentA, req.ID)
	require.NoError(t, err)

	res, err := f.chat.SendAsVendor(ctx, agentB, req.ID, "Follow-up note")
	require.NoError(t, err)
	require.Equal(t, lifecycle.OutcomeKeep, res.Ownership)

	stored := f.reload(t, req.ID)
	require.Equal(t, models.StatusCompleted, stored.Status)
	require.Equal(t, agentA.UID, stored.Owner())
	require.Equal(t, "Follow-up note", stored.LastMessage)
}

func TestVendorReplyBySubmittingCustomerIsRejected(t *testing.T) {
	f := newFixture(t)
	f.approve(t, customer.UID, vendorID)
	req := f.submit(t, customer)

	_, err := f.chat.SendAsVendor(context.Background(), customer, req.ID, "I own this now")
	require.ErrorIs(t, err, apperrors.ErrSelfOwnership)

	stored := f.reload(t, req.ID)
	require.Nil(t, stored.OwnerUID)
	require.Equal(t, models.StatusPending, stored.Status)
	require.Zero(t, f.messageCount(t, req.ID))
}

func TestSendAuthorization(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, customer)
	ctx := context.Background()

	_, err := f.chat.SendAsVendor(ctx, outsider, req.ID, "Hello")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.chat.SendAsCustomer(ctx, outsider, req.ID, "Hello")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.chat.SendAsCustomer(ctx, Actor{}, req.ID, "Hello")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = f.chat.ListMessages(ctx, outsider, req.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	require.Zero(t, f.messageCount(t, req.ID))
}

func TestSendRejectsBlankContent(t *testing.T) {
	f := newFixture(t)
	f.approve(t, agentA.UID, vendorID)
	req := f.submit(t, customer)

	_, err := f.chat.SendAsVendor(context.Background(), agentA, req.ID, "   ")
	require.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = f.chat.SendAsCustomer(context.Background(), customer, req.ID, "")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	stored := f.reload(t, req.ID)
	require.Equal(t, models.StatusPending, stored.Status)
	require.Zero(t, f.messageCount(t, req.ID))
}

func TestLongMessagePreviewIsTruncated(t *testing.T) {
	f := newFixture(t)
	req := f.submit(t, customer)
	long := ""
	for len(long) < 250 {
		long += "abcdefghij"
	}

	_, err := f.chat.SendAsCustomer(context.Background(), customer, req.ID, long)
	require.NoError(t, err)
	stored := f.reload(t, req.ID)
	require.Len(t, stored.LastMessage, lifecycle.PreviewLimit)

	msgs, err := f.chat.ListMessages(context.Background(), customer, req.ID)
	require.NoError(t, err)
	require.Equal(t, long, msgs[0].Content)
}

func TestConversationOrderIsPreserved(t *testing.T) {
	f := newFixture(t)
	f.approve(t, agentA.UID, vendorID)
	req := f.submit(t, customer)
	ctx := context.Background()

	_, err := f.chat.SendAsCustomer(ctx, customer, req.ID, "one")
	require.NoError(t, err)
	_, err = f.chat.SendAsVendor(ctx, agentA, req.ID, "two")
	require.NoError(t, err)
	_, err = f.chat.SendAsCustomer(ctx, customer, req.ID, "three")
	require.NoError(t, err)

	msgs, err := f.chat.ListMessages(ctx, agentA, req.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, want := range []string{"one", "two", "three"} {
		require.Equal(t, want, msgs[i].Content)
	}
}
