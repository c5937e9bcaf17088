package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/auditctx"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
)

func TestAuditServiceLogAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.audit.Log(ctx, AuditEntry{
		ActorUID: admin.UID,
		Action:   AuditClaimApproved,
		Resource: "business_claim:1",
		Result:   "success",
		Metadata: map[string]any{"vendor_id": vendorID},
	}))
	require.Error(t, f.audit.Log(ctx, AuditEntry{Result: "success"}))

	logs, err := f.audit.List(ctx, AuditFilters{ActorUID: admin.UID}, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, vendorID, decodeMetadata(logs[0].Metadata)["vendor_id"])
}

func TestAuditServiceRecordsRequestOrigin(t *testing.T) {
	f := newFixture(t)
	ctx := auditctx.WithOrigin(context.Background(), auditctx.Origin{UserID: agentA.UID, IPAddress: "10.1.2.3"})

	require.NoError(t, f.audit.Log(ctx, AuditEntry{Action: AuditOwnershipBackfill, Result: "success"}))

	logs, err := f.audit.List(ctx, AuditFilters{Action: AuditOwnershipBackfill}, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, agentA.UID, logs[0].ActorUID)
	require.Equal(t, "10.1.2.3", decodeMetadata(logs[0].Metadata)["ip"])
}

func TestAuditServiceCleanupOlderThan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := models.AuditLog{Action: "old", Result: "success", CreatedAt: time.Now().UTC().AddDate(0, 0, -120)}
	fresh := models.AuditLog{Action: "fresh", Result: "success", CreatedAt: time.Now().UTC()}
	require.NoError(t, f.db.Create(&old).Error)
	require.NoError(t, f.db.Create(&fresh).Error)

	removed, err := f.audit.CleanupOlderThan(ctx, 90)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	_, err = f.audit.CleanupOlderThan(ctx, 0)
	require.Error(t, err)
}
