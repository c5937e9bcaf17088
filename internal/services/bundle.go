package services

import (
	"errors"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/realtime"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/repository"
)

// Bundle holds the wired service graph shared by the HTTP surface, the maintenance
// scheduler and the importer.
type Bundle struct {
	Store         *repository.Store
	Notifications *NotificationService
	Claims        *ClaimService
	Requests      *RequestService
	Chat          *ChatService
	Unread        *UnreadService
	Repair        *RepairService
	Audit         *AuditService
}

// BundleConfig toggles optional behaviour of the service graph.
type BundleConfig struct {
	NotificationsEnabled bool
	// RepairOnVendorList runs the ownership backfill whenever a vendor lists requests.
	RepairOnVendorList bool
}

// NewBundle wires every service over store. hub may be nil when no websocket surface
// is served.
func NewBundle(store *repository.Store, hub *realtime.Hub, cfg BundleConfig) (*Bundle, error) {
	if store == nil {
		return nil, errors.New("services: store is required")
	}

	b := &Bundle{Store: store}
	var err error
	if b.Notifications, err = NewNotificationService(store, hub, WithDispatchEnabled(cfg.NotificationsEnabled)); err != nil {
		return nil, err
	}
	if b.Claims, err = NewClaimService(store, b.Notifications); err != nil {
		return nil, err
	}
	if b.Repair, err = NewRepairService(store, b.Claims); err != nil {
		return nil, err
	}

	var requestOpts []RequestOption
	if cfg.RepairOnVendorList {
		requestOpts = append(requestOpts, WithOwnershipRepair(b.Repair))
	}
	if b.Requests, err = NewRequestService(store, b.Claims, b.Notifications, requestOpts...); err != nil {
		return nil, err
	}
	if b.Chat, err = NewChatService(store, b.Claims, b.Notifications); err != nil {
		return nil, err
	}
	if b.Unread, err = NewUnreadService(store, b.Claims, b.Notifications); err != nil {
		return nil, err
	}
	if b.Audit, err = NewAuditService(store.DB()); err != nil {
		return nil, err
	}
	return b, nil
}
