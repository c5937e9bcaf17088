package importer

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
)

// Legacy collection names.
const (
	CollectionRequests      = "serviceRequests"
	CollectionMessages      = "messages"
	CollectionNotifications = "notifications"
	CollectionClaims        = "businessClaims"
)

// RequestDoc is a serviceRequests document.
type RequestDoc struct {
	ID                     string     `firestore:"-"`
	VendorID               string     `firestore:"vendorId"`
	VendorName             string     `firestore:"vendorName"`
	UserID                 string     `firestore:"userId"`
	UserEmail              string     `firestore:"userEmail"`
	UserFullName           string     `firestore:"userFullName"`
	UserPhone              string     `firestore:"userPhone"`
	RequestTitle           string     `firestore:"requestTitle"`
	RequestDetails         string     `firestore:"requestDetails"`
	PreferredContactMethod string     `firestore:"preferredContactMethod"`
	Urgency                string     `firestore:"urgency"`
	Status                 string     `firestore:"status"`
	OwnerUID               *string    `firestore:"ownerUid"`
	LastMessage            string     `firestore:"lastMessage"`
	LastMessageSender      string     `firestore:"lastMessageSender"`
	ResponseDate           *time.Time `firestore:"responseDate"`
	IsArchived             bool       `firestore:"isArchived"`
	CreatedAt              time.Time  `firestore:"createdAt"`
	UpdatedAt              time.Time  `firestore:"updatedAt"`
}

// MessageDoc is a serviceRequests/{id}/messages document.
type MessageDoc struct {
	ID         string    `firestore:"-"`
	RequestID  string    `firestore:"-"`
	Content    string    `firestore:"content"`
	SenderType string    `firestore:"senderType"`
	SenderName string    `firestore:"senderName"`
	SenderUID  string    `firestore:"senderId"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

// NotificationDoc is a notifications document.
type NotificationDoc struct {
	ID        string         `firestore:"-"`
	UserID    string         `firestore:"userId"`
	Type      string         `firestore:"type"`
	Title     string         `firestore:"title"`
	Message   string         `firestore:"message"`
	RequestID string         `firestore:"requestId"`
	Read      bool           `firestore:"read"`
	Metadata  map[string]any `firestore:"metadata"`
	CreatedAt time.Time      `firestore:"createdAt"`
}

// ClaimDoc is a businessClaims document.
type ClaimDoc struct {
	ID         string     `firestore:"-"`
	UserID     string     `firestore:"userId"`
	VendorID   string     `firestore:"vendorId"`
	VendorName string     `firestore:"vendorName"`
	Status     string     `firestore:"status"`
	Note       string     `firestore:"note"`
	ReviewedBy *string    `firestore:"reviewedBy"`
	ReviewedAt *time.Time `firestore:"reviewedAt"`
	CreatedAt  time.Time  `firestore:"createdAt"`
	UpdatedAt  time.Time  `firestore:"updatedAt"`
}

func (d RequestDoc) toModel(now time.Time) (models.ServiceRequest, bool) {
	status := models.RequestStatus(strings.TrimSpace(d.Status))
	if status == "" {
		status = models.StatusPending
	}
	if d.ID == "" || d.VendorID == "" || d.UserID == "" || !status.Valid() {
		return models.ServiceRequest{}, false
	}

	var owner *string
	if d.OwnerUID != nil && strings.TrimSpace(*d.OwnerUID) != "" {
		value := strings.TrimSpace(*d.OwnerUID)
		owner = &value
	}
	created := orNow(d.CreatedAt, now)
	updated := orNow(d.UpdatedAt, created)

	return models.ServiceRequest{
		BaseModel:              models.BaseModel{ID: d.ID, CreatedAt: created, UpdatedAt: updated},
		VendorID:               d.VendorID,
		VendorName:             d.VendorName,
		UserID:                 d.UserID,
		UserEmail:              d.UserEmail,
		UserFullName:           d.UserFullName,
		UserPhone:              d.UserPhone,
		RequestTitle:           d.RequestTitle,
		RequestDetails:         d.RequestDetails,
		PreferredContactMethod: defaultString(d.PreferredContactMethod, models.ContactEmail),
		Urgency:                defaultString(d.Urgency, models.UrgencyNormal),
		Status:                 status,
		OwnerUID:               owner,
		LastMessage:            d.LastMessage,
		LastMessageSender:      models.SenderType(d.LastMessageSender),
		ResponseDate:           utcPtr(d.ResponseDate),
		IsArchived:             d.IsArchived,
	}, true
}

func (d MessageDoc) toModel(now time.Time) (models.RequestMessage, bool) {
	sender := models.SenderType(strings.TrimSpace(d.SenderType))
	if d.ID == "" || d.RequestID == "" || (sender != models.SenderUser && sender != models.SenderVendor) {
		return models.RequestMessage{}, false
	}
	return models.RequestMessage{
		ID:         d.ID,
		RequestID:  d.RequestID,
		Content:    d.Content,
		SenderType: sender,
		SenderName: d.SenderName,
		SenderUID:  d.SenderUID,
		CreatedAt:  orNow(d.CreatedAt, now),
	}, true
}

func (d NotificationDoc) toModel(now time.Time) (models.Notification, bool) {
	if d.ID == "" || d.UserID == "" {
		return models.Notification{}, false
	}
	created := orNow(d.CreatedAt, now)
	n := models.Notification{
		BaseModel: models.BaseModel{ID: d.ID, CreatedAt: created, UpdatedAt: created},
		UserID:    d.UserID,
		Type:      d.Type,
		Title:     d.Title,
		Message:   d.Message,
		Read:      d.Read,
	}
	if id := strings.TrimSpace(d.RequestID); id != "" {
		n.RequestID = &id
	}
	if len(d.Metadata) > 0 {
		if raw, err := json.Marshal(d.Metadata); err == nil {
			n.Metadata = datatypes.JSON(raw)
		}
	}
	return n, true
}

func (d ClaimDoc) toModel(now time.Time) (models.BusinessClaim, bool) {
	status := models.ClaimStatus(strings.TrimSpace(d.Status))
	switch status {
	case "":
		status = models.ClaimPending
	case models.ClaimPending, models.ClaimApproved, models.ClaimRejected:
	default:
		return models.BusinessClaim{}, false
	}
	if d.ID == "" || d.UserID == "" || d.VendorID == "" {
		return models.BusinessClaim{}, false
	}
	created := orNow(d.CreatedAt, now)
	return models.BusinessClaim{
		BaseModel:  models.BaseModel{ID: d.ID, CreatedAt: created, UpdatedAt: orNow(d.UpdatedAt, created)},
		UserID:     d.UserID,
		VendorID:   d.VendorID,
		VendorName: d.VendorName,
		Status:     status,
		Note:       d.Note,
		ReviewedBy: d.ReviewedBy,
		ReviewedAt: utcPtr(d.ReviewedAt),
	}, true
}

func orNow(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	value := t.UTC()
	return &value
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
