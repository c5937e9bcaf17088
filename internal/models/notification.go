package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types emitted by the messaging core.
const (
	NotificationServiceRequest        = "service_request"
	NotificationServiceRequestMessage = "service_request_message"
	NotificationServiceRequestStatus  = "service_request_status"
	NotificationBusinessClaimStatus   = "business_claim_status"
)

// Notification represents an in-app notification addressed to one user.
type Notification struct {
	BaseModel

	UserID    string         `gorm:"type:varchar(128);not null;index" json:"user_id"`
	Type      string         `gorm:"type:varchar(64);not null" json:"type"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Message   string         `gorm:"type:text" json:"message"`
	RequestID *string        `gorm:"type:varchar(64);index" json:"request_id"`
	Metadata  datatypes.JSON `json:"metadata"`

	Read   bool       `gorm:"column:is_read;default:false;index" json:"read"`
	ReadAt *time.Time `json:"read_at"`
}
