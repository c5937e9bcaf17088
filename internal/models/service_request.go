package models

import (
	"strings"
	"time"
)

// RequestStatus is the lifecycle state of a service request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusInProgress RequestStatus = "inProgress"
	StatusCompleted  RequestStatus = "completed"
)

// rank orders statuses along the only permitted direction of travel.
func (s RequestStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	return s.rank() >= 0
}

// Before reports whether s strictly precedes other in the lifecycle.
func (s RequestStatus) Before(other RequestStatus) bool {
	return s.Valid() && other.Valid() && s.rank() < other.rank()
}

// Label returns the display label used by list views.
func (s RequestStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In progress"
	case StatusCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// SenderType identifies which side of the conversation authored a message.
type SenderType string

const (
	SenderUser   SenderType = "user"
	SenderVendor SenderType = "vendor"
)

// Contact methods and urgency levels accepted on submission.
const (
	ContactEmail = "email"
	ContactPhone = "phone"

	UrgencyLow    = "low"
	UrgencyNormal = "normal"
	UrgencyHigh   = "high"
)

// ServiceRequest is a customer-initiated request addressed to one vendor.
type ServiceRequest struct {
	BaseModel

	VendorID   string `gorm:"type:varchar(128);not null;index" json:"vendor_id"`
	VendorName string `gorm:"type:varchar(255)" json:"vendor_name"`

	UserID       string `gorm:"type:varchar(128);not null;index" json:"user_id"`
	UserEmail    string `gorm:"type:varchar(255)" json:"user_email"`
	UserFullName string `gorm:"type:varchar(255)" json:"user_full_name"`
	UserPhone    string `gorm:"type:varchar(64)" json:"user_phone"`

	RequestTitle           string `gorm:"type:varchar(255);not null" json:"request_title"`
	RequestDetails         string `gorm:"type:text" json:"request_details"`
	PreferredContactMethod string `gorm:"type:varchar(16);default:'email'" json:"preferred_contact_method"`
	Urgency                string `gorm:"type:varchar(16);default:'normal'" json:"urgency"`

	Status   RequestStatus `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	OwnerUID *string       `gorm:"type:varchar(128);index" json:"owner_uid"`

	LastMessage       string     `gorm:"type:varchar(255)" json:"last_message"`
	LastMessageSender SenderType `gorm:"type:varchar(16)" json:"last_message_sender"`
	ResponseDate      *time.Time `json:"response_date"`

	IsArchived bool `gorm:"default:false" json:"is_archived"`
}

// Owner returns the owning vendor agent uid or "" when unassigned.
func (r *ServiceRequest) Owner() string {
	if r == nil || r.OwnerUID == nil {
		return ""
	}
	return strings.TrimSpace(*r.OwnerUID)
}

// SelfOwned reports the corrupt state where the requesting customer is recorded as owner.
func (r *ServiceRequest) SelfOwned() bool {
	owner := r.Owner()
	return owner != "" && owner == strings.TrimSpace(r.UserID)
}

// Counterpart returns the sender type on the other side of the conversation.
func (t SenderType) Counterpart() SenderType {
	if t == SenderVendor {
		return SenderUser
	}
	return SenderVendor
}
