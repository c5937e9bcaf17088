package models

import (
	"time"

	"gorm.io/gorm"
)

// RequestMessage is one immutable entry of a service request conversation.
type RequestMessage struct {
	ID         string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	RequestID  string     `gorm:"type:varchar(64);not null;index:idx_request_messages_order,priority:1" json:"request_id"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	SenderType SenderType `gorm:"type:varchar(16);not null" json:"sender_type"`
	SenderName string     `gorm:"type:varchar(255)" json:"sender_name"`
	SenderUID  string     `gorm:"type:varchar(128);index" json:"sender_uid"`
	CreatedAt  time.Time  `gorm:"index:idx_request_messages_order,priority:2" json:"created_at"`
}

// BeforeCreate assigns a message id when the caller did not supply one.
func (m *RequestMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	return nil
}
