package models

import "time"

// RequestReadState records when a viewer last looked at a request conversation.
type RequestReadState struct {
	RequestID  string    `gorm:"primaryKey;type:varchar(64)" json:"request_id"`
	ViewerUID  string    `gorm:"primaryKey;type:varchar(128)" json:"viewer_uid"`
	LastReadAt time.Time `gorm:"not null" json:"last_read_at"`
}
