package session

import (
	"time"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/repository"
)

// View is the render state of a controller.
type View struct {
	RequestID   string                 `json:"request_id"`
	Role        Role                   `json:"role"`
	Request     *models.ServiceRequest `json:"request,omitempty"`
	Status      models.RequestStatus   `json:"status,omitempty"`
	StatusLabel string                 `json:"status_label,omitempty"`
	CanSend     bool                   `json:"can_send"`
	CanComplete bool                   `json:"can_complete"`
	Groups      []DayView              `json:"groups"`
	Draft       string                 `json:"draft"`
	Error       string                 `json:"error,omitempty"`
	Loading     bool                   `json:"loading"`
}

// DayView is a run of messages from one calendar day.
type DayView struct {
	Date     string        `json:"date"`
	Label    string        `json:"label"`
	Messages []MessageView `json:"messages"`
}

// MessageView is one rendered message.
type MessageView struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	SenderType models.SenderType `json:"sender_type"`
	SenderName string            `json:"sender_name"`
	Mine       bool              `json:"mine"`
	Time       string            `json:"time"`
	CreatedAt  time.Time         `json:"created_at"`
}

// MessageCount returns the number of messages across all groups.
func (v View) MessageCount() int {
	n := 0
	for _, group := range v.Groups {
		n += len(group.Messages)
	}
	return n
}

// GroupMessages renders messages as calendar-day runs in loc, marking those sent by viewerUID.
func GroupMessages(messages []models.RequestMessage, viewerUID string, loc *time.Location, now time.Time) []DayView {
	if loc == nil {
		loc = time.UTC
	}
	groups := repository.GroupByDate(messages, loc)
	out := make([]DayView, 0, len(groups))
	for _, group := range groups {
		day := DayView{
			Date:     group.Date,
			Label:    DayLabel(group.Day, now.In(loc)),
			Messages: make([]MessageView, 0, len(group.Messages)),
		}
		for _, msg := range group.Messages {
			day.Messages = append(day.Messages, MessageView{
				ID:         msg.ID,
				Content:    msg.Content,
				SenderType: msg.SenderType,
				SenderName: msg.SenderName,
				Mine:       viewerUID != "" && msg.SenderUID == viewerUID,
				Time:       FormatTime(msg.CreatedAt, loc),
				CreatedAt:  msg.CreatedAt,
			})
		}
		out = append(out, day)
	}
	return out
}

// DayLabel renders a calendar day relative to now.
func DayLabel(day, now time.Time) string {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	case day.Year() == today.Year():
		return day.Format("Jan 2")
	default:
		return day.Format("Jan 2, 2006")
	}
}

// FormatTime renders a message timestamp as wall-clock time in loc.
func FormatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("15:04")
}
