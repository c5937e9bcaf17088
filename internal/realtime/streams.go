package realtime

// Named realtime streams pushed to connected users.
const (
	StreamNotifications = "notifications"
	StreamRequests      = "requests"
	StreamUnread        = "unread"
	StreamChat          = "chat"
)

// Event names.
const (
	EventNotificationCreated = "notification.created"
	EventNotificationRead    = "notification.read"
	EventNotificationsRead   = "notification.read_all"
	EventRequestsSnapshot    = "requests.snapshot"
	EventUnreadSnapshot      = "unread.snapshot"
	EventChatSnapshot        = "chat.snapshot"
	EventError               = "error"
	EventPong                = "pong"
)
