package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/realtime"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/repository"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for notifications and the per-user inbox
// stream.
type NotificationHandler struct {
	service  *services.NotificationService
	requests *services.RequestService
	unread   *services.UnreadService
	hub      *realtime.Hub
	log      *zap.Logger
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *services.NotificationService, requests *services.RequestService, unread *services.UnreadService, hub *realtime.Hub) *NotificationHandler {
	return &NotificationHandler{
		service:  service,
		requests: requests,
		unread:   unread,
		hub:      hub,
		log:      logger.WithModule("inbox-stream"),
	}
}

// List returns notifications for the current user, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	page := response.Page{Limit: parseIntQuery(c, "limit", 25), Offset: parseIntQuery(c, "offset", 0)}
	items, err := h.service.ListForUser(requestContext(c), services.ListNotificationsInput{
		UserID:     actor.UID,
		Limit:      page.Limit,
		Offset:     page.Offset,
		UnreadOnly: strings.EqualFold(c.Query("unread"), "true"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, page)
}

// MarkRead flags one notification as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	dto, err := h.service.MarkRead(requestContext(c), actor.UID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// MarkAllRead marks all notifications read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	updated, err := h.service.MarkAllRead(requestContext(c), actor.UID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// Stream upgrades the connection to a websocket carrying the notifications stream.
// With role=customer|vendor the socket also receives live request-list and unread
// snapshots for that role.
func (h *NotificationHandler) Stream(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	var role services.ViewerRole
	if raw := strings.TrimSpace(c.Query("role")); raw != "" {
		parsed, err := services.ParseViewerRole(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		role = parsed
	}

	socket, err := realtime.Upgrade(c.Writer, c.Request, actor.UID, h.log)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	h.hub.Attach(socket, realtime.StreamNotifications)

	if role != "" {
		ctx := requestContext(c)
		var (
			requestsFeed *repository.Feed[[]models.ServiceRequest]
			ferr         error
		)
		if role == services.RoleVendor {
			requestsFeed, ferr = h.requests.WatchForVendorUser(ctx, actor)
		} else {
			requestsFeed, ferr = h.requests.WatchForCustomer(ctx, actor)
		}
		if ferr == nil {
			go pumpFeed(socket, requestsFeed, realtime.StreamRequests, realtime.EventRequestsSnapshot)
			defer requestsFeed.Close()
		} else {
			sendStreamError(socket, realtime.StreamRequests, ferr)
		}

		if unreadFeed, uerr := h.unread.Watch(ctx, actor, role); uerr == nil {
			go pumpFeed(socket, unreadFeed, realtime.StreamUnread, realtime.EventUnreadSnapshot)
			defer unreadFeed.Close()
		} else {
			sendStreamError(socket, realtime.StreamUnread, uerr)
		}
	}

	socket.ReadLoop(func(payload []byte) {
		h.hub.HandleControl(socket, payload)
	})
}

// pumpFeed forwards feed snapshots to socket until the feed closes.
func pumpFeed[T any](socket *realtime.Socket, feed *repository.Feed[T], stream, event string) {
	for snap := range feed.C {
		if snap.Err != nil {
			sendStreamError(socket, stream, snap.Err)
			continue
		}
		if !socket.Send(realtime.Message{Stream: stream, Event: event, Data: snap.Value}) {
			return
		}
	}
}

func sendStreamError(socket *realtime.Socket, stream string, err error) {
	appErr := errors.FromError(err)
	socket.Send(realtime.Message{
		Stream: stream,
		Event:  realtime.EventError,
		Data:   gin.H{"code": appErr.Code, "message": appErr.Message},
	})
}
