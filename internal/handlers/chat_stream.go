package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/realtime"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/session"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/logger"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/response"
)

const chatActionTimeout = 10 * time.Second

// ChatStreamHandler serves one chat session controller per websocket.
type ChatStreamHandler struct {
	chat   *services.ChatService
	unread *services.UnreadService
	log    *zap.Logger
}

// NewChatStreamHandler constructs a chat stream handler.
func NewChatStreamHandler(chat *services.ChatService, unread *services.UnreadService) *ChatStreamHandler {
	return &ChatStreamHandler{chat: chat, unread: unread, log: logger.WithModule("chat-stream")}
}

// chatAction is a client command on the chat socket.
type chatAction struct {
	Action    string `json:"action"`
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
}

// Stream upgrades to a websocket bound to a session controller for the caller in the
// role given by the role query parameter. The socket starts on the request in the path
// and accepts {"action":"open"|"send"|"complete"|"draft"|"ping"} commands. Every view
// change is pushed as a chat.snapshot event.
func (h *ChatStreamHandler) Stream(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	role, err := session.ParseRole(c.DefaultQuery("role", string(session.RoleCustomer)))
	if err != nil {
		response.Error(c, err)
		return
	}
	loc, err := queryLocation(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	socket, err := realtime.Upgrade(c.Writer, c.Request, actor.UID, h.log)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	opts := []session.Option{
		session.WithLocation(loc),
		session.OnChange(func(view session.View) {
			socket.Send(realtime.Message{Stream: realtime.StreamChat, Event: realtime.EventChatSnapshot, Data: view})
		}),
	}
	if h.unread != nil {
		opts = append(opts, session.WithReadMarker(h.unread))
	}
	controller := session.New(role, actor, h.chat, opts...)
	defer controller.Close()

	if err := controller.Open(c.Param("id")); err != nil {
		sendChatError(socket, err)
	}

	socket.ReadLoop(func(payload []byte) {
		var action chatAction
		if err := json.Unmarshal(payload, &action); err != nil {
			sendChatError(socket, errors.NewBadRequest("invalid action payload"))
			return
		}
		if err := h.dispatch(controller, socket, action); err != nil {
			sendChatError(socket, err)
		}
	})
}

func (h *ChatStreamHandler) dispatch(controller *session.Controller, socket *realtime.Socket, action chatAction) error {
	ctx, cancel := context.WithTimeout(context.Background(), chatActionTimeout)
	defer cancel()

	switch strings.ToLower(strings.TrimSpace(action.Action)) {
	case "open":
		return controller.Open(action.RequestID)
	case "send":
		return controller.Send(ctx, action.Text)
	case "complete":
		return controller.Complete(ctx)
	case "draft":
		controller.SetDraft(action.Text)
		return nil
	case "ping":
		socket.Send(realtime.Message{Stream: realtime.StreamChat, Event: realtime.EventPong})
		return nil
	default:
		return errors.NewBadRequest("unknown action " + action.Action)
	}
}

func sendChatError(socket *realtime.Socket, err error) {
	sendStreamError(socket, realtime.StreamChat, err)
}
