package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/session"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/response"
)

// RequestHandler exposes service requests and their conversations over HTTP.
type RequestHandler struct {
	requests *services.RequestService
	chat     *services.ChatService
	unread   *services.UnreadService
}

// NewRequestHandler constructs a request handler.
func NewRequestHandler(requests *services.RequestService, chat *services.ChatService, unread *services.UnreadService) *RequestHandler {
	return &RequestHandler{requests: requests, chat: chat, unread: unread}
}

type sendMessagePayload struct {
	Content string `json:"content" validate:"required,notblank,nocontrol,max=5000"`
	Role    string `json:"role" validate:"omitempty,oneof=customer vendor"`
}

type messageGroupsResponse struct {
	Messages []models.RequestMessage `json:"messages"`
	Groups   []session.DayView       `json:"groups"`
}

// Create submits a new service request as the caller.
func (h *RequestHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var payload services.CreateRequestInput
	if !bindAndValidate(c, &payload) {
		return
	}

	req, err := h.requests.Create(requestContext(c), actor, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, req)
}

// ListMine returns the caller's own requests, newest activity first.
func (h *RequestHandler) ListMine(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	items, err := h.requests.ListForCustomer(requestContext(c), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, response.Page{})
}

// ListVendor returns requests addressed to vendors the caller represents.
func (h *RequestHandler) ListVendor(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	items, err := h.requests.ListForVendorUser(requestContext(c), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, response.Page{})
}

// Get returns one request to a participant.
func (h *RequestHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	req, err := h.requests.Get(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, req)
}

// Messages returns the conversation in order together with its calendar-day grouping.
// The optional tz query parameter selects the grouping time zone.
func (h *RequestHandler) Messages(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	loc, err := queryLocation(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	msgs, err := h.chat.ListMessages(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	groups := session.GroupMessages(msgs, actor.UID, loc, time.Now())
	response.Success(c, http.StatusOK, messageGroupsResponse{Messages: msgs, Groups: groups})
}

// SendMessage appends a message as customer or vendor. Without an explicit role the
// request's own customer sends as customer and everyone else as vendor.
func (h *RequestHandler) SendMessage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var payload sendMessagePayload
	if !bindAndValidate(c, &payload) {
		return
	}

	ctx := requestContext(c)
	requestID := c.Param("id")

	role := strings.TrimSpace(payload.Role)
	if role == "" {
		req, err := h.requests.Get(ctx, actor, requestID)
		if err != nil {
			response.Error(c, err)
			return
		}
		role = string(session.RoleVendor)
		if req.UserID == actor.UID {
			role = string(session.RoleCustomer)
		}
	}

	var (
		result *services.SendResult
		err    error
	)
	if role == string(session.RoleVendor) {
		result, err = h.chat.SendAsVendor(ctx, actor, requestID, payload.Content)
	} else {
		result, err = h.chat.SendAsCustomer(ctx, actor, requestID, payload.Content)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

// Complete marks the request completed. Only the owning vendor agent may do so.
func (h *RequestHandler) Complete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	req, err := h.chat.Complete(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, req)
}

// MarkViewed records that the caller has seen the conversation.
func (h *RequestHandler) MarkViewed(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.unread.MarkViewed(requestContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"viewed": true})
}

func queryLocation(c *gin.Context) (*time.Location, error) {
	name := strings.TrimSpace(c.Query("tz"))
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.NewValidation("unknown time zone " + name)
	}
	return loc, nil
}
