package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/response"
)

// UnreadHandler reports unread counts for the caller.
type UnreadHandler struct {
	unread *services.UnreadService
}

// NewUnreadHandler constructs an unread handler.
func NewUnreadHandler(unread *services.UnreadService) *UnreadHandler {
	return &UnreadHandler{unread: unread}
}

// Summary returns unread requests, messages and notifications for ?role=customer|vendor.
func (h *UnreadHandler) Summary(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	role, err := services.ParseViewerRole(c.Query("role"))
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.unread.Summary(requestContext(c), actor, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}
