package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/response"
)

// AuditHandler lists audit log entries to administrators.
type AuditHandler struct {
	audit *services.AuditService
}

// NewAuditHandler constructs an audit handler.
func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List returns audit entries filtered by actor, action, resource and since (RFC 3339).
func (h *AuditHandler) List(c *gin.Context) {
	filters := services.AuditFilters{
		ActorUID: strings.TrimSpace(c.Query("actor")),
		Action:   strings.TrimSpace(c.Query("action")),
		Resource: strings.TrimSpace(c.Query("resource")),
	}
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, errors.NewValidation("since must be an RFC 3339 timestamp"))
			return
		}
		filters.Since = &since
	}

	page := response.Page{Limit: parseIntQuery(c, "limit", 50)}
	logs, err := h.audit.List(requestContext(c), filters, page.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, logs, page)
}
