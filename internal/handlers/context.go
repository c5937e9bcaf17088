package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/middleware"
	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentActor maps the authenticated identity onto a service actor. It writes a 401
// and returns false when the request carries no identity.
func currentActor(c *gin.Context) (services.Actor, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok || identity.UID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return services.Actor{}, false
	}
	return services.Actor{
		UID:         identity.UID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Admin:       identity.Admin,
	}, true
}
