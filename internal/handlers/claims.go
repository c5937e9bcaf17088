package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/response"
)

// ClaimHandler exposes business claim submission and review.
type ClaimHandler struct {
	claims *services.ClaimService
}

// NewClaimHandler constructs a claim handler.
func NewClaimHandler(claims *services.ClaimService) *ClaimHandler {
	return &ClaimHandler{claims: claims}
}

type reviewClaimPayload struct {
	Note string `json:"note" validate:"max=2000"`
}

// Submit files a claim on a vendor listing for the caller.
func (h *ClaimHandler) Submit(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var payload services.SubmitClaimInput
	if !bindAndValidate(c, &payload) {
		return
	}
	claim, err := h.claims.Submit(requestContext(c), actor, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, claim)
}

// ListMine returns the caller's claims.
func (h *ClaimHandler) ListMine(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	claims, err := h.claims.ListForUser(requestContext(c), actor.UID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, claims, response.Page{})
}

// Approve approves a pending claim. Admin only.
func (h *ClaimHandler) Approve(c *gin.Context) {
	h.review(c, true)
}

// Reject rejects a pending claim. Admin only.
func (h *ClaimHandler) Reject(c *gin.Context) {
	h.review(c, false)
}

func (h *ClaimHandler) review(c *gin.Context, approve bool) {
	reviewer, ok := currentActor(c)
	if !ok {
		return
	}

	var payload reviewClaimPayload
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &payload) {
		return
	}

	review := h.claims.Reject
	if approve {
		review = h.claims.Approve
	}
	claim, err := review(requestContext(c), reviewer, c.Param("id"), payload.Note)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, claim)
}
