package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/services"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/response"
)

// RepairHandler triggers ownership maintenance.
type RepairHandler struct {
	repair *services.RepairService
	claims *services.ClaimService
}

// NewRepairHandler constructs a repair handler.
func NewRepairHandler(repair *services.RepairService, claims *services.ClaimService) *RepairHandler {
	return &RepairHandler{repair: repair, claims: claims}
}

type backfillPayload struct {
	VendorIDs []string `json:"vendor_ids" validate:"omitempty,dive,max=128"`
}

// BackfillOwnership assigns the caller as owner of ownerless in-progress or completed
// requests. Without vendor_ids every vendor the caller represents is repaired.
func (h *RepairHandler) BackfillOwnership(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var payload backfillPayload
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &payload) {
		return
	}

	ctx := requestContext(c)
	vendorIDs := payload.VendorIDs
	if len(vendorIDs) == 0 {
		ids, err := h.claims.ApprovedVendorIDs(ctx, actor.UID)
		if err != nil {
			response.Error(c, err)
			return
		}
		vendorIDs = ids
	}

	result, err := h.repair.BackfillOwnership(ctx, actor, vendorIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// ScanIntegrity clears self-owned requests. Admin only.
func (h *RepairHandler) ScanIntegrity(c *gin.Context) {
	if _, ok := currentActor(c); !ok {
		return
	}
	issues, err := h.repair.ScanIntegrity(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"repaired": len(issues), "issues": issues})
}
