// Package lifecycle holds the ownership and status rules of a service request. The rules
// are pure: callers load the current document, ask for a decision and apply it with a
// guarded write so concurrent replies cannot both win.
package lifecycle

import (
	"strings"
	"unicode/utf8"

	"github.com/seewalk/verslo-daigynas-directory-sub001/internal/models"
	apperrors "github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
)

// PreviewLimit caps the list preview of the latest message, in characters.
const PreviewLimit = 100

// Outcome labels what a vendor reply does to ownership.
type Outcome string

const (
	// OutcomeAssign makes the replying agent the owner and moves the request in progress.
	OutcomeAssign Outcome = "assigned"
	// OutcomeKeep appends the reply without touching ownership or status.
	OutcomeKeep Outcome = "kept"
)

// VendorReply decides the ownership outcome of a vendor agent replying to req.
// The first agent to reply to an unowned, open request takes ownership; every later
// reply leaves status and owner unchanged. The customer may never own their own request.
func VendorReply(req *models.ServiceRequest, agentUID string) (Outcome, error) {
	if req == nil {
		return "", apperrors.ErrNotFound
	}
	agentUID = strings.TrimSpace(agentUID)
	if agentUID == "" {
		return "", apperrors.ErrUnauthorized
	}
	if agentUID == strings.TrimSpace(req.UserID) {
		return "", apperrors.ErrSelfOwnership
	}
	if req.Owner() != "" || req.Status == models.StatusCompleted {
		return OutcomeKeep, nil
	}
	return OutcomeAssign, nil
}

// Complete checks that agentUID may mark req completed.
func Complete(req *models.ServiceRequest, agentUID string) error {
	if req == nil {
		return apperrors.ErrNotFound
	}
	agentUID = strings.TrimSpace(agentUID)
	owner := req.Owner()
	if owner == "" || owner != agentUID {
		if req.Status == models.StatusCompleted {
			return apperrors.ErrInvalidTransition.WithMessage("Service request is already completed")
		}
		return apperrors.ErrNotOwner
	}
	if req.Status != models.StatusInProgress {
		if req.Status == models.StatusCompleted {
			return apperrors.ErrInvalidTransition.WithMessage("Service request is already completed")
		}
		return apperrors.ErrInvalidTransition
	}
	return nil
}

// CanComplete reports whether the "mark completed" action should be offered to agentUID.
func CanComplete(req *models.ServiceRequest, agentUID string) bool {
	return Complete(req, agentUID) == nil
}

// Preview truncates content to PreviewLimit characters for the request list.
func Preview(content string) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= PreviewLimit {
		return content
	}
	runes := []rune(content)
	return string(runes[:PreviewLimit])
}
