package services

import (
	"strings"

	apperrors "github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UID         string
	Email       string
	DisplayName string
	Admin       bool
}

// Name returns the best available display name.
func (a Actor) Name() string {
	return firstNonEmpty(a.DisplayName, a.Email, a.UID)
}

func (a Actor) validate() error {
	if strings.TrimSpace(a.UID) == "" {
		return apperrors.ErrUnauthorized
	}
	return nil
}
