package service

import (
	appErrors "github.com/twoem/portal-api/pkg/errors"

	"github.com/twoem/portal-api/internal/models"
)

// Authorize evaluates the caller against the artifact's visibility
// class. First matching rule wins; inactive artifacts answer NotFound
// so their existence cannot be probed. Only public artifacts admit
// anonymous callers; every other class requires a verified identity.
func Authorize(caller models.Caller, artifact *models.Artifact) error {
	if !artifact.IsActive {
		return appErrors.ErrNotFound
	}
	if artifact.Visibility == models.VisibilityPublic {
		return nil
	}
	if !caller.Authenticated {
		return appErrors.ErrUnauthorized
	}

	switch artifact.Visibility {
	case models.VisibilityPublic:
		return nil
	case models.VisibilityPrivate:
		if caller.Role == models.RoleAdmin {
			return nil
		}
		return appErrors.ErrForbidden
	case models.VisibilityTargeted:
		for _, id := range artifact.Targets {
			if id != "" && id == caller.StudentID {
				return nil
			}
		}
		return appErrors.ErrForbidden
	case models.VisibilityOwner:
		if artifact.UploadedBy == caller.UserID || artifact.IsPublic || caller.Role == models.RoleAdmin {
			return nil
		}
		return appErrors.ErrForbidden
	}

	// Unknown visibility never leaks the payload.
	return appErrors.ErrForbidden
}
