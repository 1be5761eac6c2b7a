package middleware

import (
	"context"

	"github.com/collabhub/collabhub/internal/models"
)

// ProjectAccess describes the caller's relationship to one project.
type ProjectAccess struct {
	IsAdmin   bool // Admin override
	IsCreator bool // Author of the project's idea
	IsMember  bool
}

// GetProjectAccess derives the access rules for the authenticated caller.
func GetProjectAccess(ctx context.Context, project *models.Project) *ProjectAccess {
	userID := GetUserID(ctx)
	if project == nil || userID == "" {
		return &ProjectAccess{}
	}
	return &ProjectAccess{
		IsAdmin:   GetRole(ctx) == models.RoleAdmin,
		IsCreator: project.CreatorID == userID,
		IsMember:  project.HasMember(userID),
	}
}

// CanManage reports whether the caller may change the project's status.
func (pa *ProjectAccess) CanManage() bool {
	return pa.IsAdmin || pa.IsCreator
}

// ErrProjectAccessDenied is returned when the caller may not manage a project.
var ErrProjectAccessDenied = &AccessDeniedError{Message: "only the project creator or an admin can change its status"}

// AccessDeniedError represents an access denied error.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string {
	return e.Message
}
