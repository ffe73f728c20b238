package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskboard/backend/internal/access"
	"github.com/taskboard/backend/internal/models"
	"github.com/taskboard/backend/pkg/response"
)

const (
	// ContextProjectID is the key for the guarded project ID in gin context.
	ContextProjectID = "project_id"
	// ContextProjectRole is the key for the caller's role in the guarded project.
	ContextProjectRole = "project_role"
)

// RequireProject returns a middleware that runs the access guard for op against the project in
// the :id route parameter. Call after JWT.
func RequireProject(guard *access.Guard, op access.Operation, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid project id")
			c.Abort()
			return
		}
		userID, _ := c.Get(ContextUserID)
		actorID, _ := userID.(uuid.UUID)

		role, err := guard.Check(c.Request.Context(), op, actorID, projectID)
		if err != nil {
			switch {
			case errors.Is(err, access.ErrBadRequest):
				response.BadRequest(c, "Invalid request")
			case errors.Is(err, access.ErrNotMember):
				response.Forbidden(c, "You are not a member of this project")
			case errors.Is(err, access.ErrInsufficientRole):
				response.Forbidden(c, "You do not have permission to perform this action")
			default:
				logger.Error("project access check failed", zap.String("operation", string(op)), zap.Error(err))
				response.Internal(c, "failed to check project access")
			}
			c.Abort()
			return
		}
		c.Set(ContextProjectID, projectID)
		c.Set(ContextProjectRole, role)
		c.Next()
	}
}

// ProjectID returns the project ID stored by RequireProject.
func ProjectID(c *gin.Context) uuid.UUID {
	v, _ := c.Get(ContextProjectID)
	id, _ := v.(uuid.UUID)
	return id
}

// UserID returns the authenticated user's ID stored by JWT.
func UserID(c *gin.Context) uuid.UUID {
	v, _ := c.Get(ContextUserID)
	id, _ := v.(uuid.UUID)
	return id
}

// ProjectRole returns the caller's role stored by RequireProject.
func ProjectRole(c *gin.Context) models.ProjectRole {
	v, _ := c.Get(ContextProjectRole)
	role, _ := v.(models.ProjectRole)
	return role
}
