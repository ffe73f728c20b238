package projects

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskboard/backend/internal/middleware"
	"github.com/taskboard/backend/internal/models"
	"github.com/taskboard/backend/pkg/response"
)

// CreateRequest is the body for POST /projects.
type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// UpdateRequest is the body for PATCH /projects/:id.
type UpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// AddMemberRequest is the optional body for POST /projects/:id/members/:userId.
type AddMemberRequest struct {
	Role models.ProjectRole `json:"role"`
}

// UpdateRoleRequest is the body for PATCH /projects/:id/roles/:userId.
type UpdateRoleRequest struct {
	Role models.ProjectRole `json:"role" binding:"required"`
}

// Handler handles project and membership HTTP endpoints. Routes below /projects/:id are expected
// to run behind middleware.RequireProject.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a projects handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /projects.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.svc.Create(c.Request.Context(), middleware.UserID(c), req.Name, req.Description)
	if err != nil {
		h.fail(c, "create project", err)
		return
	}
	response.Created(c, p)
}

// ListMine handles GET /projects.
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.svc.ListMine(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, "list projects", err)
		return
	}
	if list == nil {
		list = []*models.Project{}
	}
	response.OK(c, list)
}

// Get handles GET /projects/:id.
func (h *Handler) Get(c *gin.Context) {
	v, err := h.svc.View(c.Request.Context(), middleware.ProjectID(c))
	if err != nil {
		h.fail(c, "get project", err)
		return
	}
	response.OK(c, v)
}

// Update handles PATCH /projects/:id.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.svc.Update(c.Request.Context(), middleware.ProjectID(c), req.Name, req.Description)
	if err != nil {
		h.fail(c, "update project", err)
		return
	}
	response.OK(c, p)
}

// Delete handles DELETE /projects/:id.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.ProjectID(c)); err != nil {
		h.fail(c, "delete project", err)
		return
	}
	response.NoContent(c)
}

// ListMembers handles GET /projects/:id/members.
func (h *Handler) ListMembers(c *gin.Context) {
	list, err := h.svc.Members(c.Request.Context(), middleware.ProjectID(c))
	if err != nil {
		h.fail(c, "list members", err)
		return
	}
	response.OK(c, list)
}

// AddMember handles POST /projects/:id/members/:userId.
func (h *Handler) AddMember(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req AddMemberRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	v, err := h.svc.AddMember(c.Request.Context(), middleware.ProjectID(c), userID, req.Role)
	if err != nil {
		h.fail(c, "add member", err)
		return
	}
	response.Created(c, v)
}

// RemoveMember handles DELETE /projects/:id/members/:userId.
func (h *Handler) RemoveMember(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	v, err := h.svc.RemoveMember(c.Request.Context(), middleware.ProjectID(c), userID)
	if err != nil {
		h.fail(c, "remove member", err)
		return
	}
	response.OK(c, v)
}

// UpdateRole handles PATCH /projects/:id/roles/:userId.
func (h *Handler) UpdateRole(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.UpdateRole(c.Request.Context(), middleware.ProjectID(c), userID, req.Role); err != nil {
		h.fail(c, "update role", err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "project not found")
	case errors.Is(err, ErrUserNotFound):
		response.NotFound(c, "user not found")
	case errors.Is(err, ErrMemberNotFound):
		response.NotFound(c, "member not found")
	case errors.Is(err, ErrAlreadyMember):
		response.Conflict(c, "user is already a member of this project")
	case errors.Is(err, ErrLastAdmin):
		response.Conflict(c, "project must keep at least one PROJECT_ADMIN")
	case errors.Is(err, ErrInvalidRole):
		response.BadRequest(c, "invalid role")
	case errors.Is(err, ErrInvalidName):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error(op, zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}
