package tasks

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskboard/backend/internal/middleware"
	"github.com/taskboard/backend/internal/models"
	"github.com/taskboard/backend/pkg/response"
)

// CreateRequest is the body for POST /projects/:id/tasks.
type CreateRequest struct {
	Title       string              `json:"title" binding:"required"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"due_date"`
	AssigneeID  *uuid.UUID          `json:"assignee_id"`
}

// UpdateRequest is the body for PATCH /projects/:id/tasks/:taskId.
type UpdateRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Priority    *models.TaskPriority `json:"priority"`
	DueDate     *time.Time           `json:"due_date"`
	AssigneeID  *uuid.UUID           `json:"assignee_id"`
}

// ReorderRequest is the body for PATCH /projects/:id/task-order.
type ReorderRequest struct {
	Tasks []models.TaskOrderItem `json:"tasks" binding:"dive"`
}

// Handler serves task endpoints under /projects/:id.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a tasks handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /projects/:id/tasks?status=&priority=&assignee=&q=.
func (h *Handler) List(c *gin.Context) {
	f := Filter{
		Status:   models.TaskStatus(c.Query("status")),
		Priority: models.TaskPriority(c.Query("priority")),
		Search:   c.Query("q"),
	}
	if a := c.Query("assignee"); a != "" {
		id, err := uuid.Parse(a)
		if err != nil {
			response.BadRequest(c, "invalid assignee id")
			return
		}
		f.AssigneeID = &id
	}
	list, err := h.svc.List(c.Request.Context(), middleware.ProjectID(c), f)
	if err != nil {
		h.fail(c, "list tasks", err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /projects/:id/tasks.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.Create(c.Request.Context(), middleware.ProjectID(c), NewTask{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		h.fail(c, "create task", err)
		return
	}
	response.Created(c, t)
}

// Get handles GET /projects/:id/tasks/:taskId.
func (h *Handler) Get(c *gin.Context) {
	taskID, ok := taskParam(c)
	if !ok {
		return
	}
	t, err := h.svc.Get(c.Request.Context(), middleware.ProjectID(c), taskID)
	if err != nil {
		h.fail(c, "get task", err)
		return
	}
	response.OK(c, t)
}

// Update handles PATCH /projects/:id/tasks/:taskId.
func (h *Handler) Update(c *gin.Context) {
	taskID, ok := taskParam(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.Update(c.Request.Context(), middleware.ProjectID(c), taskID, Patch{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		h.fail(c, "update task", err)
		return
	}
	response.OK(c, t)
}

// Delete handles DELETE /projects/:id/tasks/:taskId.
func (h *Handler) Delete(c *gin.Context) {
	taskID, ok := taskParam(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.ProjectID(c), taskID); err != nil {
		h.fail(c, "delete task", err)
		return
	}
	response.NoContent(c)
}

// Reorder handles PATCH /projects/:id/task-order.
func (h *Handler) Reorder(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.Reorder(c.Request.Context(), middleware.ProjectID(c), req.Tasks); err != nil {
		h.fail(c, "update task order", err)
		return
	}
	response.OK(c, gin.H{"updated": len(req.Tasks)})
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	var orderErr *OrderError
	switch {
	case errors.As(err, &orderErr):
		response.NotFound(c, orderErr.Error())
	case errors.Is(err, ErrInvalidOrder), errors.Is(err, ErrInvalidTask):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "task not found")
	case errors.Is(err, ErrOrderFailed):
		response.Internal(c, "failed to update task order")
	default:
		h.logger.Error(op, zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}

func taskParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("taskId"))
	if err != nil {
		response.BadRequest(c, "invalid task id")
		return uuid.Nil, false
	}
	return id, true
}
