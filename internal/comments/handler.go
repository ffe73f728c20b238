package comments

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskboard/backend/internal/middleware"
	"github.com/taskboard/backend/internal/models"
	"github.com/taskboard/backend/pkg/response"
)

const (
	EventCommentCreated = "comment_created"
	EventCommentUpdated = "comment_updated"
	EventCommentDeleted = "comment_deleted"
)

// Notifier delivers project events.
type Notifier interface {
	PublishProjectEvent(projectID uuid.UUID, event string, payload interface{})
}

// ContentRequest is the body for creating or editing a comment.
type ContentRequest struct {
	Content string `json:"content" binding:"required"`
}

// Handler serves comment endpoints under /projects/:id.
type Handler struct {
	repo     *Repository
	notifier Notifier
	logger   *zap.Logger
}

// NewHandler creates a comments handler. notifier may be nil.
func NewHandler(repo *Repository, notifier Notifier, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, notifier: notifier, logger: logger}
}

// Create handles POST /projects/:id/tasks/:taskId/comments.
func (h *Handler) Create(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("taskId"))
	if err != nil {
		response.BadRequest(c, "invalid task id")
		return
	}
	content, ok := bindContent(c)
	if !ok {
		return
	}
	projectID := middleware.ProjectID(c)
	comment := &models.Comment{TaskID: taskID, AuthorID: middleware.UserID(c), Content: content}
	if err := h.repo.Create(c.Request.Context(), projectID, comment); err != nil {
		h.fail(c, "create comment", err)
		return
	}
	h.publish(projectID, EventCommentCreated, comment)
	response.Created(c, comment)
}

// List handles GET /projects/:id/tasks/:taskId/comments.
func (h *Handler) List(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("taskId"))
	if err != nil {
		response.BadRequest(c, "invalid task id")
		return
	}
	list, err := h.repo.ListByTask(c.Request.Context(), middleware.ProjectID(c), taskID)
	if err != nil {
		h.fail(c, "list comments", err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /projects/:id/comments/:commentId.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("commentId"))
	if err != nil {
		response.BadRequest(c, "invalid comment id")
		return
	}
	comment, err := h.repo.GetByID(c.Request.Context(), middleware.ProjectID(c), id)
	if err != nil {
		h.fail(c, "get comment", err)
		return
	}
	response.OK(c, comment)
}

// Update handles PATCH /projects/:id/comments/:commentId.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("commentId"))
	if err != nil {
		response.BadRequest(c, "invalid comment id")
		return
	}
	content, ok := bindContent(c)
	if !ok {
		return
	}
	projectID := middleware.ProjectID(c)
	comment, err := h.repo.UpdateContent(c.Request.Context(), projectID, id, middleware.UserID(c), content)
	if err != nil {
		h.fail(c, "update comment", err)
		return
	}
	h.publish(projectID, EventCommentUpdated, comment)
	response.OK(c, comment)
}

// Delete handles DELETE /projects/:id/comments/:commentId.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("commentId"))
	if err != nil {
		response.BadRequest(c, "invalid comment id")
		return
	}
	projectID := middleware.ProjectID(c)
	if err := h.repo.Delete(c.Request.Context(), projectID, id, middleware.UserID(c)); err != nil {
		h.fail(c, "delete comment", err)
		return
	}
	h.publish(projectID, EventCommentDeleted, map[string]string{"id": id.String()})
	response.NoContent(c)
}

func bindContent(c *gin.Context) (string, bool) {
	var req ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return "", false
	}
	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > 5000 {
		response.BadRequest(c, "content must be 1-5000 characters")
		return "", false
	}
	return content, true
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		response.NotFound(c, "task not found")
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "comment not found")
	case errors.Is(err, ErrNotAuthor):
		response.Forbidden(c, "only the author can change this comment")
	default:
		h.logger.Error(op, zap.Error(err))
		response.Internal(c, "failed to "+op)
	}
}

func (h *Handler) publish(projectID uuid.UUID, event string, payload interface{}) {
	if h.notifier != nil {
		h.notifier.PublishProjectEvent(projectID, event, payload)
	}
}
