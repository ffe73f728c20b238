package invites

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskboard/backend/internal/middleware"
	"github.com/taskboard/backend/pkg/response"
)

// AcceptRequest is the body for POST /invites/accept.
type AcceptRequest struct {
	Token string `json:"token" binding:"required"`
}

// Handler serves invite endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an invites handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Issue handles POST /projects/:id/invite-link. Runs behind RequireProject(OpInviteIssue).
func (h *Handler) Issue(c *gin.Context) {
	inv, err := h.svc.Issue(c.Request.Context(), middleware.ProjectID(c), middleware.UserID(c))
	if err != nil {
		h.logger.Error("issue invite", zap.Error(err))
		response.Internal(c, "failed to create invite link")
		return
	}
	response.Created(c, inv)
}

// Accept handles POST /invites/accept.
func (h *Handler) Accept(c *gin.Context) {
	var req AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := middleware.UserID(c)
	view, err := h.svc.Redeem(c.Request.Context(), req.Token, userID)
	if err != nil {
		if errors.Is(err, ErrInvalidInvite) {
			h.logger.Warn("invite rejected", zap.String("user_id", userID.String()), zap.Error(err))
			response.NotFound(c, "invalid or expired invite link")
			return
		}
		h.logger.Error("redeem invite", zap.Error(err))
		response.Internal(c, "failed to accept invite")
		return
	}
	response.OK(c, view)
}
