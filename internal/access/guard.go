package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskboard/backend/internal/models"
)

var (
	// ErrBadRequest is returned when the actor or project is missing; no lookup is made.
	ErrBadRequest = errors.New("project and actor are required")
	// ErrForbidden is the parent of every authorization denial.
	ErrForbidden = errors.New("forbidden")
	// ErrNotMember means the actor has no membership in the project.
	ErrNotMember = fmt.Errorf("%w: not a member of this project", ErrForbidden)
	// ErrInsufficientRole means the actor is a member but its role is not allowed.
	ErrInsufficientRole = fmt.Errorf("%w: insufficient project role", ErrForbidden)
	// ErrUnknownOperation means the operation is missing from the policy table.
	ErrUnknownOperation = errors.New("operation has no access rule")
)

// RoleResolver returns the actor's role in a project, or nil when it is not a member.
// Errors are reserved for storage failures.
type RoleResolver interface {
	ResolveRole(ctx context.Context, projectID, userID uuid.UUID) (*models.ProjectRole, error)
}

// Guard authorizes project-scoped operations. It only reads membership and is safe for concurrent use.
type Guard struct {
	resolver RoleResolver
	policy   Policy
	logger   *zap.Logger
}

// NewGuard creates a guard over resolver using policy for Check.
func NewGuard(resolver RoleResolver, policy Policy, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{resolver: resolver, policy: policy, logger: logger}
}

// Authorize checks that actorID holds one of required in projectID and returns the resolved role.
// An empty required set performs no lookup and returns a nil role.
func (g *Guard) Authorize(ctx context.Context, actorID, projectID uuid.UUID, required []models.ProjectRole) (*models.ProjectRole, error) {
	if actorID == uuid.Nil || projectID == uuid.Nil {
		return nil, ErrBadRequest
	}
	if len(required) == 0 {
		return nil, nil
	}
	role, err := g.resolve(ctx, actorID, projectID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		g.deny(actorID, projectID, ErrNotMember)
		return nil, ErrNotMember
	}
	if Evaluate(required, role) == Deny {
		g.deny(actorID, projectID, ErrInsufficientRole)
		return role, ErrInsufficientRole
	}
	return role, nil
}

// RequireMember checks that actorID has any membership in projectID.
func (g *Guard) RequireMember(ctx context.Context, actorID, projectID uuid.UUID) (models.ProjectRole, error) {
	if actorID == uuid.Nil || projectID == uuid.Nil {
		return "", ErrBadRequest
	}
	role, err := g.resolve(ctx, actorID, projectID)
	if err != nil {
		return "", err
	}
	if Evaluate(nil, role) == Deny {
		g.deny(actorID, projectID, ErrNotMember)
		return "", ErrNotMember
	}
	return *role, nil
}

// Check applies the policy rule registered for op.
func (g *Guard) Check(ctx context.Context, op Operation, actorID, projectID uuid.UUID) (models.ProjectRole, error) {
	rule, ok := g.policy.Rule(op)
	if !ok {
		g.logger.Error("access rule missing", zap.String("operation", string(op)))
		return "", fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}
	if rule.Mode == ModeMembership || len(rule.Roles) == 0 {
		return g.RequireMember(ctx, actorID, projectID)
	}
	role, err := g.Authorize(ctx, actorID, projectID, rule.Roles)
	if err != nil {
		return "", err
	}
	return *role, nil
}

func (g *Guard) resolve(ctx context.Context, actorID, projectID uuid.UUID) (*models.ProjectRole, error) {
	role, err := g.resolver.ResolveRole(ctx, projectID, actorID)
	if err != nil {
		return nil, fmt.Errorf("resolve project role: %w", err)
	}
	return role, nil
}

func (g *Guard) deny(actorID, projectID uuid.UUID, reason error) {
	g.logger.Debug("project access denied",
		zap.String("user_id", actorID.String()),
		zap.String("project_id", projectID.String()),
		zap.Error(reason),
	)
}
