package invites

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskboard/backend/internal/models"
	"github.com/taskboard/backend/internal/projects"
)

// MembershipStore is the slice of the projects repository redemption needs.
type MembershipStore interface {
	View(ctx context.Context, id uuid.UUID) (*models.ProjectView, error)
	ResolveRole(ctx context.Context, projectID, userID uuid.UUID) (*models.ProjectRole, error)
	AddMember(ctx context.Context, projectID, userID uuid.UUID, role models.ProjectRole) (*models.ProjectMember, error)
}

// Notifier delivers project events.
type Notifier interface {
	PublishProjectEvent(projectID uuid.UUID, event string, payload interface{})
}

// Invite is an issued join link.
type Invite struct {
	Token     string    `json:"token"`
	Link      string    `json:"invite_link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service issues and redeems project invites.
type Service struct {
	tokens   *Tokens
	store    MembershipStore
	notifier Notifier
	baseURL  string
	logger   *zap.Logger
}

// NewService creates an invite service. notifier may be nil.
func NewService(tokens *Tokens, store MembershipStore, notifier Notifier, baseURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{tokens: tokens, store: store, notifier: notifier, baseURL: baseURL, logger: logger}
}

// JoinLink builds the frontend URL a recipient opens to join.
func JoinLink(baseURL string, projectID uuid.UUID, token string) string {
	return fmt.Sprintf("%s/projects/%s/join/%s", baseURL, projectID, url.PathEscape(token))
}

// Issue mints an invite for projectID. The caller must already hold invite rights on the project.
func (s *Service) Issue(ctx context.Context, projectID, issuerID uuid.UUID) (*Invite, error) {
	token, expires, err := s.tokens.Sign(projectID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("invite issued",
		zap.String("project_id", projectID.String()),
		zap.String("issuer_id", issuerID.String()),
		zap.Time("expires_at", expires),
	)
	return &Invite{Token: token, Link: JoinLink(s.baseURL, projectID, token), ExpiresAt: expires}, nil
}

// Redeem adds userID to the project named by token as a DEVELOPER and returns the updated project.
// Every failure wraps ErrInvalidInvite.
func (s *Service) Redeem(ctx context.Context, token string, userID uuid.UUID) (*models.ProjectView, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user", ErrInvalidToken)
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	projectID := claims.ProjectID

	view, err := s.store.View(ctx, projectID)
	if errors.Is(err, projects.ErrNotFound) {
		return nil, ErrProjectGone
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	role, err := s.store.ResolveRole(ctx, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve role: %w", err)
	}
	if role != nil {
		return nil, ErrAlreadyMember
	}

	member, err := s.store.AddMember(ctx, projectID, userID, models.RoleDeveloper)
	switch {
	case errors.Is(err, projects.ErrAlreadyMember):
		return nil, ErrAlreadyMember
	case errors.Is(err, projects.ErrNotFound):
		return nil, ErrProjectGone
	case err != nil:
		return nil, fmt.Errorf("add member: %w", err)
	}

	s.logger.Info("invite redeemed",
		zap.String("project_id", projectID.String()),
		zap.String("user_id", userID.String()),
	)

	// Re-read so the joiner carries the same user details as every other member.
	if fresh, err := s.store.View(ctx, projectID); err == nil {
		view = fresh
		for _, m := range fresh.Members {
			if m.UserID == userID {
				joined := m
				member = &joined
				break
			}
		}
	} else {
		s.logger.Warn("reload project after redemption", zap.String("project_id", projectID.String()), zap.Error(err))
		view.Members = append(view.Members, *member)
	}

	if s.notifier != nil {
		s.notifier.PublishProjectEvent(projectID, projects.EventMemberJoined, member)
	}
	return view, nil
}
