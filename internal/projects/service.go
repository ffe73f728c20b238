package projects

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskboard/backend/internal/models"
)

// Events published to project subscribers.
const (
	EventProjectUpdated = "project_updated"
	EventProjectDeleted = "project_deleted"
	EventMemberJoined   = "member_joined"
	EventMemberRemoved  = "member_removed"
	EventRoleUpdated    = "role_updated"
)

// ErrInvalidName is returned for empty or oversized project names.
var ErrInvalidName = errors.New("name must be 1-255 characters")

// Store is the persistence the service needs; *Repository implements it.
type Store interface {
	Create(ctx context.Context, p *models.Project) error
	Update(ctx context.Context, id uuid.UUID, name, description *string) (*models.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error)
	ListMembers(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMember, error)
	View(ctx context.Context, id uuid.UUID) (*models.ProjectView, error)
	AddMember(ctx context.Context, projectID, userID uuid.UUID, role models.ProjectRole) (*models.ProjectMember, error)
	RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error
	UpdateRole(ctx context.Context, projectID, userID uuid.UUID, role models.ProjectRole) error
}

// Notifier delivers project events to connected clients.
type Notifier interface {
	PublishProjectEvent(projectID uuid.UUID, event string, payload interface{})
}

// Service implements the project and membership lifecycle. Callers are expected to have passed
// the access guard for the matching operation.
type Service struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates a projects service. notifier may be nil.
func NewService(store Store, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, notifier: notifier, logger: logger}
}

// Create creates a project owned by ownerID, who becomes its PROJECT_ADMIN.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, name, description string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if len(name) < 1 || len(name) > 255 {
		return nil, ErrInvalidName
	}
	p := &models.Project{Name: name, Description: strings.TrimSpace(description), OwnerID: ownerID}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("project created", zap.String("project_id", p.ID.String()), zap.String("owner_id", ownerID.String()))
	return p, nil
}

// View returns the project with its members.
func (s *Service) View(ctx context.Context, projectID uuid.UUID) (*models.ProjectView, error) {
	return s.store.View(ctx, projectID)
}

// ListMine returns the projects userID belongs to.
func (s *Service) ListMine(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	return s.store.ListForUser(ctx, userID)
}

// Members returns the project's members.
func (s *Service) Members(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMember, error) {
	return s.store.ListMembers(ctx, projectID)
}

// Update changes the project's name and/or description.
func (s *Service) Update(ctx context.Context, projectID uuid.UUID, name, description *string) (*models.Project, error) {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if len(trimmed) < 1 || len(trimmed) > 255 {
			return nil, ErrInvalidName
		}
		name = &trimmed
	}
	p, err := s.store.Update(ctx, projectID, name, description)
	if err != nil {
		return nil, err
	}
	s.publish(projectID, EventProjectUpdated, p)
	return p, nil
}

// Delete removes the project with all memberships.
func (s *Service) Delete(ctx context.Context, projectID uuid.UUID) error {
	if err := s.store.Delete(ctx, projectID); err != nil {
		return err
	}
	s.publish(projectID, EventProjectDeleted, map[string]string{"project_id": projectID.String()})
	return nil
}

// AddMember adds userID to the project. An empty role means models.DefaultProjectRole.
func (s *Service) AddMember(ctx context.Context, projectID, userID uuid.UUID, role models.ProjectRole) (*models.ProjectView, error) {
	if role == "" {
		role = models.DefaultProjectRole
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	m, err := s.store.AddMember(ctx, projectID, userID, role)
	if err != nil {
		return nil, err
	}
	s.publish(projectID, EventMemberJoined, m)
	return s.store.View(ctx, projectID)
}

// RemoveMember removes userID from the project. The last PROJECT_ADMIN cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) (*models.ProjectView, error) {
	if err := s.store.RemoveMember(ctx, projectID, userID); err != nil {
		return nil, err
	}
	s.publish(projectID, EventMemberRemoved, map[string]string{"user_id": userID.String()})
	return s.store.View(ctx, projectID)
}

// UpdateRole sets userID's role. The last PROJECT_ADMIN cannot be demoted.
func (s *Service) UpdateRole(ctx context.Context, projectID, userID uuid.UUID, role models.ProjectRole) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if err := s.store.UpdateRole(ctx, projectID, userID, role); err != nil {
		return err
	}
	s.logger.Info("project role updated",
		zap.String("project_id", projectID.String()),
		zap.String("user_id", userID.String()),
		zap.String("role", string(role)),
	)
	s.publish(projectID, EventRoleUpdated, map[string]string{"user_id": userID.String(), "role": string(role)})
	return nil
}

func (s *Service) publish(projectID uuid.UUID, event string, payload interface{}) {
	if s.notifier != nil {
		s.notifier.PublishProjectEvent(projectID, event, payload)
	}
}
