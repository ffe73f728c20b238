package projects

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/backend/internal/models"
)

type memStore struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*models.Project
	members  map[uuid.UUID][]models.ProjectMember
}

func newMemStore() *memStore {
	return &memStore{
		projects: make(map[uuid.UUID]*models.Project),
		members:  make(map[uuid.UUID][]models.ProjectMember),
	}
}

func (s *memStore) Create(ctx context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt, p.UpdatedAt = time.Now(), time.Now()
	s.projects[p.ID] = p
	s.members[p.ID] = []models.ProjectMember{{ID: uuid.New(), ProjectID: p.ID, UserID: p.OwnerID, Role: models.RoleProjectAdmin}}
	return nil
}

func (s *memStore) Update(ctx context.Context, id uuid.UUID, name, description *string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	if name != nil {
		p.Name = *name
	}
	if description != nil {
		p.Description = *description
	}
	return p, nil
}

func (s *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return ErrNotFound
	}
	delete(s.projects, id)
	delete(s.members, id)
	return nil
}

func (s *memStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []*models.Project
	for id, members := range s.members {
		for _, m := range members {
			if m.UserID == userID {
				list = append(list, s.projects[id])
			}
		}
	}
	return list, nil
}

func (s *memStore) ListMembers(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ProjectMember(nil), s.members[projectID]...), nil
}

func (s *memStore) View(ctx context.Context, id uuid.UUID) (*models.ProjectView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &models.ProjectView{Project: *p, Members: append([]models.ProjectMember(nil), s.members[id]...)}, nil
}

func (s *memStore) AddMember(ctx context.Context, projectID, userID uuid.UUID, role models.ProjectRole) (*models.ProjectMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[projectID]; !ok {
		return nil, ErrNotFound
	}
	for _, m := range s.members[projectID] {
		if m.UserID == userID {
			return nil, ErrAlreadyMember
		}
	}
	m := models.ProjectMember{ID: uuid.New(), ProjectID: projectID, UserID: userID, Role: role}
	s.members[projectID] = append(s.members[projectID], m)
	return &m, nil
}

func (s *memStore) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.members[projectID]
	for i, m := range members {
		if m.UserID == userID {
			s.members[projectID] = append(members[:i:i], members[i+1:]...)
			return nil
		}
	}
	return ErrMemberNotFound
}

func (s *memStore) UpdateRole(ctx context.Context, projectID, userID uuid.UUID, role models.ProjectRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.members[projectID] {
		if m.UserID == userID {
			s.members[projectID][i].Role = role
			return nil
		}
	}
	return ErrMemberNotFound
}

type recordedEvent struct {
	projectID uuid.UUID
	event     string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) PublishProjectEvent(projectID uuid.UUID, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{projectID: projectID, event: event})
}

func (n *recordingNotifier) names() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.event)
	}
	return out
}

func TestService_Create(t *testing.T) {
	svc := NewService(newMemStore(), nil, nil)
	owner := uuid.New()

	p, err := svc.Create(context.Background(), owner, "  Apollo  ", "moon")
	require.NoError(t, err)
	assert.Equal(t, "Apollo", p.Name)

	v, err := svc.View(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, v.Members, 1)
	assert.Equal(t, owner, v.Members[0].UserID)
	assert.Equal(t, models.RoleProjectAdmin, v.Members[0].Role)

	_, err = svc.Create(context.Background(), owner, "   ", "")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestService_AddMember(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	svc := NewService(newMemStore(), notifier, nil)
	p, err := svc.Create(ctx, uuid.New(), "Apollo", "")
	require.NoError(t, err)
	user := uuid.New()

	v, err := svc.AddMember(ctx, p.ID, user, "")
	require.NoError(t, err)
	require.Len(t, v.Members, 2)
	assert.Equal(t, models.RoleDeveloper, v.Members[1].Role)
	assert.Equal(t, []string{EventMemberJoined}, notifier.names())

	_, err = svc.AddMember(ctx, p.ID, user, models.RoleManager)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	_, err = svc.AddMember(ctx, p.ID, uuid.New(), "OWNER")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestService_RemoveAndUpdateRole(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	svc := NewService(newMemStore(), notifier, nil)
	p, err := svc.Create(ctx, uuid.New(), "Apollo", "")
	require.NoError(t, err)
	user := uuid.New()
	_, err = svc.AddMember(ctx, p.ID, user, models.RoleDeveloper)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateRole(ctx, p.ID, user, models.RoleManager))
	assert.ErrorIs(t, svc.UpdateRole(ctx, p.ID, user, "ROOT"), ErrInvalidRole)

	v, err := svc.RemoveMember(ctx, p.ID, user)
	require.NoError(t, err)
	assert.Len(t, v.Members, 1)
	assert.Equal(t, []string{EventMemberJoined, EventRoleUpdated, EventMemberRemoved}, notifier.names())
}
