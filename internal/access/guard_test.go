package access

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/backend/internal/models"
)

// mockResolver implements RoleResolver for tests.
type mockResolver struct {
	mu    sync.Mutex
	roles map[string]models.ProjectRole
	err   error
	calls int
}

func (m *mockResolver) ResolveRole(ctx context.Context, projectID, userID uuid.UUID) (*models.ProjectRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	role, ok := m.roles[projectID.String()+":"+userID.String()]
	if !ok {
		return nil, nil
	}
	return &role, nil
}

func newResolver(projectID uuid.UUID, members map[uuid.UUID]models.ProjectRole) *mockResolver {
	r := &mockResolver{roles: make(map[string]models.ProjectRole)}
	for userID, role := range members {
		r.roles[projectID.String()+":"+userID.String()] = role
	}
	return r
}

func TestGuard_Authorize(t *testing.T) {
	ctx := context.Background()
	project := uuid.New()
	admin, manager, dev, outsider := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	resolver := newResolver(project, map[uuid.UUID]models.ProjectRole{
		admin:   models.RoleProjectAdmin,
		manager: models.RoleManager,
		dev:     models.RoleDeveloper,
	})
	guard := NewGuard(resolver, DefaultPolicy(), nil)
	adminOrManager := []models.ProjectRole{models.RoleProjectAdmin, models.RoleManager}

	t.Run("admin allowed", func(t *testing.T) {
		role, err := guard.Authorize(ctx, admin, project, adminOrManager)
		require.NoError(t, err)
		assert.Equal(t, models.RoleProjectAdmin, *role)
	})

	t.Run("manager allowed", func(t *testing.T) {
		_, err := guard.Authorize(ctx, manager, project, adminOrManager)
		require.NoError(t, err)
	})

	t.Run("developer has insufficient role", func(t *testing.T) {
		_, err := guard.Authorize(ctx, dev, project, adminOrManager)
		assert.ErrorIs(t, err, ErrInsufficientRole)
		assert.ErrorIs(t, err, ErrForbidden)
		assert.NotErrorIs(t, err, ErrNotMember)
	})

	t.Run("outsider is not a member", func(t *testing.T) {
		_, err := guard.Authorize(ctx, outsider, project, adminOrManager)
		assert.ErrorIs(t, err, ErrNotMember)
		assert.ErrorIs(t, err, ErrForbidden)
		assert.NotErrorIs(t, err, ErrInsufficientRole)
	})

	t.Run("manager does not satisfy admin-only", func(t *testing.T) {
		_, err := guard.Authorize(ctx, manager, project, []models.ProjectRole{models.RoleProjectAdmin})
		assert.ErrorIs(t, err, ErrInsufficientRole)
	})

	t.Run("no required roles skips lookup", func(t *testing.T) {
		before := resolver.calls
		role, err := guard.Authorize(ctx, outsider, project, nil)
		require.NoError(t, err)
		assert.Nil(t, role)
		assert.Equal(t, before, resolver.calls)
	})
}

func TestGuard_MissingContextShortCircuits(t *testing.T) {
	ctx := context.Background()
	resolver := &mockResolver{roles: map[string]models.ProjectRole{}}
	guard := NewGuard(resolver, DefaultPolicy(), nil)
	required := []models.ProjectRole{models.RoleProjectAdmin}

	_, err := guard.Authorize(ctx, uuid.Nil, uuid.New(), required)
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = guard.Authorize(ctx, uuid.New(), uuid.Nil, required)
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = guard.RequireMember(ctx, uuid.Nil, uuid.New())
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = guard.Check(ctx, OpTaskReorder, uuid.New(), uuid.Nil)
	assert.ErrorIs(t, err, ErrBadRequest)

	assert.Equal(t, 0, resolver.calls)
}

func TestGuard_ResolverError(t *testing.T) {
	dbErr := errors.New("database error")
	guard := NewGuard(&mockResolver{err: dbErr}, DefaultPolicy(), nil)

	_, err := guard.Authorize(context.Background(), uuid.New(), uuid.New(), []models.ProjectRole{models.RoleManager})
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, ErrForbidden)
}

func TestGuard_RequireMember(t *testing.T) {
	ctx := context.Background()
	project := uuid.New()
	dev := uuid.New()
	guard := NewGuard(newResolver(project, map[uuid.UUID]models.ProjectRole{dev: models.RoleDeveloper}), DefaultPolicy(), nil)

	role, err := guard.RequireMember(ctx, dev, project)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDeveloper, role)

	_, err = guard.RequireMember(ctx, uuid.New(), project)
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestGuard_Check(t *testing.T) {
	ctx := context.Background()
	project := uuid.New()
	admin, dev := uuid.New(), uuid.New()
	guard := NewGuard(newResolver(project, map[uuid.UUID]models.ProjectRole{
		admin: models.RoleProjectAdmin,
		dev:   models.RoleDeveloper,
	}), DefaultPolicy(), nil)

	testCases := []struct {
		name    string
		op      Operation
		actor   uuid.UUID
		wantErr error
	}{
		{"admin deletes project", OpProjectDelete, admin, nil},
		{"developer cannot delete project", OpProjectDelete, dev, ErrInsufficientRole},
		{"developer cannot issue invite", OpInviteIssue, dev, ErrInsufficientRole},
		{"developer reorders tasks", OpTaskReorder, dev, nil},
		{"outsider cannot reorder tasks", OpTaskReorder, uuid.New(), ErrNotMember},
		{"outsider cannot update roles", OpRoleUpdate, uuid.New(), ErrNotMember},
		{"unknown operation", Operation("project.archive"), admin, ErrUnknownOperation},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := guard.Check(ctx, tc.op, tc.actor, project)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
