package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/taskboard/backend/internal/access"
	"github.com/taskboard/backend/internal/models"
)

type stubResolver struct {
	roles map[uuid.UUID]models.ProjectRole
	err   error
}

func (s *stubResolver) ResolveRole(ctx context.Context, projectID, userID uuid.UUID) (*models.ProjectRole, error) {
	if s.err != nil {
		return nil, s.err
	}
	role, ok := s.roles[userID]
	if !ok {
		return nil, nil
	}
	return &role, nil
}

func newGuardedRouter(resolver access.RoleResolver, op access.Operation, actor uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	guard := access.NewGuard(resolver, access.DefaultPolicy(), zap.NewNop())
	r := gin.New()
	r.PATCH("/projects/:id", func(c *gin.Context) {
		if actor != uuid.Nil {
			c.Set(ContextUserID, actor)
		}
		c.Next()
	}, RequireProject(guard, op, zap.NewNop()), func(c *gin.Context) {
		c.String(http.StatusOK, string(ProjectRole(c))+":"+ProjectID(c).String())
	})
	return r
}

func TestRequireProject(t *testing.T) {
	projectID := uuid.New()
	admin, dev, outsider := uuid.New(), uuid.New(), uuid.New()
	resolver := &stubResolver{roles: map[uuid.UUID]models.ProjectRole{
		admin: models.RoleProjectAdmin,
		dev:   models.RoleDeveloper,
	}}

	tests := []struct {
		name     string
		op       access.Operation
		actor    uuid.UUID
		path     string
		wantCode int
	}{
		{"admin may update project", access.OpProjectUpdate, admin, projectID.String(), http.StatusOK},
		{"developer may not update project", access.OpProjectUpdate, dev, projectID.String(), http.StatusForbidden},
		{"developer may reorder tasks", access.OpTaskReorder, dev, projectID.String(), http.StatusOK},
		{"outsider rejected", access.OpTaskReorder, outsider, projectID.String(), http.StatusForbidden},
		{"malformed project id", access.OpTaskReorder, dev, "not-a-uuid", http.StatusBadRequest},
		{"missing actor", access.OpTaskReorder, uuid.Nil, projectID.String(), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newGuardedRouter(resolver, tt.op, tt.actor)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPatch, "/projects/"+tt.path, nil)
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}

	t.Run("stores role and project", func(t *testing.T) {
		r := newGuardedRouter(resolver, access.OpProjectRead, admin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/projects/"+projectID.String(), nil))
		assert.Equal(t, "PROJECT_ADMIN:"+projectID.String(), w.Body.String())
	})

	t.Run("distinct messages for outsider and low role", func(t *testing.T) {
		w := httptest.NewRecorder()
		newGuardedRouter(resolver, access.OpProjectDelete, outsider).
			ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/projects/"+projectID.String(), nil))
		assert.Contains(t, w.Body.String(), "not a member")

		w = httptest.NewRecorder()
		newGuardedRouter(resolver, access.OpProjectDelete, dev).
			ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/projects/"+projectID.String(), nil))
		assert.Contains(t, w.Body.String(), "permission")
	})

	t.Run("store failure is internal", func(t *testing.T) {
		r := newGuardedRouter(&stubResolver{err: errors.New("db down")}, access.OpTaskRead, dev)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/projects/"+projectID.String(), nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("http://localhost:3000, https://app.example.com/"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
