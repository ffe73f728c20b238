package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectRole is the role of a user inside one project. Roles are flat: no role implies another.
type ProjectRole string

const (
	RoleProjectAdmin ProjectRole = "PROJECT_ADMIN"
	RoleManager      ProjectRole = "MANAGER"
	RoleDeveloper    ProjectRole = "DEVELOPER"
)

// DefaultProjectRole is granted when a member is added without an explicit role and on invite redemption.
const DefaultProjectRole = RoleDeveloper

// Valid reports whether r is one of the known project roles.
func (r ProjectRole) Valid() bool {
	switch r {
	case RoleProjectAdmin, RoleManager, RoleDeveloper:
		return true
	}
	return false
}

// Project is a tenant workspace owning tasks and memberships.
type Project struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     uuid.UUID `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectMember links a user to a project with a role. Unique per (ProjectID, UserID).
type ProjectMember struct {
	ID        uuid.UUID   `json:"id"`
	ProjectID uuid.UUID   `json:"project_id"`
	UserID    uuid.UUID   `json:"user_id"`
	Email     string      `json:"email,omitempty"`
	Name      string      `json:"name,omitempty"`
	Role      ProjectRole `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ProjectView is a project with its current members.
type ProjectView struct {
	Project
	Members []ProjectMember `json:"members"`
}
