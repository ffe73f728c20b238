// Package access decides who may act on a project.
//
// Evaluate is the pure role decision. Guard resolves the actor's membership through a
// RoleResolver and applies Evaluate. Policy maps every project-scoped operation to the
// rule the Guard enforces for it, so routes never carry their own role lists.
package access

import "github.com/taskboard/backend/internal/models"

// Decision is the outcome of a policy evaluation.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Evaluate decides whether an actor holding role may perform an operation requiring one of required.
// A nil role means the actor has no membership in the project and is always denied.
// An empty required set allows any member. Otherwise the role must be listed explicitly.
func Evaluate(required []models.ProjectRole, role *models.ProjectRole) Decision {
	if role == nil {
		return Deny
	}
	if len(required) == 0 {
		return Allow
	}
	for _, r := range required {
		if r == *role {
			return Allow
		}
	}
	return Deny
}
