package access

import "github.com/taskboard/backend/internal/models"

// Operation identifies a project-scoped action.
type Operation string

const (
	OpProjectRead   Operation = "project.read"
	OpProjectUpdate Operation = "project.update"
	OpProjectDelete Operation = "project.delete"
	OpMemberList    Operation = "member.list"
	OpMemberAdd     Operation = "member.add"
	OpMemberRemove  Operation = "member.remove"
	OpRoleUpdate    Operation = "role.update"
	OpInviteIssue   Operation = "invite.issue"
	OpTaskRead      Operation = "task.read"
	OpTaskWrite     Operation = "task.write"
	OpTaskReorder   Operation = "task.reorder"
	OpCommentRead   Operation = "comment.read"
	OpCommentWrite  Operation = "comment.write"
	OpProjectStream Operation = "project.stream"
)

// Mode selects how the Guard gates an operation.
type Mode int

const (
	// ModeMembership requires only an existing membership, any role.
	ModeMembership Mode = iota
	// ModeRoles requires a membership whose role is in Rule.Roles.
	ModeRoles
)

// Rule is the requirement attached to an operation.
type Rule struct {
	Mode  Mode
	Roles []models.ProjectRole
}

// Policy is the static operation table consulted by Guard.Check.
type Policy map[Operation]Rule

func member() Rule { return Rule{Mode: ModeMembership} }

func roles(r ...models.ProjectRole) Rule { return Rule{Mode: ModeRoles, Roles: r} }

// DefaultPolicy returns the operation table used by the server.
func DefaultPolicy() Policy {
	admin, manager := models.RoleProjectAdmin, models.RoleManager
	return Policy{
		OpProjectRead:   member(),
		OpProjectUpdate: roles(admin),
		OpProjectDelete: roles(admin),
		OpMemberList:    member(),
		OpMemberAdd:     roles(admin, manager),
		OpMemberRemove:  roles(admin, manager),
		OpRoleUpdate:    roles(admin, manager),
		OpInviteIssue:   roles(admin, manager),
		OpTaskRead:      member(),
		OpTaskWrite:     member(),
		OpTaskReorder:   member(),
		OpCommentRead:   member(),
		OpCommentWrite:  member(),
		OpProjectStream: member(),
	}
}

// Rule returns the rule registered for op.
func (p Policy) Rule(op Operation) (Rule, bool) {
	r, ok := p[op]
	return r, ok
}
