package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskboard/backend/internal/models"
	"github.com/taskboard/backend/pkg/database"
)

var (
	ErrNotFound       = errors.New("project not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrMemberNotFound = errors.New("user is not a member of the project")
	ErrAlreadyMember  = errors.New("user is already a member of the project")
	ErrLastAdmin      = errors.New("project must keep at least one PROJECT_ADMIN")
	ErrInvalidRole    = errors.New("invalid project role")
)

const projectColumns = `id, name, description, owner_id, created_at, updated_at`

// Repository handles projects and project_members persistence. It is the membership store
// the access guard reads and the invite service writes.
type Repository struct {
	db database.DB
}

// NewRepository creates a projects repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the project and makes its owner PROJECT_ADMIN in one transaction.
func (r *Repository) Create(ctx context.Context, p *models.Project) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		const insertProject = `INSERT INTO projects (name, description, owner_id)
			VALUES ($1, $2, $3)
			RETURNING id, created_at, updated_at`
		if err := tx.QueryRow(ctx, insertProject, p.Name, p.Description, p.OwnerID).
			Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			if database.IsForeignKeyViolation(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("insert project: %w", err)
		}
		const insertOwner = `INSERT INTO project_members (project_id, user_id, role) VALUES ($1, $2, $3)`
		if _, err := tx.Exec(ctx, insertOwner, p.ID, p.OwnerID, string(models.RoleProjectAdmin)); err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}
		return nil
	})
}

// GetByID returns a project by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	p, err := scanProject(r.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// Update changes name and/or description; nil fields are left as they are.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, name, description *string) (*models.Project, error) {
	q := `UPDATE projects
		SET name = COALESCE($2, name), description = COALESCE($3, description), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + projectColumns
	p, err := scanProject(r.db.QueryRow(ctx, q, id, name, description))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// Delete removes a project. Memberships, tasks and comments cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForUser returns the projects the user is a member of.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	const q = `SELECT p.id, p.name, p.description, p.owner_id, p.created_at, p.updated_at
		FROM projects p
		INNER JOIN project_members pm ON pm.project_id = p.id
		WHERE pm.user_id = $1
		ORDER BY p.name`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// ListMembers returns members of a project with user details.
func (r *Repository) ListMembers(ctx context.Context, projectID uuid.UUID) ([]models.ProjectMember, error) {
	const q = `SELECT pm.id, pm.project_id, pm.user_id, u.email, u.name, pm.role, pm.created_at, pm.updated_at
		FROM project_members pm
		INNER JOIN users u ON u.id = pm.user_id
		WHERE pm.project_id = $1
		ORDER BY pm.created_at ASC`
	rows, err := r.db.Query(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.ProjectMember{}
	for rows.Next() {
		var m models.ProjectMember
		var role string
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Email, &m.Name, &role, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Role = models.ProjectRole(role)
		list = append(list, m)
	}
	return list, rows.Err()
}

// View returns the project with its members.
func (r *Repository) View(ctx context.Context, id uuid.UUID) (*models.ProjectView, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := r.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ProjectView{Project: *p, Members: members}, nil
}

// ResolveRole returns the user's role in the project, or nil if the user is not a member.
// It returns an error only for database failures, not for missing rows.
func (r *Repository) ResolveRole(ctx context.Context, projectID, userID uuid.UUID) (*models.ProjectRole, error) {
	const q = `SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2`
	var role string
	err := r.db.QueryRow(ctx, q, projectID, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pr := models.ProjectRole(role)
	return &pr, nil
}

// AddMember inserts a membership. Duplicates are rejected by the (project_id, user_id) unique key,
// so concurrent inserts for the same pair yield exactly one row and ErrAlreadyMember for the rest.
func (r *Repository) AddMember(ctx context.Context, projectID, userID uuid.UUID, role models.ProjectRole) (*models.ProjectMember, error) {
	const q = `INSERT INTO project_members (project_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	m := &models.ProjectMember{ProjectID: projectID, UserID: userID, Role: role}
	err := r.db.QueryRow(ctx, q, projectID, userID, string(role)).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	switch {
	case err == nil:
		return m, nil
	case database.IsUniqueViolation(err):
		return nil, ErrAlreadyMember
	case database.IsForeignKeyViolation(err):
		if strings.Contains(database.ViolatedConstraint(err), "user_id") {
			return nil, ErrUserNotFound
		}
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("insert membership: %w", err)
	}
}

// RemoveMember deletes a membership unless it is the project's last PROJECT_ADMIN.
func (r *Repository) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		members, err := lockMembers(ctx, tx, projectID)
		if err != nil {
			return err
		}
		current, ok := members[userID]
		if !ok {
			return ErrMemberNotFound
		}
		if current == models.RoleProjectAdmin && countAdmins(members) == 1 {
			return ErrLastAdmin
		}
		const q = `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`
		if _, err := tx.Exec(ctx, q, projectID, userID); err != nil {
			return fmt.Errorf("delete membership: %w", err)
		}
		return nil
	})
}

// UpdateRole changes a member's role unless that would demote the project's last PROJECT_ADMIN.
func (r *Repository) UpdateRole(ctx context.Context, projectID, userID uuid.UUID, role models.ProjectRole) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		members, err := lockMembers(ctx, tx, projectID)
		if err != nil {
			return err
		}
		current, ok := members[userID]
		if !ok {
			return ErrMemberNotFound
		}
		if current == role {
			return nil
		}
		if current == models.RoleProjectAdmin && countAdmins(members) == 1 {
			return ErrLastAdmin
		}
		const q = `UPDATE project_members SET role = $3, updated_at = NOW() WHERE project_id = $1 AND user_id = $2`
		if _, err := tx.Exec(ctx, q, projectID, userID, string(role)); err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		return nil
	})
}

// CountAdmins returns the number of PROJECT_ADMIN members.
func (r *Repository) CountAdmins(ctx context.Context, projectID uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM project_members WHERE project_id = $1 AND role = $2`
	var n int
	err := r.db.QueryRow(ctx, q, projectID, string(models.RoleProjectAdmin)).Scan(&n)
	return n, err
}

// lockMembers reads the project's memberships with row locks so concurrent removals and
// demotions are serialized per project.
func lockMembers(ctx context.Context, tx pgx.Tx, projectID uuid.UUID) (map[uuid.UUID]models.ProjectRole, error) {
	const q = `SELECT user_id, role FROM project_members WHERE project_id = $1 FOR UPDATE`
	rows, err := tx.Query(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("lock memberships: %w", err)
	}
	defer rows.Close()
	members := make(map[uuid.UUID]models.ProjectRole)
	for rows.Next() {
		var userID uuid.UUID
		var role string
		if err := rows.Scan(&userID, &role); err != nil {
			return nil, err
		}
		members[userID] = models.ProjectRole(role)
	}
	return members, rows.Err()
}

func countAdmins(members map[uuid.UUID]models.ProjectRole) int {
	n := 0
	for _, role := range members {
		if role == models.RoleProjectAdmin {
			n++
		}
	}
	return n
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
