package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskboard/backend/internal/models"
	"github.com/taskboard/backend/pkg/database"
)

var ErrNotFound = errors.New("task not found")

const taskColumns = `id, project_id, title, description, status, priority, position, due_date, assignee_id, created_at, updated_at`

// Filter narrows List results. Zero fields are ignored.
type Filter struct {
	Status     models.TaskStatus
	Priority   models.TaskPriority
	AssigneeID *uuid.UUID
	Search     string
}

// Patch holds the fields Update may change; nil fields are left as they are.
type Patch struct {
	Title       *string
	Description *string
	Priority    *models.TaskPriority
	DueDate     *time.Time
	AssigneeID  *uuid.UUID
}

// Repository handles task persistence. Every query is scoped by project.
type Repository struct {
	db database.DB
}

// NewRepository creates a tasks repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts t at the end of its status column.
func (r *Repository) Create(ctx context.Context, t *models.Task) error {
	q := `INSERT INTO tasks (project_id, title, description, status, priority, position, due_date, assignee_id)
		VALUES ($1, $2, $3, $4, $5,
			(SELECT COALESCE(MAX(position) + 1, 0) FROM tasks WHERE project_id = $1 AND status = $4),
			$6, $7)
		RETURNING ` + taskColumns
	row := r.db.QueryRow(ctx, q, t.ProjectID, t.Title, t.Description, string(t.Status), string(t.Priority), t.DueDate, t.AssigneeID)
	created, err := scanTask(row)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	*t = *created
	return nil
}

// GetByID returns a task that belongs to projectID.
func (r *Repository) GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND project_id = $2`
	t, err := scanTask(r.db.QueryRow(ctx, q, id, projectID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// List returns the project's tasks ordered by status column and position.
func (r *Repository) List(ctx context.Context, projectID uuid.UUID, f Filter) ([]*models.Task, error) {
	where := []string{"project_id = $1"}
	args := []interface{}{projectID}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Priority != "" {
		add("priority = $%d", string(f.Priority))
	}
	if f.AssigneeID != nil {
		add("assignee_id = $%d", *f.AssigneeID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add("title ILIKE $%d", "%"+s+"%")
	}
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(where, " AND ") + ` ORDER BY status, position, created_at`
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// Update applies p to the task.
func (r *Repository) Update(ctx context.Context, projectID, id uuid.UUID, p Patch) (*models.Task, error) {
	var priority *string
	if p.Priority != nil {
		s := string(*p.Priority)
		priority = &s
	}
	q := `UPDATE tasks SET
			title = COALESCE($3, title),
			description = COALESCE($4, description),
			priority = COALESCE($5, priority),
			due_date = COALESCE($6, due_date),
			assignee_id = COALESCE($7, assignee_id),
			updated_at = NOW()
		WHERE id = $1 AND project_id = $2
		RETURNING ` + taskColumns
	t, err := scanTask(r.db.QueryRow(ctx, q, id, projectID, p.Title, p.Description, priority, p.DueDate, p.AssigneeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// Delete removes a task from the project.
func (r *Repository) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyOrder writes the whole batch in one transaction holding the project's advisory lock.
// A task outside projectID aborts the batch with an *OrderError.
func (r *Repository) ApplyOrder(ctx context.Context, projectID uuid.UUID, items []models.TaskOrderItem) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, projectID.String()); err != nil {
			return fmt.Errorf("lock project order: %w", err)
		}
		const q = `UPDATE tasks SET status = $1, position = $2, updated_at = NOW() WHERE id = $3 AND project_id = $4`
		for _, it := range items {
			tag, err := tx.Exec(ctx, q, string(it.Status), it.Position, it.TaskID, projectID)
			if err != nil {
				return fmt.Errorf("update task %s: %w", it.TaskID, err)
			}
			if tag.RowsAffected() == 0 {
				return &OrderError{TaskID: it.TaskID}
			}
		}
		return nil
	})
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	var status, priority string
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &status, &priority, &t.Position,
		&t.DueDate, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	t.Priority = models.TaskPriority(priority)
	return &t, nil
}
