package comments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskboard/backend/internal/models"
	"github.com/taskboard/backend/pkg/database"
)

var (
	ErrNotFound     = errors.New("comment not found")
	ErrTaskNotFound = errors.New("task not found")
	ErrNotAuthor    = errors.New("only the author can change a comment")
)

// Repository handles comment persistence. Comments are reached through their task's project.
type Repository struct {
	db database.DB
}

// NewRepository creates a comments repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a comment on a task of projectID.
func (r *Repository) Create(ctx context.Context, projectID uuid.UUID, c *models.Comment) error {
	const query = `INSERT INTO comments (task_id, author_id, content)
		SELECT t.id, $3, $4 FROM tasks t WHERE t.id = $1 AND t.project_id = $2
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query, c.TaskID, projectID, c.AuthorID, c.Content).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrTaskNotFound
	}
	return err
}

// ListByTask returns the task's comments oldest first.
func (r *Repository) ListByTask(ctx context.Context, projectID, taskID uuid.UUID) ([]models.Comment, error) {
	const query = `SELECT c.id, c.task_id, c.author_id, u.name, c.content, c.created_at, c.updated_at
		FROM comments c
		INNER JOIN tasks t ON t.id = c.task_id
		INNER JOIN users u ON u.id = c.author_id
		WHERE c.task_id = $1 AND t.project_id = $2
		ORDER BY c.created_at ASC`
	rows, err := r.db.Query(ctx, query, taskID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.AuthorName, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// GetByID returns a comment on one of projectID's tasks.
func (r *Repository) GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.Comment, error) {
	const query = `SELECT c.id, c.task_id, c.author_id, u.name, c.content, c.created_at, c.updated_at
		FROM comments c
		INNER JOIN tasks t ON t.id = c.task_id
		INNER JOIN users u ON u.id = c.author_id
		WHERE c.id = $1 AND t.project_id = $2`
	var c models.Comment
	err := r.db.QueryRow(ctx, query, id, projectID).
		Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.AuthorName, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateContent changes a comment written by authorID.
func (r *Repository) UpdateContent(ctx context.Context, projectID, id, authorID uuid.UUID, content string) (*models.Comment, error) {
	if err := r.checkAuthor(ctx, projectID, id, authorID); err != nil {
		return nil, err
	}
	const query = `UPDATE comments SET content = $2, updated_at = NOW() WHERE id = $1
		RETURNING id, task_id, author_id, content, created_at, updated_at`
	var c models.Comment
	err := r.db.QueryRow(ctx, query, id, content).
		Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes a comment written by authorID.
func (r *Repository) Delete(ctx context.Context, projectID, id, authorID uuid.UUID) error {
	if err := r.checkAuthor(ctx, projectID, id, authorID); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	return err
}

func (r *Repository) checkAuthor(ctx context.Context, projectID, id, authorID uuid.UUID) error {
	const query = `SELECT c.author_id FROM comments c
		INNER JOIN tasks t ON t.id = c.task_id
		WHERE c.id = $1 AND t.project_id = $2`
	var author uuid.UUID
	err := r.db.QueryRow(ctx, query, id, projectID).Scan(&author)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if author != authorID {
		return ErrNotAuthor
	}
	return nil
}
