package comments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/backend/internal/models"
)

func TestRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewRepository(mock)
	projectID, taskID, author := uuid.New(), uuid.New(), uuid.New()

	t.Run("task in project", func(t *testing.T) {
		now := time.Now()
		id := uuid.New()
		mock.ExpectQuery("INSERT INTO comments").
			WithArgs(taskID, projectID, author, "looks good").
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, now, now))

		c := &models.Comment{TaskID: taskID, AuthorID: author, Content: "looks good"}
		require.NoError(t, repo.Create(context.Background(), projectID, c))
		assert.Equal(t, id, c.ID)
	})

	t.Run("task in another project", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO comments").
			WithArgs(taskID, projectID, author, "hi").
			WillReturnError(pgx.ErrNoRows)

		err := repo.Create(context.Background(), projectID, &models.Comment{TaskID: taskID, AuthorID: author, Content: "hi"})
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_DeleteRequiresAuthor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewRepository(mock)
	projectID, id, author := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT c.author_id FROM comments").
		WithArgs(id, projectID).
		WillReturnRows(pgxmock.NewRows([]string{"author_id"}).AddRow(author))

	err = repo.Delete(context.Background(), projectID, id, uuid.New())
	assert.ErrorIs(t, err, ErrNotAuthor)

	mock.ExpectQuery("SELECT c.author_id FROM comments").
		WithArgs(id, projectID).
		WillReturnRows(pgxmock.NewRows([]string{"author_id"}).AddRow(author))
	mock.ExpectExec("DELETE FROM comments").WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Delete(context.Background(), projectID, id, author))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewRepository(mock)
	projectID, taskID, author := uuid.New(), uuid.New(), uuid.New()
	columns := []string{"id", "task_id", "author_id", "name", "content", "created_at", "updated_at"}

	t.Run("comment in project", func(t *testing.T) {
		id := uuid.New()
		now := time.Now()
		mock.ExpectQuery(`WHERE c.id = \$1 AND t.project_id = \$2`).
			WithArgs(id, projectID).
			WillReturnRows(pgxmock.NewRows(columns).AddRow(id, taskID, author, "Ada", "ship it", now, now))

		c, err := repo.GetByID(context.Background(), projectID, id)
		require.NoError(t, err)
		assert.Equal(t, taskID, c.TaskID)
		assert.Equal(t, "Ada", c.AuthorName)
		assert.Equal(t, "ship it", c.Content)
	})

	t.Run("comment in another project", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery(`WHERE c.id = \$1 AND t.project_id = \$2`).
			WithArgs(id, projectID).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByID(context.Background(), projectID, id)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
