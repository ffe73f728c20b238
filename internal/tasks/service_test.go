package tasks

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/backend/internal/models"
)

type eventLog struct {
	events []string
}

func (l *eventLog) PublishProjectEvent(projectID uuid.UUID, event string, payload interface{}) {
	l.events = append(l.events, event)
}

func newMockService(t *testing.T) (*Service, pgxmock.PgxPoolIface, *eventLog) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	events := &eventLog{}
	return NewService(NewRepository(mock), events, nil), mock, events
}

const (
	lockSQL   = `SELECT pg_advisory_xact_lock`
	updateSQL = `UPDATE tasks SET status = \$1, position = \$2`
)

func TestService_Reorder_AppliesBatch(t *testing.T) {
	svc, mock, events := newMockService(t)
	projectID := uuid.New()
	a, b := uuid.New(), uuid.New()
	items := []models.TaskOrderItem{
		{TaskID: a, Status: models.TaskStatusInProgress, Position: 0},
		{TaskID: b, Status: models.TaskStatusTodo, Position: 3},
	}

	mock.ExpectBegin()
	mock.ExpectExec(lockSQL).WithArgs(projectID.String()).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(updateSQL).WithArgs("IN_PROGRESS", 0, a, projectID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(updateSQL).WithArgs("TODO", 3, b, projectID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Reorder(context.Background(), projectID, items))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, []string{EventTasksReordered}, events.events)
}

func TestService_Reorder_ForeignTaskRollsBack(t *testing.T) {
	svc, mock, events := newMockService(t)
	projectID := uuid.New()
	own, foreign, later := uuid.New(), uuid.New(), uuid.New()
	items := []models.TaskOrderItem{
		{TaskID: own, Status: models.TaskStatusDone, Position: 0},
		{TaskID: foreign, Status: models.TaskStatusDone, Position: 1},
		{TaskID: later, Status: models.TaskStatusDone, Position: 2},
	}

	mock.ExpectBegin()
	mock.ExpectExec(lockSQL).WithArgs(projectID.String()).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(updateSQL).WithArgs("DONE", 0, own, projectID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(updateSQL).WithArgs("DONE", 1, foreign, projectID).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := svc.Reorder(context.Background(), projectID, items)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskNotInProject)
	var orderErr *OrderError
	require.True(t, errors.As(err, &orderErr))
	assert.Equal(t, foreign, orderErr.TaskID)
	assert.NotErrorIs(t, err, ErrOrderFailed)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, events.events)
}

func TestService_Reorder_StoreFailure(t *testing.T) {
	svc, mock, events := newMockService(t)
	projectID := uuid.New()
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(lockSQL).WithArgs(projectID.String()).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(updateSQL).WithArgs("TODO", 0, id, projectID).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := svc.Reorder(context.Background(), projectID, []models.TaskOrderItem{{TaskID: id, Status: models.TaskStatusTodo}})
	assert.ErrorIs(t, err, ErrOrderFailed)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, events.events)
}

func TestService_Reorder_CommitFailure(t *testing.T) {
	svc, mock, _ := newMockService(t)
	projectID := uuid.New()
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(lockSQL).WithArgs(projectID.String()).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(updateSQL).WithArgs("TODO", 0, id, projectID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := svc.Reorder(context.Background(), projectID, []models.TaskOrderItem{{TaskID: id, Status: models.TaskStatusTodo}})
	assert.ErrorIs(t, err, ErrOrderFailed)
}

func TestService_Reorder_Validation(t *testing.T) {
	svc, mock, _ := newMockService(t)
	projectID := uuid.New()
	id := uuid.New()

	cases := map[string][]models.TaskOrderItem{
		"missing task id":   {{Status: models.TaskStatusTodo}},
		"unknown status":    {{TaskID: id, Status: "BLOCKED"}},
		"negative position": {{TaskID: id, Status: models.TaskStatusTodo, Position: -1}},
		"position beyond int4": {{TaskID: id, Status: models.TaskStatusTodo, Position: math.MaxInt32 + 1}},
		"duplicate task": {
			{TaskID: id, Status: models.TaskStatusTodo, Position: 0},
			{TaskID: id, Status: models.TaskStatusDone, Position: 1},
		},
	}
	for name, items := range cases {
		t.Run(name, func(t *testing.T) {
			err := svc.Reorder(context.Background(), projectID, items)
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}

	t.Run("empty batch is a no-op", func(t *testing.T) {
		assert.NoError(t, svc.Reorder(context.Background(), projectID, nil))
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Create(t *testing.T) {
	svc, _, _ := newMockService(t)
	_, err := svc.Create(context.Background(), uuid.New(), NewTask{Title: "  "})
	assert.ErrorIs(t, err, ErrInvalidTask)

	_, err = svc.Create(context.Background(), uuid.New(), NewTask{Title: "Ship", Priority: "URGENT"})
	assert.ErrorIs(t, err, ErrInvalidTask)
}
