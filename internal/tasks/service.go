package tasks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskboard/backend/internal/models"
)

// Events published to project subscribers.
const (
	EventTaskCreated    = "task_created"
	EventTaskUpdated    = "task_updated"
	EventTaskDeleted    = "task_deleted"
	EventTasksReordered = "tasks_reordered"
)

// Store is the persistence the service needs; *Repository implements it.
type Store interface {
	Create(ctx context.Context, t *models.Task) error
	GetByID(ctx context.Context, projectID, id uuid.UUID) (*models.Task, error)
	List(ctx context.Context, projectID uuid.UUID, f Filter) ([]*models.Task, error)
	Update(ctx context.Context, projectID, id uuid.UUID, p Patch) (*models.Task, error)
	Delete(ctx context.Context, projectID, id uuid.UUID) error
	ApplyOrder(ctx context.Context, projectID uuid.UUID, items []models.TaskOrderItem) error
}

// Notifier delivers project events.
type Notifier interface {
	PublishProjectEvent(projectID uuid.UUID, event string, payload interface{})
}

// NewTask holds the fields for Create.
type NewTask struct {
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	DueDate     *time.Time
	AssigneeID  *uuid.UUID
}

// Service implements task operations inside one project. Callers are expected to have passed
// the access guard.
type Service struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates a tasks service. notifier may be nil.
func NewService(store Store, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, notifier: notifier, logger: logger}
}

// Create adds a task to the project. Status defaults to TODO and priority to MEDIUM.
func (s *Service) Create(ctx context.Context, projectID uuid.UUID, in NewTask) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || len(title) > 255 {
		return nil, fmt.Errorf("%w: title must be 1-255 characters", ErrInvalidTask)
	}
	if in.Status == "" {
		in.Status = models.TaskStatusTodo
	}
	if in.Priority == "" {
		in.Priority = models.TaskPriorityMedium
	}
	if !in.Status.Valid() || !in.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown status or priority", ErrInvalidTask)
	}
	t := &models.Task{
		ProjectID:   projectID,
		Title:       title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		AssigneeID:  in.AssigneeID,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	s.publish(projectID, EventTaskCreated, t)
	return t, nil
}

// Get returns one task of the project.
func (s *Service) Get(ctx context.Context, projectID, id uuid.UUID) (*models.Task, error) {
	return s.store.GetByID(ctx, projectID, id)
}

// List returns the project's tasks matching f.
func (s *Service) List(ctx context.Context, projectID uuid.UUID, f Filter) ([]*models.Task, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTask, f.Status)
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, f.Priority)
	}
	return s.store.List(ctx, projectID, f)
}

// Update changes task fields. Status and position only move through Reorder.
func (s *Service) Update(ctx context.Context, projectID, id uuid.UUID, p Patch) (*models.Task, error) {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" || len(title) > 255 {
			return nil, fmt.Errorf("%w: title must be 1-255 characters", ErrInvalidTask)
		}
		p.Title = &title
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority", ErrInvalidTask)
	}
	t, err := s.store.Update(ctx, projectID, id, p)
	if err != nil {
		return nil, err
	}
	s.publish(projectID, EventTaskUpdated, t)
	return t, nil
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	if err := s.store.Delete(ctx, projectID, id); err != nil {
		return err
	}
	s.publish(projectID, EventTaskDeleted, map[string]string{"id": id.String()})
	return nil
}

// Reorder applies a batch of (task, status, position) assignments to projectID atomically.
// Either every item is written or none is. An empty batch succeeds without touching the store.
func (s *Service) Reorder(ctx context.Context, projectID uuid.UUID, items []models.TaskOrderItem) error {
	if projectID == uuid.Nil {
		return fmt.Errorf("%w: missing project", ErrInvalidOrder)
	}
	if len(items) == 0 {
		return nil
	}
	if err := validateOrder(items); err != nil {
		return err
	}

	err := s.store.ApplyOrder(ctx, projectID, items)
	if err != nil {
		var orderErr *OrderError
		if errors.As(err, &orderErr) {
			s.logger.Warn("task order rejected",
				zap.String("project_id", projectID.String()),
				zap.String("task_id", orderErr.TaskID.String()),
			)
			return err
		}
		s.logger.Error("task order rolled back", zap.String("project_id", projectID.String()), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrOrderFailed, err)
	}

	s.logger.Debug("task order applied", zap.String("project_id", projectID.String()), zap.Int("items", len(items)))
	s.publish(projectID, EventTasksReordered, items)
	return nil
}

func validateOrder(items []models.TaskOrderItem) error {
	seen := make(map[uuid.UUID]struct{}, len(items))
	for i, it := range items {
		if it.TaskID == uuid.Nil {
			return fmt.Errorf("%w: item %d has no task id", ErrInvalidOrder, i)
		}
		if !it.Status.Valid() {
			return fmt.Errorf("%w: item %d has unknown status %q", ErrInvalidOrder, i, it.Status)
		}
		if it.Position < 0 {
			return fmt.Errorf("%w: item %d has negative position", ErrInvalidOrder, i)
		}
		if it.Position > math.MaxInt32 {
			return fmt.Errorf("%w: item %d position out of range", ErrInvalidOrder, i)
		}
		if _, dup := seen[it.TaskID]; dup {
			return fmt.Errorf("%w: task %s appears twice", ErrInvalidOrder, it.TaskID)
		}
		seen[it.TaskID] = struct{}{}
	}
	return nil
}

func (s *Service) publish(projectID uuid.UUID, event string, payload interface{}) {
	if s.notifier != nil {
		s.notifier.PublishProjectEvent(projectID, event, payload)
	}
}
