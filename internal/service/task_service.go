package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"obra-data/internal/domain"
	"obra-data/internal/repository"
)

// TaskService manages tasks and their staffing.
type TaskService interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) (*domain.Task, error)
	GetTask(ctx context.Context, id int64) (*domain.TaskDetail, error)
	ListTasks(ctx context.Context, req ListTasksRequest) ([]*domain.Task, error)

	AssignResponsible(ctx context.Context, req AssignResponsibleRequest) (*AllocationResult, error)
	RemoveResponsible(ctx context.Context, taskID, responsibleID int64) (*AllocationResult, error)
	ReplaceAssignments(ctx context.Context, req ReplaceAssignmentsRequest) (*AllocationResult, error)
	AllocationStatus(ctx context.Context, taskID int64) (*AllocationResult, error)
}

type CreateTaskRequest struct {
	Name       string     // required
	LocationID *int64     // optional
	TaskTypeID *int64     // optional
	PriceID    *int64     // optional, need not match location or task type
	StartDate  *time.Time // optional
	EndDate    *time.Time // optional, >= StartDate
}

type ListTasksRequest struct {
	LocationID *int64 // optional
}

type AssignResponsibleRequest struct {
	TaskID        int64
	ResponsibleID int64
	Percentage    decimal.Decimal
	IsPrimary     bool
}

type AssignmentInput struct {
	ResponsibleID int64
	Percentage    decimal.Decimal
	IsPrimary     bool
}

type ReplaceAssignmentsRequest struct {
	TaskID      int64
	Assignments []AssignmentInput
}

// AllocationResult is the staffing after a change plus what is still off.
type AllocationResult struct {
	Status   domain.AllocationStatus
	Warnings []string
}

type taskService struct {
	tasks     repository.TasksRepository
	locations repository.LocationsRepository
	taskTypes repository.TaskTypesRepository
	prices    repository.PricesRepository
	policy    AllocationPolicy
	publisher EventPublisher
	logger    *zap.Logger
}

func NewTaskService(
	tasks repository.TasksRepository,
	locations repository.LocationsRepository,
	taskTypes repository.TaskTypesRepository,
	prices repository.PricesRepository,
	policy AllocationPolicy,
	publisher EventPublisher,
	logger *zap.Logger,
) TaskService {
	return &taskService{
		tasks:     tasks,
		locations: locations,
		taskTypes: taskTypes,
		prices:    prices,
		policy:    policy,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *taskService) CreateTask(ctx context.Context, req CreateTaskRequest) (*domain.Task, error) {
	t := &domain.Task{
		Name:       strings.TrimSpace(req.Name),
		StartDate:  nullDay(req.StartDate),
		EndDate:    nullDay(req.EndDate),
		LocationID: nullInt64(req.LocationID),
		TaskTypeID: nullInt64(req.TaskTypeID),
		PriceID:    nullInt64(req.PriceID),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	out, err := s.tasks.CreateTask(ctx, t)
	if err != nil {
		logFailure(s.logger, "CreateTask failed", err, zap.String("name", t.Name))
		return nil, err
	}

	data := map[string]any{"name": out.Name}
	if out.LocationID.Valid {
		data["location_id"] = out.LocationID.Int64
	}
	publish(ctx, s.publisher, s.logger, domain.NewEvent(domain.EventTaskCreated, out.ID, data))
	return out, nil
}

// GetTask resolves every reference of the task and its staffing.
func (s *taskService) GetTask(ctx context.Context, id int64) (*domain.TaskDetail, error) {
	if err := requireID("task_id", id); err != nil {
		return nil, err
	}
	fail := func(err error) (*domain.TaskDetail, error) {
		logFailure(s.logger, "GetTask failed", err, zap.Int64("task_id", id))
		return nil, err
	}

	t, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return fail(err)
	}
	d := &domain.TaskDetail{Task: *t}
	if t.LocationID.Valid {
		if d.Location, err = s.locations.GetLocation(ctx, t.LocationID.Int64); err != nil {
			return fail(err)
		}
	}
	if t.TaskTypeID.Valid {
		if d.TaskType, err = s.taskTypes.GetTaskType(ctx, t.TaskTypeID.Int64); err != nil {
			return fail(err)
		}
	}
	if t.PriceID.Valid {
		if d.Price, err = s.prices.GetPrice(ctx, t.PriceID.Int64); err != nil {
			return fail(err)
		}
	}
	if d.Assignments, err = s.tasks.ListAssignments(ctx, id); err != nil {
		return fail(err)
	}
	d.Allocation = domain.ComputeAllocation(id, d.Assignments)
	return d, nil
}

func (s *taskService) ListTasks(ctx context.Context, req ListTasksRequest) ([]*domain.Task, error) {
	if req.LocationID != nil {
		if err := requireID("location_id", *req.LocationID); err != nil {
			return nil, err
		}
	}
	out, err := s.tasks.ListTasks(ctx, nullInt64(req.LocationID))
	if err != nil {
		logFailure(s.logger, "ListTasks failed", err)
		return nil, err
	}
	return out, nil
}

func (s *taskService) AssignResponsible(ctx context.Context, req AssignResponsibleRequest) (*AllocationResult, error) {
	if err := requireID("task_id", req.TaskID); err != nil {
		return nil, err
	}
	if err := requireID("responsible_id", req.ResponsibleID); err != nil {
		return nil, err
	}
	if err := domain.ValidatePercentage(req.Percentage); err != nil {
		return nil, err
	}

	a := domain.Assignment{
		TaskID:        req.TaskID,
		ResponsibleID: req.ResponsibleID,
		Percentage:    req.Percentage,
		IsPrimary:     req.IsPrimary,
	}
	st, err := s.tasks.AssignResponsible(ctx, a, s.policy.incrementalCheck())
	if err != nil {
		logFailure(s.logger, "AssignResponsible failed", err,
			zap.Int64("task_id", req.TaskID),
			zap.Int64("responsible_id", req.ResponsibleID),
			zap.String("percentage", req.Percentage.String()),
		)
		return nil, err
	}
	return s.changed(ctx, st, "assign", req.ResponsibleID), nil
}

func (s *taskService) RemoveResponsible(ctx context.Context, taskID, responsibleID int64) (*AllocationResult, error) {
	if err := requireID("task_id", taskID); err != nil {
		return nil, err
	}
	if err := requireID("responsible_id", responsibleID); err != nil {
		return nil, err
	}
	st, err := s.tasks.RemoveResponsible(ctx, taskID, responsibleID, s.policy.incrementalCheck())
	if err != nil {
		logFailure(s.logger, "RemoveResponsible failed", err,
			zap.Int64("task_id", taskID),
			zap.Int64("responsible_id", responsibleID),
		)
		return nil, err
	}
	return s.changed(ctx, st, "remove", responsibleID), nil
}

func (s *taskService) ReplaceAssignments(ctx context.Context, req ReplaceAssignmentsRequest) (*AllocationResult, error) {
	if err := requireID("task_id", req.TaskID); err != nil {
		return nil, err
	}
	as := make([]domain.Assignment, 0, len(req.Assignments))
	for _, in := range req.Assignments {
		if err := requireID("responsible_id", in.ResponsibleID); err != nil {
			return nil, err
		}
		if err := domain.ValidatePercentage(in.Percentage); err != nil {
			return nil, err
		}
		as = append(as, domain.Assignment{
			TaskID:        req.TaskID,
			ResponsibleID: in.ResponsibleID,
			Percentage:    in.Percentage,
			IsPrimary:     in.IsPrimary,
		})
	}

	st, err := s.tasks.ReplaceAssignments(ctx, req.TaskID, as, s.policy.replaceCheck())
	if err != nil {
		logFailure(s.logger, "ReplaceAssignments failed", err,
			zap.Int64("task_id", req.TaskID),
			zap.Int("assignments", len(as)),
		)
		return nil, err
	}
	return s.changed(ctx, st, "replace", 0), nil
}

func (s *taskService) AllocationStatus(ctx context.Context, taskID int64) (*AllocationResult, error) {
	if err := requireID("task_id", taskID); err != nil {
		return nil, err
	}
	st, err := s.tasks.AllocationStatus(ctx, taskID)
	if err != nil {
		logFailure(s.logger, "AllocationStatus failed", err, zap.Int64("task_id", taskID))
		return nil, err
	}
	return &AllocationResult{Status: st, Warnings: allocationWarnings(st)}, nil
}

// changed reports a committed assignment change.
func (s *taskService) changed(ctx context.Context, st domain.AllocationStatus, action string, responsibleID int64) *AllocationResult {
	res := &AllocationResult{Status: st, Warnings: allocationWarnings(st)}
	if len(res.Warnings) > 0 {
		s.logger.Warn("task allocation incomplete",
			zap.Int64("task_id", st.TaskID),
			zap.String("total", st.Total.String()),
			zap.Int("primary_count", st.PrimaryCount),
			zap.Strings("warnings", res.Warnings),
		)
	}
	data := map[string]any{
		"action":        action,
		"total":         st.Total.StringFixed(2),
		"complete":      st.Complete,
		"primary_count": st.PrimaryCount,
	}
	if responsibleID > 0 {
		data["responsible_id"] = responsibleID
	}
	publish(ctx, s.publisher, s.logger, domain.NewEvent(domain.EventAssignmentChanged, st.TaskID, data))
	return res
}
