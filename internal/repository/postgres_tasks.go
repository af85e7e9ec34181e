package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"obra-data/internal/domain"
)

type PostgresTasksRepository struct {
	db *sql.DB
}

func NewPostgresTasksRepository(db *sql.DB) *PostgresTasksRepository {
	return &PostgresTasksRepository{db: db}
}

var _ TasksRepository = (*PostgresTasksRepository)(nil)

const taskColumns = `id, name, start_date, end_date, location_id, task_type_id, price_id, created_at`

func scanTask(row interface{ Scan(...any) error }) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.StartDate,
		&t.EndDate,
		&t.LocationID,
		&t.TaskTypeID,
		&t.PriceID,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask inserts a task. Optional references must resolve; their mutual
// consistency (price of the same location and type) is not checked.
func (r *PostgresTasksRepository) CreateTask(ctx context.Context, in *domain.Task) (*domain.Task, error) {
	if in == nil {
		return nil, fmt.Errorf("task is required: %w", domain.ErrInvalidArgument)
	}
	q := `
		INSERT INTO tasks (name, start_date, end_date, location_id, task_type_id, price_id)
		VALUES ($1, $2::date, $3::date, $4, $5, $6)
		RETURNING ` + taskColumns
	out, err := scanTask(r.db.QueryRowContext(ctx, q,
		in.Name, in.StartDate, in.EndDate, in.LocationID, in.TaskTypeID, in.PriceID,
	))
	if err != nil {
		err = classify(err, opWrite)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("task reference: %w", err)
		}
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return out, nil
}

func (r *PostgresTasksRepository) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	out, err := scanTask(r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return out, nil
}

func (r *PostgresTasksRepository) ListTasks(ctx context.Context, locationID sql.NullInt64) ([]*domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE ($1::bigint IS NULL OR location_id = $1)
		ORDER BY id
	`, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return out, nil
}

func (r *PostgresTasksRepository) ListAssignments(ctx context.Context, taskID int64) ([]domain.Assignment, error) {
	return listAssignments(ctx, r.db, taskID)
}

func listAssignments(ctx context.Context, q querier, taskID int64) ([]domain.Assignment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT task_id, responsible_id, percentage, is_primary
		FROM task_assignments
		WHERE task_id = $1
		ORDER BY is_primary DESC, responsible_id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []domain.Assignment
	for rows.Next() {
		var a domain.Assignment
		if err := rows.Scan(&a.TaskID, &a.ResponsibleID, &a.Percentage, &a.IsPrimary); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return out, nil
}

// lockTask serialises assignment changes of one task.
func lockTask(ctx context.Context, tx *sql.Tx, taskID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM tasks WHERE id = $1 FOR UPDATE`, taskID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task %d: %w", taskID, domain.ErrNotFound)
		}
		return fmt.Errorf("failed to lock task: %w", err)
	}
	return nil
}

func insertAssignment(ctx context.Context, tx *sql.Tx, a domain.Assignment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO task_assignments (task_id, responsible_id, percentage, is_primary)
		VALUES ($1, $2, $3, $4)
	`, a.TaskID, a.ResponsibleID, a.Percentage, a.IsPrimary)
	if err == nil {
		return nil
	}
	err = classify(err, opWrite)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("responsible %d: %w", a.ResponsibleID, domain.ErrNotFound)
	case errors.Is(err, domain.ErrConstraintViolation):
		return fmt.Errorf("responsible %d already assigned to task %d: %w", a.ResponsibleID, a.TaskID, domain.ErrConstraintViolation)
	}
	return fmt.Errorf("failed to assign responsible: %w", err)
}

// settle recomputes the task's allocation inside tx and applies check.
func settle(ctx context.Context, tx *sql.Tx, taskID int64, check AllocationCheck) (domain.AllocationStatus, error) {
	as, err := listAssignments(ctx, tx, taskID)
	if err != nil {
		return domain.AllocationStatus{}, err
	}
	st := domain.ComputeAllocation(taskID, as)
	if check != nil {
		if err := check(st); err != nil {
			return st, err
		}
	}
	return st, nil
}

func (r *PostgresTasksRepository) AssignResponsible(ctx context.Context, a domain.Assignment, check AllocationCheck) (domain.AllocationStatus, error) {
	if err := domain.ValidatePercentage(a.Percentage); err != nil {
		return domain.AllocationStatus{}, err
	}
	var st domain.AllocationStatus
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockTask(ctx, tx, a.TaskID); err != nil {
			return err
		}
		if err := insertAssignment(ctx, tx, a); err != nil {
			return err
		}
		var err error
		st, err = settle(ctx, tx, a.TaskID, check)
		return err
	})
	return st, err
}

func (r *PostgresTasksRepository) RemoveResponsible(ctx context.Context, taskID, responsibleID int64, check AllocationCheck) (domain.AllocationStatus, error) {
	var st domain.AllocationStatus
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockTask(ctx, tx, taskID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM task_assignments WHERE task_id = $1 AND responsible_id = $2`, taskID, responsibleID)
		if err != nil {
			return fmt.Errorf("failed to remove responsible: %w", classify(err, opDelete))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to remove responsible: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("responsible %d is not assigned to task %d: %w", responsibleID, taskID, domain.ErrNotFound)
		}
		st, err = settle(ctx, tx, taskID, check)
		return err
	})
	return st, err
}

// ReplaceAssignments swaps the whole staffing of a task in one transaction.
func (r *PostgresTasksRepository) ReplaceAssignments(ctx context.Context, taskID int64, in []domain.Assignment, check AllocationCheck) (domain.AllocationStatus, error) {
	as := slices.Clone(in)
	seen := make(map[int64]struct{}, len(as))
	for i := range as {
		as[i].TaskID = taskID
		if err := domain.ValidatePercentage(as[i].Percentage); err != nil {
			return domain.AllocationStatus{}, err
		}
		if _, dup := seen[as[i].ResponsibleID]; dup {
			return domain.AllocationStatus{}, fmt.Errorf("responsible %d listed twice: %w", as[i].ResponsibleID, domain.ErrConstraintViolation)
		}
		seen[as[i].ResponsibleID] = struct{}{}
	}

	var st domain.AllocationStatus
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockTask(ctx, tx, taskID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignments WHERE task_id = $1`, taskID); err != nil {
			return fmt.Errorf("failed to clear assignments: %w", err)
		}
		for _, a := range as {
			if err := insertAssignment(ctx, tx, a); err != nil {
				return err
			}
		}
		var err error
		st, err = settle(ctx, tx, taskID, check)
		return err
	})
	return st, err
}

func (r *PostgresTasksRepository) AllocationStatus(ctx context.Context, taskID int64) (domain.AllocationStatus, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, taskID).Scan(&exists); err != nil {
		return domain.AllocationStatus{}, fmt.Errorf("failed to check task: %w", err)
	}
	if !exists {
		return domain.AllocationStatus{}, fmt.Errorf("task %d: %w", taskID, domain.ErrNotFound)
	}
	as, err := listAssignments(ctx, r.db, taskID)
	if err != nil {
		return domain.AllocationStatus{}, err
	}
	return domain.ComputeAllocation(taskID, as), nil
}
