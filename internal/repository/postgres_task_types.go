package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"obra-data/internal/domain"
)

type PostgresTaskTypesRepository struct {
	db *sql.DB
}

func NewPostgresTaskTypesRepository(db *sql.DB) *PostgresTaskTypesRepository {
	return &PostgresTaskTypesRepository{db: db}
}

var _ TaskTypesRepository = (*PostgresTaskTypesRepository)(nil)

func scanTaskType(row interface{ Scan(...any) error }) (*domain.TaskType, error) {
	var t domain.TaskType
	if err := row.Scan(&t.ID, &t.Name, &t.Role, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresTaskTypesRepository) CreateTaskType(ctx context.Context, in *domain.TaskType) (*domain.TaskType, error) {
	if in == nil {
		return nil, fmt.Errorf("task type is required: %w", domain.ErrInvalidArgument)
	}
	out, err := scanTaskType(r.db.QueryRowContext(ctx,
		`INSERT INTO task_types (name, role) VALUES ($1, $2) RETURNING id, name, role, created_at`,
		in.Name, in.Role,
	))
	if err != nil {
		err = classify(err, opWrite)
		if errors.Is(err, domain.ErrDuplicateName) {
			return nil, fmt.Errorf("task type %q already exists: %w", in.Name, domain.ErrDuplicateName)
		}
		return nil, fmt.Errorf("failed to create task type: %w", err)
	}
	return out, nil
}

func (r *PostgresTaskTypesRepository) GetTaskType(ctx context.Context, id int64) (*domain.TaskType, error) {
	out, err := scanTaskType(r.db.QueryRowContext(ctx,
		`SELECT id, name, role, created_at FROM task_types WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task type %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task type: %w", err)
	}
	return out, nil
}

func (r *PostgresTaskTypesRepository) ListTaskTypes(ctx context.Context) ([]*domain.TaskType, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, role, created_at FROM task_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list task types: %w", err)
	}
	defer rows.Close()

	var out []*domain.TaskType
	for rows.Next() {
		t, err := scanTaskType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task type: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list task types: %w", err)
	}
	return out, nil
}
