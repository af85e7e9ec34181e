package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"obra-data/internal/domain"
)

type PostgresResponsiblesRepository struct {
	db *sql.DB
}

func NewPostgresResponsiblesRepository(db *sql.DB) *PostgresResponsiblesRepository {
	return &PostgresResponsiblesRepository{db: db}
}

var _ ResponsiblesRepository = (*PostgresResponsiblesRepository)(nil)

const responsibleColumns = `id, name, registration, role, admission_date, status, salary_tier, site_id`

func scanResponsible(row interface{ Scan(...any) error }) (*domain.Responsible, error) {
	var r domain.Responsible
	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.Registration,
		&r.Role,
		&r.AdmissionDate,
		&r.Status,
		&r.SalaryTier,
		&r.SiteID,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *PostgresResponsiblesRepository) CreateResponsible(ctx context.Context, in *domain.Responsible) (*domain.Responsible, error) {
	if in == nil {
		return nil, fmt.Errorf("responsible is required: %w", domain.ErrInvalidArgument)
	}
	q := `
		INSERT INTO responsibles (name, registration, role, admission_date, status, salary_tier, site_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + responsibleColumns
	out, err := scanResponsible(r.db.QueryRowContext(ctx, q,
		in.Name,
		in.Registration,
		in.Role,
		in.AdmissionDate,
		in.Status,
		in.SalaryTier,
		in.SiteID,
	))
	if err != nil {
		err = classify(err, opWrite)
		switch {
		case errors.Is(err, domain.ErrDuplicateName):
			return nil, fmt.Errorf("responsible %q already exists: %w", in.Name, domain.ErrDuplicateName)
		case errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("site %d: %w", in.SiteID.Int64, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to create responsible: %w", err)
	}
	return out, nil
}

func (r *PostgresResponsiblesRepository) GetResponsible(ctx context.Context, id int64) (*domain.Responsible, error) {
	out, err := scanResponsible(r.db.QueryRowContext(ctx,
		`SELECT `+responsibleColumns+` FROM responsibles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("responsible %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get responsible: %w", err)
	}
	return out, nil
}

// ListResponsibles lists every responsible, or only those of siteID when set.
func (r *PostgresResponsiblesRepository) ListResponsibles(ctx context.Context, siteID sql.NullInt64) ([]*domain.Responsible, error) {
	q := `SELECT ` + responsibleColumns + ` FROM responsibles
		WHERE ($1::bigint IS NULL OR site_id = $1)
		ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responsibles: %w", err)
	}
	defer rows.Close()

	var out []*domain.Responsible
	for rows.Next() {
		resp, err := scanResponsible(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan responsible: %w", err)
		}
		out = append(out, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list responsibles: %w", err)
	}
	return out, nil
}
