package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"obra-data/internal/domain"
)

type PostgresPricesRepository struct {
	db *sql.DB
}

func NewPostgresPricesRepository(db *sql.DB) *PostgresPricesRepository {
	return &PostgresPricesRepository{db: db}
}

var _ PricesRepository = (*PostgresPricesRepository)(nil)

const priceColumns = `id, task_type_id, location_id, amount, unit, valid_from, valid_to, created_at`

func scanPrice(row interface{ Scan(...any) error }) (*domain.Price, error) {
	var p domain.Price
	err := row.Scan(
		&p.ID,
		&p.TaskTypeID,
		&p.LocationID,
		&p.Amount,
		&p.Unit,
		&p.ValidFrom,
		&p.ValidTo,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetPrice makes p the price of its key from p.Effective on.
//
// Rows of the key still valid on the effective day are locked. If any of
// them starts on or after that day the change would overlap it, so the call
// fails with ErrPriceConflict. Otherwise each is closed the day before and
// the new open-ended row is inserted. The prices_no_overlap exclusion
// constraint is deferred and checked at COMMIT, which also catches a
// concurrent SetPrice on the same key that committed first.
func (r *PostgresPricesRepository) SetPrice(ctx context.Context, p SetPriceParams) (*SetPriceResult, error) {
	if err := domain.ValidateAmount(p.Amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateUnit(p.Key.Unit); err != nil {
		return nil, err
	}
	eff := domain.Day(p.Effective)
	res := &SetPriceResult{}

	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT `+priceColumns+`
			FROM prices
			WHERE task_type_id = $1 AND location_id = $2 AND unit IS NOT DISTINCT FROM $3
			  AND (valid_to IS NULL OR valid_to >= $4::date)
			ORDER BY valid_from
			FOR UPDATE
		`, p.Key.TaskTypeID, p.Key.LocationID, p.Key.Unit, eff)
		if err != nil {
			return fmt.Errorf("failed to lock prices: %w", err)
		}
		var current []*domain.Price
		for rows.Next() {
			cp, err := scanPrice(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan price: %w", err)
			}
			current = append(current, cp)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("failed to lock prices: %w", err)
		}
		rows.Close()

		for _, cp := range current {
			if !cp.ValidFrom.Before(eff) {
				return fmt.Errorf("price %d for %s starts %s, not before %s: %w",
					cp.ID, p.Key, cp.ValidFrom.Format(domain.DateLayout), eff.Format(domain.DateLayout), domain.ErrPriceConflict)
			}
		}

		closeOn := eff.AddDate(0, 0, -1)
		for _, cp := range current {
			if _, err := tx.ExecContext(ctx, `UPDATE prices SET valid_to = $2::date WHERE id = $1`, cp.ID, closeOn); err != nil {
				return fmt.Errorf("failed to close price %d: %w", cp.ID, classify(err, opWrite))
			}
			cp.ValidTo = sql.NullTime{Time: closeOn, Valid: true}
			res.Superseded = append(res.Superseded, cp)
		}

		np, err := scanPrice(tx.QueryRowContext(ctx, `
			INSERT INTO prices (task_type_id, location_id, amount, unit, valid_from)
			VALUES ($1, $2, $3, $4, $5::date)
			RETURNING `+priceColumns,
			p.Key.TaskTypeID, p.Key.LocationID, p.Amount, p.Key.Unit, eff,
		))
		if err != nil {
			err = classify(err, opWrite)
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("task type %d or location %d: %w", p.Key.TaskTypeID, p.Key.LocationID, domain.ErrNotFound)
			}
			return fmt.Errorf("failed to insert price: %w", err)
		}
		res.Price = np
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrPriceConflict) {
			return nil, fmt.Errorf("set price for %s: %w", p.Key, err)
		}
		return nil, err
	}
	return res, nil
}

func (r *PostgresPricesRepository) PriceAt(ctx context.Context, key domain.PriceKey, on time.Time) (*domain.Price, error) {
	q := `
		SELECT ` + priceColumns + `
		FROM prices
		WHERE task_type_id = $1 AND location_id = $2 AND unit IS NOT DISTINCT FROM $3
		  AND valid_from <= $4::date AND (valid_to IS NULL OR valid_to >= $4::date)
		ORDER BY valid_from DESC
		LIMIT 1
	`
	on = domain.Day(on)
	p, err := scanPrice(r.db.QueryRowContext(ctx, q, key.TaskTypeID, key.LocationID, key.Unit, on))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no price for %s on %s: %w", key, on.Format(domain.DateLayout), domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get price: %w", err)
	}
	return p, nil
}

func (r *PostgresPricesRepository) GetPrice(ctx context.Context, id int64) (*domain.Price, error) {
	p, err := scanPrice(r.db.QueryRowContext(ctx, `SELECT `+priceColumns+` FROM prices WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("price %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get price: %w", err)
	}
	return p, nil
}

// ListPrices returns the full history of a task type at a location, newest first.
func (r *PostgresPricesRepository) ListPrices(ctx context.Context, taskTypeID, locationID int64) ([]*domain.Price, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+priceColumns+`
		FROM prices
		WHERE task_type_id = $1 AND location_id = $2
		ORDER BY valid_from DESC, id DESC
	`, taskTypeID, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	defer rows.Close()

	var out []*domain.Price
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	return out, nil
}
