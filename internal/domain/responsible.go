package domain

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Responsible is a worker that can be assigned to tasks.
type Responsible struct {
	ID            int64               `db:"id"`
	Name          string              `db:"name"`         // NOT NULL, UNIQUE
	Registration  decimal.NullDecimal `db:"registration"` // payroll number
	Role          sql.NullString      `db:"role"`
	AdmissionDate sql.NullTime        `db:"admission_date"`
	Status        sql.NullString      `db:"status"` // e.g. active, on leave
	SalaryTier    decimal.NullDecimal `db:"salary_tier"`
	SiteID        sql.NullInt64       `db:"site_id"`
}

func (r *Responsible) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required: %w", ErrInvalidArgument)
	}
	if r.SalaryTier.Valid {
		if err := ValidateAmount(r.SalaryTier.Decimal); err != nil {
			return fmt.Errorf("salary tier: %w", err)
		}
	}
	if r.SiteID.Valid && r.SiteID.Int64 <= 0 {
		return fmt.Errorf("site_id must be positive: %w", ErrInvalidArgument)
	}
	return nil
}
