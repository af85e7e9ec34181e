package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"obra-data/internal/domain"
)

// SQLSTATE codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgExclusionViolation  = "23P01"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
	pgNumericOutOfRange   = "22003"
)

type op int

const (
	opWrite op = iota
	opDelete
)

func asPQ(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}

// classify maps a Postgres constraint error onto a domain error kind. Errors
// that are not constraint violations are returned unchanged.
func classify(err error, o op) error {
	pqErr, ok := asPQ(err)
	if !ok {
		return err
	}
	constraint := pqErr.Constraint
	switch string(pqErr.Code) {
	case pgUniqueViolation:
		if strings.HasSuffix(constraint, "name_key") {
			return fmt.Errorf("%s: %w", pqErr.Message, domain.ErrDuplicateName)
		}
		return fmt.Errorf("%s: %w", pqErr.Message, domain.ErrConstraintViolation)
	case pgForeignKeyViolation:
		if o == opDelete {
			return fmt.Errorf("still referenced (%s): %w", constraint, domain.ErrConstraintViolation)
		}
		return fmt.Errorf("referenced row does not exist (%s): %w", constraint, domain.ErrNotFound)
	case pgExclusionViolation:
		return fmt.Errorf("%s: %w", pqErr.Message, domain.ErrPriceConflict)
	case pgCheckViolation:
		switch constraint {
		case "prices_amount_check", "responsibles_salary_tier_check":
			return fmt.Errorf("%s: %w", pqErr.Message, domain.ErrNegativeAmount)
		case "task_assignments_percentage_check":
			return fmt.Errorf("%s: %w", pqErr.Message, domain.ErrInvalidPercentage)
		}
		return fmt.Errorf("%s: %w", pqErr.Message, domain.ErrConstraintViolation)
	case pgNotNullViolation, pgNumericOutOfRange:
		return fmt.Errorf("%s: %w", pqErr.Message, domain.ErrConstraintViolation)
	}
	return err
}

// classifyCommit handles errors raised at COMMIT by deferred constraints.
func classifyCommit(err error) error {
	if _, ok := asPQ(err); ok {
		return classify(err, opWrite)
	}
	return fmt.Errorf("failed to commit transaction: %w", err)
}
