package domain

import (
	"database/sql"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const MaxUnitLen = 50

// Money columns are NUMERIC(12,2): two decimals, ten integer digits.
const (
	AmountScale         = 2
	AmountIntegerDigits = 10
)

var amountLimit = decimal.New(1, AmountIntegerDigits)

// PriceState is derived from the validity window, never stored.
type PriceState string

const (
	PriceActive PriceState = "ACTIVE"
	PriceClosed PriceState = "CLOSED"
)

// PriceKey identifies the series a price belongs to. An invalid Unit means
// "no unit of measure", which is its own series.
type PriceKey struct {
	TaskTypeID int64
	LocationID int64
	Unit       sql.NullString
}

func (k PriceKey) String() string {
	unit := "<none>"
	if k.Unit.Valid {
		unit = k.Unit.String
	}
	return fmt.Sprintf("task_type=%d location=%d unit=%s", k.TaskTypeID, k.LocationID, unit)
}

// Price is the amount charged for a task type at a location over
// [ValidFrom, ValidTo]. ValidTo unset means open-ended.
type Price struct {
	ID         int64           `db:"id"`
	TaskTypeID int64           `db:"task_type_id"`
	LocationID int64           `db:"location_id"`
	Amount     decimal.Decimal `db:"amount"`
	Unit       sql.NullString  `db:"unit"`
	ValidFrom  time.Time       `db:"valid_from"`
	ValidTo    sql.NullTime    `db:"valid_to"`
	CreatedAt  time.Time       `db:"created_at"`
}

func (p *Price) Key() PriceKey {
	return PriceKey{TaskTypeID: p.TaskTypeID, LocationID: p.LocationID, Unit: p.Unit}
}

// Contains reports whether day d falls inside the validity window.
func (p *Price) Contains(d time.Time) bool {
	d = Day(d)
	if d.Before(Day(p.ValidFrom)) {
		return false
	}
	return !p.ValidTo.Valid || !d.After(Day(p.ValidTo.Time))
}

// State is Active while the window has not ended as of asOf.
func (p *Price) State(asOf time.Time) PriceState {
	if !p.ValidTo.Valid || !Day(p.ValidTo.Time).Before(Day(asOf)) {
		return PriceActive
	}
	return PriceClosed
}

// ValidateAmount rejects negative amounts and amounts the money columns
// would round or overflow.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("amount %s: %w", amount, ErrNegativeAmount)
	}
	if !amount.Equal(amount.Round(AmountScale)) {
		return fmt.Errorf("amount %s has more than %d decimals: %w", amount, AmountScale, ErrInvalidArgument)
	}
	if amount.GreaterThanOrEqual(amountLimit) {
		return fmt.Errorf("amount %s has more than %d integer digits: %w", amount, AmountIntegerDigits, ErrInvalidArgument)
	}
	return nil
}

func ValidateUnit(unit sql.NullString) error {
	if unit.Valid && utf8.RuneCountInString(unit.String) > MaxUnitLen {
		return fmt.Errorf("unit longer than %d characters: %w", MaxUnitLen, ErrInvalidArgument)
	}
	return nil
}
