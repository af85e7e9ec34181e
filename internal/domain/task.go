package domain

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Task is work performed at a location. Every reference is optional.
// PriceID is the price actually applied and is not required to match
// LocationID or TaskTypeID.
type Task struct {
	ID         int64         `db:"id"`
	Name       string        `db:"name"`
	StartDate  sql.NullTime  `db:"start_date"`
	EndDate    sql.NullTime  `db:"end_date"`
	LocationID sql.NullInt64 `db:"location_id"`
	TaskTypeID sql.NullInt64 `db:"task_type_id"`
	PriceID    sql.NullInt64 `db:"price_id"`
	CreatedAt  time.Time     `db:"created_at"`
}

func (t *Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("name is required: %w", ErrInvalidArgument)
	}
	if t.StartDate.Valid && t.EndDate.Valid && Day(t.EndDate.Time).Before(Day(t.StartDate.Time)) {
		return fmt.Errorf("end date before start date: %w", ErrInvalidArgument)
	}
	return nil
}

// TaskDetail is a task with its references resolved.
type TaskDetail struct {
	Task
	Location    *Location
	TaskType    *TaskType
	Price       *Price
	Assignments []Assignment
	Allocation  AllocationStatus
}
