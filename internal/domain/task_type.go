package domain

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const MaxTaskTypeNameLen = 255

// TaskType is a kind of work, e.g. painting, with an optional trade label.
type TaskType struct {
	ID        int64          `db:"id"`
	Name      string         `db:"name"`
	Role      sql.NullString `db:"role"`
	CreatedAt time.Time      `db:"created_at"`
}

func (t *TaskType) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("name is required: %w", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(t.Name) > MaxTaskTypeNameLen {
		return fmt.Errorf("name longer than %d characters: %w", MaxTaskTypeNameLen, ErrInvalidArgument)
	}
	return nil
}
