package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FullAllocation is the percentage a fully staffed task sums to.
var FullAllocation = decimal.NewFromInt(100)

// Assignment gives a responsible a share of a task.
type Assignment struct {
	TaskID        int64           `db:"task_id"`
	ResponsibleID int64           `db:"responsible_id"`
	Percentage    decimal.Decimal `db:"percentage"`
	IsPrimary     bool            `db:"is_primary"`
}

// ValidatePercentage accepts (0, 100] with at most two decimal places.
func ValidatePercentage(p decimal.Decimal) error {
	if !p.IsPositive() || p.GreaterThan(FullAllocation) {
		return fmt.Errorf("percentage %s outside (0, 100]: %w", p, ErrInvalidPercentage)
	}
	if !p.Equal(p.Round(2)) {
		return fmt.Errorf("percentage %s has more than two decimals: %w", p, ErrInvalidPercentage)
	}
	return nil
}

// AllocationStatus summarises the staffing of one task.
type AllocationStatus struct {
	TaskID       int64           `json:"task_id"`
	Total        decimal.Decimal `json:"total"`
	Complete     bool            `json:"complete"`
	PrimaryCount int             `json:"primary_count"`
}

// Overallocated reports a total above 100.
func (s AllocationStatus) Overallocated() bool {
	return s.Total.GreaterThan(FullAllocation)
}

// Staffed reports exactly 100 with exactly one primary.
func (s AllocationStatus) Staffed() bool {
	return s.Complete && s.PrimaryCount == 1
}

func ComputeAllocation(taskID int64, assignments []Assignment) AllocationStatus {
	st := AllocationStatus{TaskID: taskID, Total: decimal.Zero}
	for _, a := range assignments {
		st.Total = st.Total.Add(a.Percentage)
		if a.IsPrimary {
			st.PrimaryCount++
		}
	}
	st.Complete = st.Total.Equal(FullAllocation)
	return st
}
