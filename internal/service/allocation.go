package service

import (
	"fmt"
	"strings"

	"obra-data/internal/domain"
	"obra-data/internal/repository"
)

// AllocationPolicy decides what an assignment change may leave behind.
type AllocationPolicy string

const (
	// AllocationAdvisory commits every change and reports the resulting status.
	AllocationAdvisory AllocationPolicy = "advisory"
	// AllocationStrict rolls back changes that break the staffing rules.
	AllocationStrict AllocationPolicy = "strict"
)

func ParseAllocationPolicy(s string) (AllocationPolicy, error) {
	switch p := AllocationPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", AllocationAdvisory:
		return AllocationAdvisory, nil
	case AllocationStrict:
		return AllocationStrict, nil
	default:
		return "", fmt.Errorf("unknown allocation policy %q: %w", s, domain.ErrInvalidArgument)
	}
}

// incrementalCheck guards single assign/remove changes: under strict the
// total may not pass 100 and at most one primary may exist.
func (p AllocationPolicy) incrementalCheck() repository.AllocationCheck {
	if p != AllocationStrict {
		return nil
	}
	return func(st domain.AllocationStatus) error {
		if st.Overallocated() {
			return fmt.Errorf("task %d allocated %s%%: %w", st.TaskID, st.Total, domain.ErrIncompleteAllocation)
		}
		if st.PrimaryCount > 1 {
			return fmt.Errorf("task %d has %d primary responsibles: %w", st.TaskID, st.PrimaryCount, domain.ErrPrimaryConflict)
		}
		return nil
	}
}

// replaceCheck guards a full restaffing: under strict the result must be
// exactly 100 with exactly one primary.
func (p AllocationPolicy) replaceCheck() repository.AllocationCheck {
	if p != AllocationStrict {
		return nil
	}
	return func(st domain.AllocationStatus) error {
		if !st.Complete {
			return fmt.Errorf("task %d allocated %s%%, want 100: %w", st.TaskID, st.Total, domain.ErrIncompleteAllocation)
		}
		if st.PrimaryCount != 1 {
			return fmt.Errorf("task %d has %d primary responsibles, want 1: %w", st.TaskID, st.PrimaryCount, domain.ErrPrimaryConflict)
		}
		return nil
	}
}

// allocationWarnings lists what keeps st from being fully staffed.
func allocationWarnings(st domain.AllocationStatus) []string {
	var w []string
	if !st.Complete {
		w = append(w, fmt.Sprintf("allocation totals %s%%, expected 100%%", st.Total.StringFixed(2)))
	}
	switch {
	case st.PrimaryCount == 0:
		w = append(w, "no primary responsible")
	case st.PrimaryCount > 1:
		w = append(w, fmt.Sprintf("%d primary responsibles, expected 1", st.PrimaryCount))
	}
	return w
}
