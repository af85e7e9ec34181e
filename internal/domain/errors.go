package domain

import "errors"

// Error kinds reported by every operation. Callers match with errors.Is;
// operations wrap them with the offending ids/names.
var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateName       = errors.New("duplicate name")
	ErrInvalidVariant      = errors.New("invalid location variant")
	ErrCrossSiteReference  = errors.New("cross-site reference")
	ErrNegativeAmount      = errors.New("negative amount")
	ErrPriceConflict       = errors.New("price conflict")
	ErrInvalidPercentage   = errors.New("invalid percentage")
	ErrConstraintViolation = errors.New("constraint violation")

	// Allocation policy outcomes (see AllocationStatus).
	ErrIncompleteAllocation = errors.New("incomplete allocation")
	ErrPrimaryConflict      = errors.New("primary responsible conflict")

	// ErrInvalidArgument is a missing or malformed required input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ErrorKind names the kind an error belongs to, "" when it is not a domain error.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrDuplicateName):
		return "DuplicateName"
	case errors.Is(err, ErrInvalidVariant):
		return "InvalidVariant"
	case errors.Is(err, ErrCrossSiteReference):
		return "CrossSiteReference"
	case errors.Is(err, ErrNegativeAmount):
		return "NegativeAmount"
	case errors.Is(err, ErrPriceConflict):
		return "PriceConflict"
	case errors.Is(err, ErrInvalidPercentage):
		return "InvalidPercentage"
	case errors.Is(err, ErrIncompleteAllocation):
		return "IncompleteAllocation"
	case errors.Is(err, ErrPrimaryConflict):
		return "PrimaryConflict"
	case errors.Is(err, ErrInvalidArgument):
		return "InvalidArgument"
	case errors.Is(err, ErrConstraintViolation):
		return "ConstraintViolation"
	default:
		return ""
	}
}
