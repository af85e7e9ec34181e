package httpapi

// Result is the envelope of every JSON response.
// - code: ResultSuccess (2000) or ResultError (-1)
// - type: "success" | "error"
// - error_kind: the failure kind (NotFound, PriceConflict, ...) when known
type Result[T any] struct {
	Code      int    `json:"code"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	ErrorKind string `json:"error_kind,omitempty"`
	Result    T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

func FailKind(kind, message string) Result[any] {
	r := Fail(message)
	r.ErrorKind = kind
	return r
}
