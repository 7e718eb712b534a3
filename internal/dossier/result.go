package dossier

// Outcome classifies the result of an optional source lookup.
type Outcome int

// Outcome values.
const (
	Absent Outcome = iota
	Present
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Present:
		return "present"
	case Failed:
		return "failed"
	default:
		return "absent"
	}
}

// Result carries the value of an optional source together with whether it
// was found, missing, or failed to load. Failed results keep their error for
// logging; callers treat them like Absent.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

// Found wraps a present value.
func Found[T any](v T) Result[T] {
	return Result[T]{Value: v, Outcome: Present}
}

// Missing returns an absent result.
func Missing[T any]() Result[T] {
	return Result[T]{Outcome: Absent}
}

// Failure returns a failed result carrying err.
func Failure[T any](err error) Result[T] {
	return Result[T]{Outcome: Failed, Err: err}
}

// Ok reports whether a value is present.
func (r Result[T]) Ok() bool {
	return r.Outcome == Present
}

// Or returns the value when present and def otherwise.
func (r Result[T]) Or(def T) T {
	if r.Outcome == Present {
		return r.Value
	}
	return def
}
