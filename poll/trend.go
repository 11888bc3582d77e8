package poll

import (
	"context"
	"time"
)

// Comparison relates an initial value to a later one. Textual comparisons
// fall back to comparing the rendered values when either side is not numeric.
type Comparison struct {
	Name    string
	Compare func(initial, final float64) bool
	Textual bool
}

var (
	Increasing = Comparison{Name: "increase", Compare: func(initial, final float64) bool { return final > initial }}
	Decreasing = Comparison{Name: "decrease", Compare: func(initial, final float64) bool { return final < initial }}
	Unchanged  = Comparison{Name: "stay unchanged", Compare: func(initial, final float64) bool { return final == initial }, Textual: true}
)

// Trend reads obs, waits, then checks the new value against the initial one
// with a single final evaluation.
func Trend[T any](ctx context.Context, obs Observable[T], wait time.Duration, cmp Comparison, opts ...Option) error {
	initial, err := obs.Read(ctx)
	if err != nil {
		return &AssertionError{Name: obs.Name, Expected: "to " + cmp.Name, Actual: "unavailable", Err: err}
	}

	select {
	case <-ctx.Done():
		return &AssertionError{Name: obs.Name, Expected: "to " + cmp.Name, Actual: Describe(initial), Err: ctx.Err()}
	case <-time.After(wait):
	}

	pred := Predicate[T]{
		Expect: "to " + cmp.Name + " from " + Describe(initial),
		Test: func(final T) (bool, error) {
			a, okA := ToFloat(initial)
			b, okB := ToFloat(final)
			if okA && okB {
				return cmp.Compare(a, b), nil
			}
			return cmp.Textual && Describe(initial) == Describe(final), nil
		},
	}
	return Until(ctx, obs, pred, append(opts, WithTimeout(0))...)
}
