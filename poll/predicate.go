package poll

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

func Equals[T comparable](want T) Predicate[T] {
	return Predicate[T]{
		Expect: "to be " + Describe(want),
		Test:   func(value T) (bool, error) { return value == want, nil },
	}
}

func NotEquals[T comparable](restricted T) Predicate[T] {
	return Predicate[T]{
		Expect: "not to be " + Describe(restricted),
		Test:   func(value T) (bool, error) { return value != restricted, nil },
	}
}

func OneOf[T comparable](allowed ...T) Predicate[T] {
	names := make([]string, 0, len(allowed))
	for _, v := range allowed {
		names = append(names, Describe(v))
	}
	return Predicate[T]{
		Expect: "to be one of [" + strings.Join(names, ", ") + "]",
		Test: func(value T) (bool, error) {
			for _, v := range allowed {
				if v == value {
					return true, nil
				}
			}
			return false, nil
		},
	}
}

// NumberWithin holds when the value reads as a number no further than
// tolerance from want. Values that are not numeric never satisfy it.
func NumberWithin[T any](want, tolerance float64) Predicate[T] {
	return Predicate[T]{
		Expect: fmt.Sprintf("to be %v (±%v)", want, tolerance),
		Test: func(value T) (bool, error) {
			f, ok := ToFloat(value)
			return ok && math.Abs(f-want) <= tolerance, nil
		},
	}
}

// NotNumberWithin holds when the value reads as a number strictly more than
// tolerance away from restricted, so a value exactly tolerance away fails.
func NotNumberWithin[T any](restricted, tolerance float64) Predicate[T] {
	return Predicate[T]{
		Expect: fmt.Sprintf("to be a number other than %v (±%v)", restricted, tolerance),
		Test: func(value T) (bool, error) {
			f, ok := ToFloat(value)
			return ok && math.Abs(f-restricted) > tolerance, nil
		},
	}
}

// IntegerBetween holds for integer values within [low, high].
func IntegerBetween[T any](low, high int64) Predicate[T] {
	return Predicate[T]{
		Expect: fmt.Sprintf("to be an integer between %d and %d", low, high),
		Test: func(value T) (bool, error) {
			i, ok := ToInt(value)
			return ok && low <= i && i <= high, nil
		},
	}
}

// AtLeast holds for numeric values greater than or equal to low.
func AtLeast[T any](low float64) Predicate[T] {
	return Predicate[T]{
		Expect: fmt.Sprintf("to be greater than or equal to %v", low),
		Test: func(value T) (bool, error) {
			f, ok := ToFloat(value)
			return ok && f >= low, nil
		},
	}
}

// Func adapts a plain boolean function. name describes it in failure messages.
func Func[T any](name string, fn func(T) bool) Predicate[T] {
	return Predicate[T]{
		Expect: fmt.Sprintf("to make %s return true", name),
		Test:   func(value T) (bool, error) { return fn(value), nil },
	}
}

// Not inverts p. Errors are passed through unchanged.
func Not[T any](p Predicate[T]) Predicate[T] {
	return Predicate[T]{
		Expect: "not " + p.Expect,
		Test: func(value T) (bool, error) {
			ok, err := p.Test(value)
			if err != nil {
				return false, err
			}
			return !ok, nil
		},
	}
}

// ToFloat reads numbers, and strings holding numbers, as float64.
func ToFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ToInt reads integral values as int64. Floats must have no fractional part.
func ToInt(value any) (int64, bool) {
	if s, ok := value.(string); ok {
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		return i, err == nil
	}
	f, ok := ToFloat(value)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}
