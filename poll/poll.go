// Package poll turns "check that a value satisfies a condition" into "wait up
// to a timeout for it to become true", polling at a fixed interval and riding
// out transient unreachability of the observed value.
package poll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultInterval = 500 * time.Millisecond
	DefaultTimeout  = 5 * time.Second
)

var (
	// ErrUnreachable marks a read that failed only because the observable is
	// not available yet. Such reads are retried until the timeout.
	ErrUnreachable = errors.New("observable unreachable")

	// ErrPredicate marks a predicate that returned an error or panicked.
	ErrPredicate = errors.New("predicate failed")
)

// Observable is a named value source such as an emulator property or a PV.
type Observable[T any] struct {
	Name string
	Read func(ctx context.Context) (T, error)
}

// Predicate is a condition over one observed value. Expect describes the
// condition for failure messages, e.g. "to be 1.5 (±0.1)".
type Predicate[T any] struct {
	Expect string
	Test   func(value T) (bool, error)
}

// AssertionError is returned when a wait ends without the predicate holding.
type AssertionError struct {
	Name     string
	Expected string
	Actual   string
	Message  string
	Err      error
}

func (e *AssertionError) Error() string {
	var sb strings.Builder
	if e.Message != "" {
		sb.WriteString(e.Message)
		sb.WriteString(": ")
	}
	fmt.Fprintf(&sb, "expected '%s' %s, final value was %s", e.Name, e.Expected, e.Actual)
	if e.Err != nil {
		fmt.Fprintf(&sb, " (%v)", e.Err)
	}
	return sb.String()
}

func (e *AssertionError) Unwrap() error { return e.Err }

type options struct {
	timeout  time.Duration
	interval time.Duration
	message  string
}

type Option func(*options)

// WithTimeout bounds the wait. Zero or negative means a single evaluation.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithMessage prefixes the failure message.
func WithMessage(msg string) Option {
	return func(o *options) { o.message = msg }
}

type outcome struct {
	ok     bool
	fatal  bool
	actual string
	err    error
}

// Until polls obs until pred holds, the timeout elapses or ctx is done.
//
// A predicate that already holds returns immediately. Reads failing with
// ErrUnreachable are retried; any other read error, predicate error or
// predicate panic ends the wait at once. When the timeout elapses the value is
// evaluated one final time, so a failure always reflects the current value.
func Until[T any](ctx context.Context, obs Observable[T], pred Predicate[T], opts ...Option) error {
	o := options{timeout: DefaultTimeout, interval: DefaultInterval}
	for _, opt := range opts {
		opt(&o)
	}

	fail := func(last outcome) error {
		return &AssertionError{
			Name:     obs.Name,
			Expected: pred.Expect,
			Actual:   last.actual,
			Message:  o.message,
			Err:      last.err,
		}
	}

	deadline := time.Now().Add(o.timeout)
	for time.Now().Before(deadline) {
		last := evaluate(ctx, obs, pred)
		if last.ok {
			return nil
		}
		if last.fatal {
			return fail(last)
		}

		wait := min(o.interval, time.Until(deadline))
		select {
		case <-ctx.Done():
			last.err = ctx.Err()
			return fail(last)
		case <-time.After(wait):
		}
	}

	if err := ctx.Err(); err != nil {
		return fail(outcome{actual: "not read", err: err})
	}
	last := evaluate(ctx, obs, pred)
	if last.ok {
		return nil
	}
	return fail(last)
}

func evaluate[T any](ctx context.Context, obs Observable[T], pred Predicate[T]) (out outcome) {
	value, err := obs.Read(ctx)
	if err != nil {
		out.actual = "unavailable"
		out.err = err
		out.fatal = !errors.Is(err, ErrUnreachable)
		return out
	}
	out.actual = Describe(value)

	defer func() {
		if r := recover(); r != nil {
			out.ok = false
			out.fatal = true
			out.err = fmt.Errorf("%w: panic: %v", ErrPredicate, r)
		}
	}()

	ok, err := pred.Test(value)
	if err != nil {
		out.fatal = true
		out.err = fmt.Errorf("%w: %w", ErrPredicate, err)
		return out
	}
	out.ok = ok
	return out
}

// Describe renders a value for failure messages. Strings are quoted so that
// empty and whitespace values stay visible.
func Describe(value any) string {
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case []byte:
		return fmt.Sprintf("%q", string(v))
	default:
		return fmt.Sprintf("%v", v)
	}
}
