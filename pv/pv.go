// Package pv asserts on the process variables an IOC serves. It only needs a
// small get/put/exists contract from the Channel Access client in use.
package pv

import (
	"context"
	"errors"
	"fmt"
	"ioctest/poll"
	"reflect"
	"time"

	"go.uber.org/multierr"
)

// Alarm severities as read from a record's .SEVR field.
const (
	AlarmNone    = "NO_ALARM"
	AlarmMinor   = "MINOR"
	AlarmMajor   = "MAJOR"
	AlarmInvalid = "INVALID"
)

const (
	DefaultTimeout             = 5 * time.Second
	DefaultDoesNotExistTimeout = 2 * time.Second
	setpointSuffix             = ":SP"
)

var (
	ErrDoesNotExist = errors.New("PV does not exist")
	ErrExists       = errors.New("PV exists")
)

// Client is what the checker needs from a Channel Access client. Get and Put
// report a PV that cannot be reached yet with an error wrapping
// poll.ErrUnreachable.
type Client interface {
	Get(ctx context.Context, name string) (any, error)
	Put(ctx context.Context, name string, value any) error
	Exists(ctx context.Context, name string, timeout time.Duration) (bool, error)
}

type Checker struct {
	client         Client
	prefix         string
	defaultTimeout time.Duration
	interval       time.Duration
}

type CheckerOption func(*Checker)

func WithDefaultTimeout(d time.Duration) CheckerOption {
	return func(c *Checker) { c.defaultTimeout = d }
}

func WithPollInterval(d time.Duration) CheckerOption {
	return func(c *Checker) { c.interval = d }
}

// NewChecker creates a checker for PVs under prefix, e.g. "TE:NDW1234:JULABO_01:".
func NewChecker(client Client, prefix string, opts ...CheckerOption) *Checker {
	c := &Checker{
		client:         client,
		prefix:         prefix,
		defaultTimeout: DefaultTimeout,
		interval:       poll.DefaultInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name is the fully qualified PV name.
func (c *Checker) Name(pv string) string {
	return c.prefix + pv
}

func (c *Checker) Observable(pv string) poll.Observable[any] {
	name := c.Name(pv)
	return poll.Observable[any]{
		Name: name,
		Read: func(ctx context.Context) (any, error) { return c.client.Get(ctx, name) },
	}
}

func (c *Checker) SetValue(ctx context.Context, pv string, value any) error {
	return c.client.Put(ctx, c.Name(pv), value)
}

func (c *Checker) GetValue(ctx context.Context, pv string) (any, error) {
	return c.client.Get(ctx, c.Name(pv))
}

// ProcessPV forces the record to process.
func (c *Checker) ProcessPV(ctx context.Context, pv string) error {
	return c.SetValue(ctx, pv+".PROC", 1)
}

func (c *Checker) until(ctx context.Context, pv string, pred poll.Predicate[any], opts []poll.Option) error {
	defaults := []poll.Option{poll.WithTimeout(c.defaultTimeout), poll.WithInterval(c.interval)}
	return poll.Until(ctx, c.Observable(pv), pred, append(defaults, opts...)...)
}

func (c *Checker) AssertIs(ctx context.Context, pv string, expected any, opts ...poll.Option) error {
	return c.until(ctx, pv, matches(expected), opts)
}

func (c *Checker) AssertIsNot(ctx context.Context, pv string, restricted any, opts ...poll.Option) error {
	return c.until(ctx, pv, poll.Not(matches(restricted)), opts)
}

func (c *Checker) AssertIsNumber(ctx context.Context, pv string, expected, tolerance float64, opts ...poll.Option) error {
	return c.until(ctx, pv, poll.NumberWithin[any](expected, tolerance), opts)
}

func (c *Checker) AssertIsNotNumber(ctx context.Context, pv string, restricted, tolerance float64, opts ...poll.Option) error {
	return c.until(ctx, pv, poll.NotNumberWithin[any](restricted, tolerance), opts)
}

func (c *Checker) AssertIsOneOf(ctx context.Context, pv string, allowed []any, opts ...poll.Option) error {
	pred := poll.Predicate[any]{
		Expect: "to be one of " + poll.Describe(allowed),
		Test: func(value any) (bool, error) {
			for _, candidate := range allowed {
				if same(candidate, value) {
					return true, nil
				}
			}
			return false, nil
		},
	}
	return c.until(ctx, pv, pred, opts)
}

func (c *Checker) AssertIsIntegerBetween(ctx context.Context, pv string, low, high int64, opts ...poll.Option) error {
	return c.until(ctx, pv, poll.IntegerBetween[any](low, high), opts)
}

func (c *Checker) AssertAlarmIs(ctx context.Context, pv, alarm string, opts ...poll.Option) error {
	return c.AssertIs(ctx, pv+".SEVR", alarm, opts...)
}

// AssertCausesFuncToReturnTrue waits for fn to accept the PV value.
func (c *Checker) AssertCausesFuncToReturnTrue(ctx context.Context, pv, name string, fn func(any) bool, opts ...poll.Option) error {
	return c.until(ctx, pv, poll.Func(name, fn), opts)
}

// SetpointCheck describes one setpoint/readback round trip.
type SetpointCheck struct {
	Value    any
	Readback string
	// Setpoint defaults to Readback + ":SP".
	Setpoint string
	// Expected defaults to Value.
	Expected any
	// Alarm defaults to AlarmNone unless SkipAlarm is set.
	Alarm     string
	SkipAlarm bool
}

// AssertSettingSetpointSetsReadback writes the setpoint and waits for the
// readback to show the expected value and alarm.
func (c *Checker) AssertSettingSetpointSetsReadback(ctx context.Context, check SetpointCheck, opts ...poll.Option) error {
	setpoint := check.Setpoint
	if setpoint == "" {
		setpoint = check.Readback + setpointSuffix
	}
	expected := check.Expected
	if expected == nil {
		expected = check.Value
	}
	alarm := check.Alarm
	if alarm == "" {
		alarm = AlarmNone
	}

	if err := c.SetValue(ctx, setpoint, check.Value); err != nil {
		return err
	}
	if err := c.AssertIs(ctx, check.Readback, expected, opts...); err != nil {
		return err
	}
	if check.SkipAlarm {
		return nil
	}
	return c.AssertAlarmIs(ctx, check.Readback, alarm, opts...)
}

func (c *Checker) AssertIncreasing(ctx context.Context, pv string, wait time.Duration) error {
	return poll.Trend(ctx, c.Observable(pv), wait, poll.Increasing)
}

func (c *Checker) AssertDecreasing(ctx context.Context, pv string, wait time.Duration) error {
	return poll.Trend(ctx, c.Observable(pv), wait, poll.Decreasing)
}

func (c *Checker) AssertUnchanged(ctx context.Context, pv string, wait time.Duration) error {
	return poll.Trend(ctx, c.Observable(pv), wait, poll.Unchanged)
}

// WaitFor waits for the PV to exist. Zero timeout means the default.
func (c *Checker) WaitFor(ctx context.Context, pv string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	exists, err := c.client.Exists(ctx, c.Name(pv), timeout)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrDoesNotExist, c.Name(pv))
	}
	return nil
}

// AssertDoesNotExist fails when the PV can be connected to within timeout.
// Zero timeout means DefaultDoesNotExistTimeout.
func (c *Checker) AssertDoesNotExist(ctx context.Context, pv string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultDoesNotExistTimeout
	}
	exists, err := c.client.Exists(ctx, c.Name(pv), timeout)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrExists, c.Name(pv))
	}
	return nil
}

// WithSimulatedAlarm puts a simulated record into alarm through its .SIMS
// field, runs fn and always takes the record out of alarm again.
func (c *Checker) WithSimulatedAlarm(ctx context.Context, pv, alarm string, fn func() error) (err error) {
	if err := c.setSimulatedAlarm(ctx, pv, alarm); err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, c.setSimulatedAlarm(context.WithoutCancel(ctx), pv, AlarmNone))
	}()
	return fn()
}

func (c *Checker) setSimulatedAlarm(ctx context.Context, pv, alarm string) error {
	if err := c.SetValue(ctx, pv+".SIMS", alarm); err != nil {
		return err
	}
	return c.AssertAlarmIs(ctx, pv, alarm)
}

func matches(expected any) poll.Predicate[any] {
	return poll.Predicate[any]{
		Expect: "to be " + poll.Describe(expected),
		Test:   func(value any) (bool, error) { return same(expected, value), nil },
	}
}

// same compares PV values loosely: numbers by value whatever their type or
// textual form, everything else by its rendered text.
func same(expected, actual any) bool {
	if reflect.DeepEqual(expected, actual) {
		return true
	}
	a, okA := poll.ToFloat(expected)
	b, okB := poll.ToFloat(actual)
	if okA && okB {
		return a == b
	}
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}
