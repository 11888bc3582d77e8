package emulator

import (
	"context"
	"fmt"
	"ioctest/backdoor"
	"ioctest/poll"

	"go.uber.org/multierr"
)

const DefaultConnectedProperty = "connected"

// Property observes one emulator variable through the backdoor.
func Property(b Backdoor, name string) poll.Observable[string] {
	return poll.Observable[string]{
		Name: name,
		Read: func(ctx context.Context) (string, error) { return b.GetFromDevice(ctx, name) },
	}
}

func withDefaults(l Launcher, message string, opts []poll.Option) []poll.Option {
	return append([]poll.Option{poll.WithTimeout(l.DefaultTimeout()), poll.WithMessage(message)}, opts...)
}

// AssertValueIs waits for property to read as expected. The backdoor always
// answers with text, so expected is compared as a string.
func AssertValueIs(ctx context.Context, l Launcher, property, expected string, opts ...poll.Option) error {
	msg := fmt.Sprintf("Expected emulator to have value %s.", poll.Describe(expected))
	return poll.Until(ctx, Property(l, property), poll.Equals(expected), withDefaults(l, msg, opts)...)
}

// AssertValueIsNot waits for property to read as anything but value.
func AssertValueIsNot(ctx context.Context, l Launcher, property, value string, opts ...poll.Option) error {
	msg := fmt.Sprintf("Expected emulator to *not* have value %s.", poll.Describe(value))
	return poll.Until(ctx, Property(l, property), poll.NotEquals(value), withDefaults(l, msg, opts)...)
}

// AssertValueIsAs converts the property with cast before comparing. A cast
// error ends the wait.
func AssertValueIsAs[T comparable](ctx context.Context, l Launcher, property string, expected T,
	cast func(string) (T, error), opts ...poll.Option) error {
	pred := poll.Predicate[string]{
		Expect: "to be " + poll.Describe(expected),
		Test: func(value string) (bool, error) {
			converted, err := cast(value)
			if err != nil {
				return false, err
			}
			return converted == expected, nil
		},
	}
	msg := fmt.Sprintf("Expected emulator to have value %s.", poll.Describe(expected))
	return poll.Until(ctx, Property(l, property), pred, withDefaults(l, msg, opts)...)
}

// AssertValueCauses waits for fn to return true for the property value.
func AssertValueCauses(ctx context.Context, l Launcher, property, name string, fn func(string) bool, opts ...poll.Option) error {
	msg := fmt.Sprintf("Expected function '%s' to evaluate to True when reading emulator property '%s'.", name, property)
	return poll.Until(ctx, Property(l, property), poll.Func(name, fn), withDefaults(l, msg, opts)...)
}

// AssertValueCausesFalse waits for fn to return false for the property value.
func AssertValueCausesFalse(ctx context.Context, l Launcher, property, name string, fn func(string) bool, opts ...poll.Option) error {
	msg := fmt.Sprintf("Expected function '%s' to evaluate to False when reading emulator property '%s'.", name, property)
	return poll.Until(ctx, Property(l, property), poll.Not(poll.Func(name, fn)), withDefaults(l, msg, opts)...)
}

// AssertValueIsGreaterThan waits for a numeric property to reach min (inclusive).
func AssertValueIsGreaterThan(ctx context.Context, l Launcher, property string, low float64, opts ...poll.Option) error {
	msg := fmt.Sprintf("Expected emulator property %s to have a value greater than or equal to %v", property, low)
	return poll.Until(ctx, Property(l, property), poll.AtLeast[string](low), withDefaults(l, msg, opts)...)
}

// SetAndAssertSet sets variable and waits for it to read back.
func SetAndAssertSet(ctx context.Context, l Launcher, variable string, value any, opts ...poll.Option) error {
	if err := l.SetOnDevice(ctx, variable, value); err != nil {
		return err
	}
	expected, ok := value.(string)
	if !ok {
		expected = backdoor.FormatValue(value)
	}
	return AssertValueIs(ctx, l, variable, expected, opts...)
}

// SimulateDisconnectedDevice sets property (default "connected") to False,
// runs fn and always sets it back to True afterwards.
func SimulateDisconnectedDevice(ctx context.Context, b Backdoor, property string, fn func() error) (err error) {
	if property == "" {
		property = DefaultConnectedProperty
	}
	if err := b.SetOnDevice(ctx, property, false); err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, b.SetOnDevice(context.WithoutCancel(ctx), property, true))
	}()
	return fn()
}
