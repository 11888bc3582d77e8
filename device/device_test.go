package device

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type journal struct {
	events []string
}

type fakeResource struct {
	name     string
	log      *journal
	openErr  error
	closeErr error
	open     bool
}

func (f *fakeResource) Open(context.Context) error {
	f.log.events = append(f.log.events, "open "+f.name)
	if f.openErr != nil {
		return f.openErr
	}
	f.open = true
	return nil
}

func (f *fakeResource) Close() error {
	f.log.events = append(f.log.events, "close "+f.name)
	f.open = false
	return f.closeErr
}

func newFake(log *journal, name string) *fakeResource {
	return &fakeResource{name: name, log: log}
}

func TestPairOpensEmulatorFirst(t *testing.T) {
	log := &journal{}
	p := Pair("julabo", newFake(log, "ioc"), newFake(log, "emulator"))

	require.NoError(t, p.Open(context.Background()))
	require.NoError(t, p.Close())
	assert.Equal(t, []string{"open emulator", "open ioc", "close ioc", "close emulator"}, log.events)
}

func TestPairWithoutEmulator(t *testing.T) {
	log := &journal{}
	p := Pair("moxa", newFake(log, "ioc"), nil)

	require.NoError(t, p.Open(context.Background()))
	require.NoError(t, p.Close())
	assert.Equal(t, []string{"open ioc", "close ioc"}, log.events)
}

func TestPairIOCFailureClosesEmulator(t *testing.T) {
	log := &journal{}
	ioc := newFake(log, "ioc")
	ioc.openErr = errors.New("no st.cmd")
	emu := newFake(log, "emulator")
	p := Pair("julabo", ioc, emu)

	err := p.Open(context.Background())
	assert.ErrorIs(t, err, ioc.openErr)
	assert.False(t, emu.open)
	assert.Equal(t, []string{"open emulator", "open ioc", "close emulator"}, log.events)

	// Nothing left to close.
	require.NoError(t, p.Close())
	assert.Len(t, log.events, 3)
}

func TestPairEmulatorFailureSkipsIOC(t *testing.T) {
	log := &journal{}
	emu := newFake(log, "emulator")
	emu.openErr = errors.New("lewis not found")
	p := Pair("julabo", newFake(log, "ioc"), emu)

	assert.ErrorIs(t, p.Open(context.Background()), emu.openErr)
	assert.Equal(t, []string{"open emulator"}, log.events)
}

func TestPairCloseIOCErrorWins(t *testing.T) {
	log := &journal{}
	ioc := newFake(log, "ioc")
	ioc.closeErr = errors.New("ioc stuck")
	emu := newFake(log, "emulator")
	emu.closeErr = errors.New("emulator stuck")
	p := Pair("julabo", ioc, emu)

	require.NoError(t, p.Open(context.Background()))
	err := p.Close()
	assert.ErrorIs(t, err, ioc.closeErr)
	assert.NotErrorIs(t, err, emu.closeErr)
	assert.Equal(t, "close emulator", log.events[len(log.events)-1])
}

func TestCollectionOpensInOrderClosesInReverse(t *testing.T) {
	log := &journal{}
	c := NewCollection(newFake(log, "a"), newFake(log, "b"))
	c.Add(newFake(log, "c"))
	assert.Equal(t, 3, c.Len())

	require.NoError(t, c.Open(context.Background()))
	require.NoError(t, c.Close())
	assert.Equal(t, []string{"open a", "open b", "open c", "close c", "close b", "close a"}, log.events)
}

func TestCollectionSecondMemberFailsToOpen(t *testing.T) {
	log := &journal{}
	first := newFake(log, "first")
	second := newFake(log, "second")
	second.openErr = errors.New("port in use")
	third := newFake(log, "third")

	c := NewCollection(first, second, third)
	err := c.Open(context.Background())

	assert.ErrorIs(t, err, second.openErr)
	assert.Equal(t, []string{"open first", "open second", "close first"}, log.events)
	assert.False(t, first.open)
}

func TestCollectionFirstCloseFailureWins(t *testing.T) {
	log := &journal{}
	a := newFake(log, "a")
	a.closeErr = errors.New("a failed")
	b := newFake(log, "b")
	b.closeErr = errors.New("b failed")

	c := NewCollection(a, b)
	require.NoError(t, c.Open(context.Background()))

	// b closes first, so its failure is the one reported.
	err := c.Close()
	assert.ErrorIs(t, err, b.closeErr)
	assert.Equal(t, "close a", log.events[len(log.events)-1], "every member is closed despite failures")
}

func TestCollectionDoubleOpen(t *testing.T) {
	c := NewCollection(newFake(&journal{}, "a"))
	require.NoError(t, c.Open(context.Background()))
	assert.Error(t, c.Open(context.Background()))
	require.NoError(t, c.Close())
}

func TestCollectionCancelledContext(t *testing.T) {
	log := &journal{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCollection(newFake(log, "a"))
	assert.ErrorIs(t, c.Open(ctx), context.Canceled)
	assert.Empty(t, log.events)
}

func TestRunClosesAfterError(t *testing.T) {
	log := &journal{}
	c := NewCollection(newFake(log, "a"))
	failure := errors.New("assertion failed")

	err := Run(context.Background(), c, func(context.Context) error { return failure })
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, []string{"open a", "close a"}, log.events)
}

func TestRunClosesAfterPanic(t *testing.T) {
	log := &journal{}
	c := NewCollection(newFake(log, "a"))

	assert.Panics(t, func() {
		_ = Run(context.Background(), c, func(context.Context) error { panic("boom") })
	})
	assert.Equal(t, []string{"open a", "close a"}, log.events)
}

func TestRunReportsCloseError(t *testing.T) {
	log := &journal{}
	a := newFake(log, "a")
	a.closeErr = errors.New("stuck")

	err := Run(context.Background(), NewCollection(a), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, a.closeErr)
}

func TestRunSkipsBodyWhenOpenFails(t *testing.T) {
	a := newFake(&journal{}, "a")
	a.openErr = errors.New("nope")
	called := false

	err := Run(context.Background(), NewCollection(a), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, a.openErr)
	assert.False(t, called)
}

func TestCollectionOfPairsSecondIOCFails(t *testing.T) {
	log := &journal{}
	failing := newFake(log, "ioc2")
	failing.openErr = errors.New("IOC exited")

	c := NewCollection(
		Pair("one", newFake(log, "ioc1"), newFake(log, "emu1")),
		Pair("two", failing, newFake(log, "emu2")),
	)
	err := c.Open(context.Background())

	assert.ErrorIs(t, err, failing.openErr)
	assert.Equal(t, []string{
		"open emu1", "open ioc1",
		"open emu2", "open ioc2", "close emu2",
		"close ioc1", "close emu1",
	}, log.events)
}
