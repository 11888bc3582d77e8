// Package device groups IOC and emulator launchers into scoped resources that
// are opened together and always closed.
package device

import (
	"context"
	"errors"
	"fmt"
	"ioctest/applog"
	"slices"

	"go.uber.org/zap"
)

// Resource is anything with the launcher open/close shape. Open must release
// whatever it acquired when it fails.
type Resource interface {
	Open(ctx context.Context) error
	Close() error
}

// PairLauncher opens an emulator before the IOC that talks to it.
type PairLauncher struct {
	Name     string
	IOC      Resource
	Emulator Resource

	emulatorOpen bool
	iocOpen      bool
}

// Pair builds an IOC/emulator pair. emulator may be nil for IOCs without one.
func Pair(name string, ioc, emulator Resource) *PairLauncher {
	return &PairLauncher{Name: name, IOC: ioc, Emulator: emulator}
}

func (p *PairLauncher) Open(ctx context.Context) error {
	if p.Emulator != nil {
		if err := p.Emulator.Open(ctx); err != nil {
			return fmt.Errorf("could not start emulator for '%s': %w", p.Name, err)
		}
		p.emulatorOpen = true
	}

	if err := p.IOC.Open(ctx); err != nil {
		if p.emulatorOpen {
			if closeErr := p.Emulator.Close(); closeErr != nil {
				applog.Warn("Failed to close emulator after IOC start failure",
					zap.String("device", p.Name), zap.Error(closeErr))
			}
			p.emulatorOpen = false
		}
		return fmt.Errorf("could not start IOC '%s': %w", p.Name, err)
	}
	p.iocOpen = true
	return nil
}

// Close stops the IOC and then its emulator. The IOC error wins.
func (p *PairLauncher) Close() error {
	var first error
	if p.iocOpen {
		p.iocOpen = false
		if err := p.IOC.Close(); err != nil {
			first = fmt.Errorf("could not stop IOC '%s': %w", p.Name, err)
		}
	}
	if p.emulatorOpen {
		p.emulatorOpen = false
		if err := p.Emulator.Close(); err != nil {
			err = fmt.Errorf("could not stop emulator for '%s': %w", p.Name, err)
			if first == nil {
				first = err
			} else {
				applog.Warn("Close failure after an earlier one", zap.Error(err))
			}
		}
	}
	return first
}

// Collection presents many resources as one. Members open in order and close
// in reverse.
type Collection struct {
	members []Resource
	opened  []Resource
}

func NewCollection(members ...Resource) *Collection {
	return &Collection{members: members}
}

func (c *Collection) Add(r Resource) {
	c.members = append(c.members, r)
}

func (c *Collection) Len() int {
	return len(c.members)
}

// Open opens each member in turn. When one fails every member opened so far is
// closed in reverse order and the open error is returned.
func (c *Collection) Open(ctx context.Context) error {
	if len(c.opened) > 0 {
		return errors.New("device collection is already open")
	}
	for i, member := range c.members {
		if err := ctx.Err(); err != nil {
			_ = c.Close()
			return err
		}
		if err := member.Open(ctx); err != nil {
			applog.Error("Device failed to start, stopping the ones already started",
				zap.Int("member", i), zap.Int("started", len(c.opened)), zap.Error(err))
			_ = c.Close()
			return err
		}
		c.opened = append(c.opened, member)
	}
	return nil
}

// Close closes every opened member in reverse order. The first failure is
// returned and later ones are only logged.
func (c *Collection) Close() error {
	var first error
	for _, member := range slices.Backward(c.opened) {
		err := member.Close()
		if err == nil {
			continue
		}
		if first == nil {
			first = err
			continue
		}
		applog.Warn("Close failure after an earlier one", zap.Error(err))
	}
	c.opened = nil
	return first
}

// Run opens r, calls fn and closes r whatever fn does, panics included. An
// error from fn wins over a close error.
func Run(ctx context.Context, r Resource, fn func(ctx context.Context) error) (err error) {
	if err = r.Open(ctx); err != nil {
		return err
	}
	defer func() {
		closeErr := r.Close()
		if err == nil {
			err = closeErr
		} else if closeErr != nil {
			applog.Warn("Close failure after an earlier one", zap.Error(closeErr))
		}
	}()
	return fn(ctx)
}
