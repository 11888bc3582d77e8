package pv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"ioctest/backdoor"
	"ioctest/poll"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const defaultCAWait = time.Second

var caUnreachableMarkers = []string{
	"not connected",
	"channel connect timed out",
	"no such pv",
}

// CAToolsClient implements Client with the EPICS caget and caput command line
// tools.
type CAToolsClient struct {
	CAGet string
	CAPut string
	// Wait is the per call Channel Access timeout passed with -w.
	Wait time.Duration
	// Env, when set, replaces the environment of the tools, e.g. to set
	// EPICS_CA_ADDR_LIST.
	Env []string
}

func NewCAToolsClient() *CAToolsClient {
	return &CAToolsClient{CAGet: "caget", CAPut: "caput", Wait: defaultCAWait}
}

func (c *CAToolsClient) waitArg() string {
	wait := c.Wait
	if wait <= 0 {
		wait = defaultCAWait
	}
	return strconv.FormatFloat(wait.Seconds(), 'f', -1, 64)
}

func (c *CAToolsClient) run(ctx context.Context, executable string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, executable, args...)
	if c.Env != nil {
		cmd.Env = c.Env
	}
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	text := strings.TrimSpace(output.String())
	if err == nil {
		return text, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return "", fmt.Errorf("could not run %s: %w", executable, err)
	}
	lower := strings.ToLower(text)
	for _, marker := range caUnreachableMarkers {
		if strings.Contains(lower, marker) {
			return "", fmt.Errorf("%s: %w", text, poll.ErrUnreachable)
		}
	}
	return "", fmt.Errorf("%s %s failed (%s): %s", executable, strings.Join(args, " "), exitErr, text)
}

// Get returns the value as text, the way caget -t prints it.
func (c *CAToolsClient) Get(ctx context.Context, name string) (any, error) {
	out, err := c.run(ctx, c.CAGet, "-t", "-w", c.waitArg(), name)
	if err != nil {
		return nil, err
	}
	if strings.Contains(strings.ToLower(out), "not connected") {
		return nil, fmt.Errorf("%s: %w", name, poll.ErrUnreachable)
	}
	return out, nil
}

func (c *CAToolsClient) Put(ctx context.Context, name string, value any) error {
	_, err := c.run(ctx, c.CAPut, "-t", "-w", c.waitArg(), name, putValue(value))
	return err
}

func putValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return backdoor.FormatValue(v)
	}
}

// Exists polls the PV until it answers or timeout elapses.
func (c *CAToolsClient) Exists(ctx context.Context, name string, timeout time.Duration) (bool, error) {
	obs := poll.Observable[any]{
		Name: name,
		Read: func(ctx context.Context) (any, error) { return c.Get(ctx, name) },
	}
	anything := poll.Predicate[any]{Expect: "to exist", Test: func(any) (bool, error) { return true, nil }}

	err := poll.Until(ctx, obs, anything, poll.WithTimeout(timeout), poll.WithInterval(c.Wait/2+10*time.Millisecond))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, poll.ErrUnreachable):
		return false, nil
	default:
		return false, err
	}
}
