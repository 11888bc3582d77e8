package backdoor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"ioctest/applog"
	"ioctest/poll"
	"ioctest/proc"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultAttempts     = 39
	DefaultPollInterval = 100 * time.Millisecond

	logTimeLayout = "2006-01-02 15:04:05"
)

var (
	// ErrUnreachable wraps poll.ErrUnreachable so that polling assertions keep
	// retrying while the emulator control channel is not answering.
	ErrUnreachable = fmt.Errorf("emulator backdoor unreachable: %w", poll.ErrUnreachable)

	ErrCompanionTimeout = fmt.Errorf("backdoor command did not finish: %w", ErrUnreachable)

	// ErrSpawn means the companion process could not be created at all.
	ErrSpawn = errors.New("failed to spawn backdoor process")
)

// Transport sends one argument vector to a running emulator and returns the
// response lines.
type Transport interface {
	Call(ctx context.Context, args []string) ([]string, error)
}

// CallError is a backdoor command that ran but exited unsuccessfully.
type CallError struct {
	Args     []string
	ExitCode int
	Output   []string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("backdoor command %v exited with code %d: %s",
		e.Args, e.ExitCode, strings.Join(e.Output, "; "))
}

func (e *CallError) Unwrap() error { return ErrUnreachable }

// ProcessTransport runs a short-lived companion process per call:
//
//	<Executable> -r <Address> <args...>
//
// The companion is given Attempts polls of PollInterval to exit before it is
// killed; a hung companion never blocks the caller beyond that budget.
type ProcessTransport struct {
	Executable   string
	Address      string
	Attempts     int
	PollInterval time.Duration

	mu  sync.Mutex
	log io.Writer
}

// NewProcessTransport creates a transport whose calls are recorded to log,
// normally the emulator log file. log may be nil.
func NewProcessTransport(executable, address string, log io.Writer) *ProcessTransport {
	return &ProcessTransport{
		Executable:   executable,
		Address:      address,
		Attempts:     DefaultAttempts,
		PollInterval: DefaultPollInterval,
		log:          log,
	}
}

func (t *ProcessTransport) Call(ctx context.Context, args []string) ([]string, error) {
	cmdArgs := append([]string{"-r", t.Address}, args...)
	cmd := exec.Command(t.Executable, cmdArgs...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	commandLine := proc.CommandLine(cmd)
	t.record("%s: lewis backdoor command: %s", time.Now().Format(logTimeLayout), commandLine)
	applog.FromContext(ctx).Debug("Sending backdoor command", zap.Strings("args", args))

	p, err := proc.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	if err := t.awaitExit(ctx, p); err != nil {
		_ = p.Kill()
		t.record("Lewis backdoor command %s did not finish!", commandLine)
		return nil, err
	}

	lines := splitLines(output.String())
	for _, line := range lines {
		if strings.Contains(strings.ToLower(line), "failed to create process") {
			return nil, fmt.Errorf("%w for backdoor command %v", ErrSpawn, args)
		}
	}

	if waitErr := p.Err(); waitErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		t.record("Error using backdoor: %s", strings.Join(lines, "; "))
		t.record("Error code %d", exitCode)
		return lines, &CallError{Args: args, ExitCode: exitCode, Output: lines}
	}
	return lines, nil
}

func (t *ProcessTransport) awaitExit(ctx context.Context, p *proc.Process) error {
	attempts := t.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	interval := t.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for range attempts {
		select {
		case <-p.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	if p.Exited() {
		return nil
	}
	return ErrCompanionTimeout
}

func (t *ProcessTransport) record(format string, args ...any) {
	if t.log == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintf(t.log, format+"\n", args...)
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
