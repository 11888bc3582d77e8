// Package backdoor talks to the control channel of a running emulator:
// reading and writing simulated device state, calling device functions and
// toggling the simulated connection.
package backdoor

import (
	"context"
	"strings"
)

const (
	ScopeDevice     = "device"
	ScopeSimulation = "simulation"
)

type Client struct {
	transport Transport
}

func NewClient(transport Transport) *Client {
	return &Client{transport: transport}
}

// Raw sends a literal argument vector.
func (c *Client) Raw(ctx context.Context, args ...string) ([]string, error) {
	return c.transport.Call(ctx, args)
}

func (c *Client) Get(ctx context.Context, variable string) (string, error) {
	lines, err := c.Raw(ctx, ScopeDevice, variable)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, ""), nil
}

func (c *Client) Set(ctx context.Context, variable string, value any) error {
	_, err := c.Raw(ctx, ScopeDevice, variable, FormatValue(value))
	return err
}

func (c *Client) Call(ctx context.Context, function string, args ...any) ([]string, error) {
	command := make([]string, 0, len(args)+2)
	command = append(command, ScopeDevice, function)
	for _, arg := range args {
		command = append(command, FormatValue(arg))
	}
	return c.Raw(ctx, command...)
}

func (c *Client) ConnectDevice(ctx context.Context) error {
	_, err := c.Raw(ctx, ScopeSimulation, "connect_device")
	return err
}

func (c *Client) DisconnectDevice(ctx context.Context) error {
	_, err := c.Raw(ctx, ScopeSimulation, "disconnect_device")
	return err
}
