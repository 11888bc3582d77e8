package emulator

import (
	"context"
	"ioctest/applog"

	"go.uber.org/zap"
)

// NullLauncher stands in for devices that have no emulator. It registers like
// any other launcher but runs nothing, and its backdoor answers with empty
// values.
type NullLauncher struct {
	base
}

func NewNullLauncher(s Settings) *NullLauncher {
	l := &NullLauncher{base: newBase(s)}
	l.self = l
	return l
}

func (l *NullLauncher) Open(ctx context.Context) error {
	applog.FromContext(l.logContext(ctx)).Debug("Opening null emulator", zap.Int("port", l.settings.Port))
	return l.register()
}

func (l *NullLauncher) Close() error {
	l.deregister()
	return nil
}

func (l *NullLauncher) GetFromDevice(context.Context, string) (string, error) {
	return "", nil
}

func (l *NullLauncher) SetOnDevice(context.Context, string, any) error {
	return nil
}

func (l *NullLauncher) RunFunctionOnDevice(context.Context, string, ...any) ([]string, error) {
	return nil, nil
}

func (l *NullLauncher) Command(context.Context, ...string) ([]string, error) {
	return nil, nil
}

func (l *NullLauncher) ConnectDevice(context.Context) error {
	return nil
}

func (l *NullLauncher) DisconnectDevice(context.Context) error {
	return nil
}
