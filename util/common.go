package util

import (
	"context"
	"fmt"
	"ioctest/applog"

	"go.uber.org/zap"
)

// WrapAppContextCancelExitMessage logs why the application is exiting.
func WrapAppContextCancelExitMessage(ctx context.Context, appName string) {
	ctxErr := ctx.Err()
	if ctxErr != nil {
		applog.Info(fmt.Sprintf("%s exited; context cancelled", appName), zap.Error(ctxErr))
		return
	}

	applog.Info(fmt.Sprintf("%s exited", appName))
}
