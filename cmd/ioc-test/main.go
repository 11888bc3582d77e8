package main

import (
	"context"
	"fmt"
	"ioctest/applog"
	"ioctest/util"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	defer applog.Shutdown()
	defer util.WrapAppContextCancelExitMessage(ctx, "ioc-test")

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
