package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"research-chat/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A second interrupt gets the default behaviour.
	go func() {
		<-ctx.Done()
		stop()
	}()

	err := cli.RootCmd.ExecuteContext(ctx)
	if errors.Is(err, context.Canceled) {
		stop()
		os.Exit(130)
	}
	if err != nil {
		slog.Error("research-chat failed", "err", err)
		stop()
		os.Exit(1)
	}
}
