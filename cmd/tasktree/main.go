package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	charmlog "github.com/charmbracelet/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := RootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		charmlog.Error(err)
		os.Exit(1)
	}
}
