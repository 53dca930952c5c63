package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gl-mr/gl-mr/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.Execute(ctx)
	stop()
	if err != nil {
		log.Printf("gl-mr failed: %v", err)
		os.Exit(1)
	}
}
