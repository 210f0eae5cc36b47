package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/notehub-io/notehub/pkg/notehub"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := notehub.Main(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
