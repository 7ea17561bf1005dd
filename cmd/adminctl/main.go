package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/eventpass/internal/adminctl"
	"github.com/dmitrijs2005/eventpass/internal/logging"
)

func main() {
	opts, err := adminctl.ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.NewJSON(os.Stderr, "warn")
	if err := adminctl.Run(ctx, opts, os.Stdin, os.Stdout, logger); err != nil {
		log.Fatalf("%v", err)
	}
}
